package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatehu/research-assistant-sub001/conversation"
	"github.com/fatehu/research-assistant-sub001/notebook"
	"github.com/fatehu/research-assistant-sub001/session"
)

func TestClient_OpenStream(t *testing.T) {
	var gotReq session.SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/agent/chat", r.URL.Path)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"type\":\"answer\",\"answer\":\"hi\"}\n")
		io.WriteString(w, "data: {\"type\":\"done\",\"usage\":{}}\n")
	}))
	defer srv.Close()

	c := New(srv.URL, "tok-1")
	body, err := c.OpenStream(context.Background(), session.SendRequest{
		Message: "hello",
		Stream:  true,
	})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"answer":"hi"`)
	assert.True(t, gotReq.Stream)
	assert.Equal(t, "hello", gotReq.Message)
}

func TestClient_OpenStreamNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.OpenStream(context.Background(), session.SendRequest{Message: "hello"})

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusTooManyRequests, terr.StatusCode)
	assert.Equal(t, "quota exceeded", terr.Body)
}

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/messages/search", r.URL.Path)

		var req struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "attention", req.Query)
		assert.Equal(t, 5, req.Limit)

		io.WriteString(w, `{"hits":[{
			"message_id":"m1","conversation_id":"c1",
			"conversation_title":"transformers","role":"agent",
			"content_snippet":"...attention is...","created_at":"2026-08-30T10:00:00Z"
		}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	hits, err := c.Search(context.Background(), "attention", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "m1", hits[0].MessageID)
	assert.Equal(t, conversation.RoleAgent, hits[0].Role)
	assert.Equal(t, "transformers", hits[0].ConversationTitle)
	assert.Equal(t, 2026, hits[0].CreatedAt.Year())
}

func TestClient_ConversationCRUD(t *testing.T) {
	var deleted, renamed string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/conversations":
			io.WriteString(w, `{"conversations":[{"id":"c1","title":"notes"}]}`)
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
		case r.Method == http.MethodPatch:
			renamed = r.URL.Path
			var body struct {
				Title string `json:"title"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "better title", body.Title)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ctx := context.Background()

	convs, err := c.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "c1", convs[0].ID)

	require.NoError(t, c.DeleteConversation(ctx, "c1"))
	assert.Equal(t, "/api/conversations/c1", deleted)

	require.NoError(t, c.RenameConversation(ctx, "c1", "better title"))
	assert.Equal(t, "/api/conversations/c1", renamed)
}

// The client is the controller's transport; a sanity check that the full
// stack decodes a server-sent stream end to end.
func TestClient_StreamsThroughController(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		io.WriteString(w, "data: {\"type\":\"thought\",\"thought\":\"checking\"}\n")
		flusher.Flush()
		io.WriteString(w, "data: {\"type\":\"answer\",\"answer\":\"hi\"}\n")
		io.WriteString(w, "data: {\"type\":\"done\",\"usage\":{}}\n")
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	store := conversation.NewMemStore()
	ctrl := session.NewController(c, nopDispatcher{}, store, "test-model")

	require.NoError(t, ctrl.Send(context.Background(), "hello", session.SendOptions{}))

	for {
		u := <-ctrl.Updates()
		if committed, ok := u.(session.Committed); ok {
			assert.Equal(t, "hi", committed.Message.Content)
			assert.Equal(t, "checking", committed.Message.Thought)
			return
		}
		if failed, ok := u.(session.Failed); ok {
			t.Fatalf("send failed: %v", failed.Err)
		}
	}
}

type nopDispatcher struct{}

func (nopDispatcher) Apply(ctx context.Context, eff notebook.SideEffect) error { return nil }
