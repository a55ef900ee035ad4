// Package api is the HTTP boundary toward the research-assistant backend:
// it opens the chat event stream for the session controller, runs message
// searches, and covers the conversation CRUD surface at interface level.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fatehu/research-assistant-sub001/conversation"
	"github.com/fatehu/research-assistant-sub001/search"
	"github.com/fatehu/research-assistant-sub001/session"
)

// Client talks to the backend. The zero value is not usable; use New.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) ClientOption {
	return func(c *Client) { c.httpc = httpc }
}

// WithClientLogger sets the client's logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// New creates a backend client. Streaming requests intentionally carry no
// client-side timeout; cancellation comes from the request context.
func New(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TransportError reports a failed request or a non-success status.
type TransportError struct {
	Cause      error
	Body       string
	StatusCode int
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport error: %v", e.Cause)
	}
	return fmt.Sprintf("transport error: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// OpenStream starts a streaming generation and returns the raw response
// body. The caller owns the body and must close it; the session controller
// decodes it.
func (c *Client) OpenStream(ctx context.Context, req session.SendRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/agent/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp.Body, nil
}

// wireHit is the backend's search hit shape.
type wireHit struct {
	MessageID         string `json:"message_id"`
	ConversationID    string `json:"conversation_id"`
	ConversationTitle string `json:"conversation_title"`
	Role              string `json:"role"`
	Snippet           string `json:"content_snippet"`
	CreatedAt         string `json:"created_at"`
}

// Search queries the message history. Hits arrive ranked; order is
// preserved.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	body := struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}{Query: query, Limit: limit}

	var out struct {
		Hits []wireHit `json:"hits"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/messages/search", body, &out); err != nil {
		return nil, err
	}

	hits := make([]search.Hit, 0, len(out.Hits))
	for _, h := range out.Hits {
		createdAt, err := time.Parse(time.RFC3339, h.CreatedAt)
		if err != nil {
			c.logger.Warn("search hit with unparseable timestamp", "message_id", h.MessageID, "created_at", h.CreatedAt)
		}
		hits = append(hits, search.Hit{
			MessageID:         h.MessageID,
			ConversationID:    h.ConversationID,
			ConversationTitle: h.ConversationTitle,
			Role:              conversation.Role(h.Role),
			Snippet:           h.Snippet,
			CreatedAt:         createdAt,
		})
	}
	return hits, nil
}

// ListConversations fetches the caller's conversations, without messages.
func (c *Client) ListConversations(ctx context.Context) ([]conversation.Conversation, error) {
	var out struct {
		Conversations []conversation.Conversation `json:"conversations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/conversations/"+id, nil, nil)
}

// RenameConversation updates a conversation title.
func (c *Client) RenameConversation(ctx context.Context, id, title string) error {
	body := struct {
		Title string `json:"title"`
	}{Title: title}
	return c.doJSON(ctx, http.MethodPatch, "/api/conversations/"+id, body, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &TransportError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
