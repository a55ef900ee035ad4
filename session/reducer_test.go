package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatehu/research-assistant-sub001/conversation"
	"github.com/fatehu/research-assistant-sub001/notebook"
	"github.com/fatehu/research-assistant-sub001/protocol"
)

func TestReducer_ContentAppendsAnswerReplaces(t *testing.T) {
	r := newReducer()

	r.apply(protocol.ContentEvent{Content: "the answer "})
	r.apply(protocol.ContentEvent{Content: "is forming"})
	assert.Equal(t, "the answer is forming", r.Answer())

	r.apply(protocol.AnswerEvent{Answer: "2+2 is 4"})
	assert.Equal(t, "2+2 is 4", r.Answer())
	assert.True(t, r.answered)
}

func TestReducer_ThoughtDeltasMergeIntoOneStep(t *testing.T) {
	r := newReducer()

	r.apply(protocol.ThoughtEvent{Thought: "check"})
	r.apply(protocol.ThoughtEvent{Thought: "ing"})

	require.Len(t, r.steps, 1)
	assert.Equal(t, "checking", r.steps[0].Text)
}

func TestReducer_ThoughtAfterObservationOpensNewIteration(t *testing.T) {
	r := newReducer()

	r.apply(protocol.ThoughtEvent{Thought: "first"})
	r.apply(protocol.ActionEvent{Tool: "search"})
	r.apply(protocol.ObservationEvent{Observation: "hit", Success: true})
	r.apply(protocol.ThoughtEvent{Thought: "second"})

	rounds := r.Iterations()
	require.Len(t, rounds, 2)
	assert.True(t, rounds[0].Complete())
	assert.Equal(t, "second", rounds[1].Thought.Text)
	assert.False(t, rounds[1].Complete())
}

func TestReducer_ObservationEmitsAtMostOneSideEffect(t *testing.T) {
	r := newReducer()

	r.apply(protocol.ActionEvent{Tool: "notebook_write"})
	eff := r.apply(protocol.ObservationEvent{
		Observation: "cell written",
		Success:     true,
		Payload:     json.RawMessage(`{"artifact":{"id":"c1","code":"x=1"}}`),
	})

	require.NotNil(t, eff)
	assert.Equal(t, notebook.SideEffectInsert, eff.Kind)
	assert.Equal(t, "c1", eff.Artifact.ID)

	// No side effect for a plain observation.
	eff = r.apply(protocol.ObservationEvent{Observation: "4", Success: true})
	assert.Nil(t, eff)
}

func TestReducer_AuthorizationIsAFlagOnly(t *testing.T) {
	r := newReducer()
	r.apply(protocol.ContentEvent{Content: "partial"})
	r.apply(protocol.AuthorizationEvent{Action: "write_notebook"})

	assert.True(t, r.authRequested)
	assert.Equal(t, "write_notebook", r.authAction)
	assert.Equal(t, "partial", r.Answer(), "authorization must not mutate accumulated text")
	assert.Empty(t, r.steps)
}

func TestReducer_ThoughtTextJoinsSteps(t *testing.T) {
	r := newReducer()
	r.apply(protocol.ThoughtEvent{Thought: "first"})
	r.apply(protocol.ActionEvent{Tool: "calc"})
	r.apply(protocol.ObservationEvent{Observation: "4", Success: true})
	r.apply(protocol.ThoughtEvent{Thought: "second"})

	assert.Equal(t, "first\n\nsecond", r.thoughtText())
}

func TestInferSideEffect(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *notebook.SideEffect
	}{
		{
			name:    "artifact insert",
			payload: `{"artifact":{"id":"c1","language":"python","code":"x=1"}}`,
			want: &notebook.SideEffect{
				Kind:     notebook.SideEffectInsert,
				Artifact: protocol.Artifact{ID: "c1", Language: "python", Code: "x=1"},
			},
		},
		{
			name:    "artifact update",
			payload: `{"artifact":{"id":"c1","code":"x=2"},"updated":true}`,
			want: &notebook.SideEffect{
				Kind:     notebook.SideEffectUpdate,
				Artifact: protocol.Artifact{ID: "c1", Code: "x=2"},
			},
		},
		{
			name:    "state change without artifact degrades to refresh",
			payload: `{"state_changed":true}`,
			want:    &notebook.SideEffect{Kind: notebook.SideEffectRefresh},
		},
		{
			name:    "artifact without id is not addressable",
			payload: `{"artifact":{"code":"x=1"}}`,
			want:    nil,
		},
		{
			name:    "plain result payload",
			payload: `{"rows":3}`,
			want:    nil,
		},
		{
			name:    "empty payload",
			payload: ``,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inferSideEffect(json.RawMessage(tt.payload))
			assert.Equal(t, tt.want, got)
		})
	}
}

// The live view and the history view must agree: grouping the reducer's
// steps equals assembling a message persisted with those steps.
func TestReducer_ViewMatchesHistoryAssembly(t *testing.T) {
	r := newReducer()
	r.apply(protocol.ThoughtEvent{Thought: "checking"})
	r.apply(protocol.ActionEvent{Tool: "calc"})
	r.apply(protocol.ObservationEvent{Observation: "4", Success: true})

	live := r.Iterations()
	replayed := conversation.AssembleIterations(conversation.Message{Steps: r.steps})
	assert.Equal(t, live, replayed)
}
