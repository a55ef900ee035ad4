package session

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fatehu/research-assistant-sub001/conversation"
	"github.com/fatehu/research-assistant-sub001/notebook"
	"github.com/fatehu/research-assistant-sub001/protocol"
)

// reducer folds the decoded event sequence into the transient send state:
// the running answer, the flat reasoning step list, and the authorization
// flag. Apply is called strictly in decode order and returns at most one
// side effect, only for observation events.
type reducer struct {
	answer        strings.Builder
	steps         []conversation.IterationStep
	authAction    string
	authRequested bool
	answered      bool
	done          *protocol.DoneEvent
}

func newReducer() *reducer {
	return &reducer{}
}

func (r *reducer) apply(ev protocol.Event) *notebook.SideEffect {
	switch e := ev.(type) {
	case protocol.ContentEvent:
		r.answer.WriteString(e.Content)
	case protocol.AnswerEvent:
		// Authoritative: replaces whatever content deltas accumulated.
		r.answer.Reset()
		r.answer.WriteString(e.Answer)
		r.answered = true
	case protocol.ThoughtEvent:
		r.applyThought(e.Thought)
	case protocol.ActionEvent:
		r.steps = append(r.steps, conversation.IterationStep{
			Kind:  conversation.StepAction,
			Tool:  e.Tool,
			Input: e.Input,
		})
	case protocol.ObservationEvent:
		r.steps = append(r.steps, conversation.IterationStep{
			Kind:    conversation.StepObservation,
			Text:    e.Observation,
			Success: e.Success,
		})
		return inferSideEffect(e.Payload)
	case protocol.AuthorizationEvent:
		r.authRequested = true
		r.authAction = e.Action
	case protocol.DoneEvent:
		done := e
		r.done = &done
	}
	return nil
}

// applyThought appends a reasoning delta. Consecutive deltas extend the same
// thought step; a delta after an observation (or any non-thought step)
// starts a fresh step, which the grouping rule places into a new iteration.
func (r *reducer) applyThought(delta string) {
	if n := len(r.steps); n > 0 && r.steps[n-1].Kind == conversation.StepThought {
		r.steps[n-1].Text += delta
		return
	}
	r.steps = append(r.steps, conversation.IterationStep{
		Kind: conversation.StepThought,
		Text: delta,
	})
}

// Answer returns the running answer text.
func (r *reducer) Answer() string {
	return r.answer.String()
}

// Iterations returns the live reasoning-round view of the accumulated steps.
func (r *reducer) Iterations() []conversation.Iteration {
	return conversation.GroupIterations(r.steps)
}

// thoughtText joins the accumulated thought steps into the final thought
// field persisted on the message.
func (r *reducer) thoughtText() string {
	var parts []string
	for _, step := range r.steps {
		if step.Kind == conversation.StepThought && step.Text != "" {
			parts = append(parts, step.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// inferSideEffect maps an observation payload to a document mutation. The
// payload shape is tool-specific: a payload naming an artifact yields a
// precise insert or update, one that only flags a state change degrades to
// a full refresh. Anything else carries no side effect.
func inferSideEffect(payload json.RawMessage) *notebook.SideEffect {
	if len(payload) == 0 {
		return nil
	}

	node := gjson.GetBytes(payload, "artifact")
	if node.Exists() && node.Get("id").String() != "" {
		var artifact protocol.Artifact
		if err := json.Unmarshal([]byte(node.Raw), &artifact); err != nil {
			return &notebook.SideEffect{Kind: notebook.SideEffectRefresh}
		}
		kind := notebook.SideEffectInsert
		if gjson.GetBytes(payload, "updated").Bool() {
			kind = notebook.SideEffectUpdate
		}
		return &notebook.SideEffect{Kind: kind, Artifact: artifact}
	}

	if gjson.GetBytes(payload, "state_changed").Bool() {
		return &notebook.SideEffect{Kind: notebook.SideEffectRefresh}
	}
	return nil
}
