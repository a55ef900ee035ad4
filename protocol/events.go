package protocol

import (
	"encoding/json"
	"log/slog"
)

// EventType discriminates between agent stream event kinds.
type EventType string

const (
	EventTypeContent       EventType = "content"
	EventTypeThought       EventType = "thought"
	EventTypeAction        EventType = "action"
	EventTypeObservation   EventType = "observation"
	EventTypeAnswer        EventType = "answer"
	EventTypeAuthorization EventType = "authorization_required"
	EventTypeDone          EventType = "done"
	EventTypeError         EventType = "error"
)

// Event is the interface for all agent stream events.
type Event interface {
	Kind() EventType
}

// ContentEvent carries a streamed answer text delta.
type ContentEvent struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}

// Kind returns the event type.
func (e ContentEvent) Kind() EventType { return EventTypeContent }

// ThoughtEvent carries a streamed reasoning text delta.
type ThoughtEvent struct {
	Type    EventType `json:"type"`
	Thought string    `json:"thought"`
}

// Kind returns the event type.
func (e ThoughtEvent) Kind() EventType { return EventTypeThought }

// ActionEvent announces that a tool invocation has begun.
type ActionEvent struct {
	Type  EventType              `json:"type"`
	Tool  string                 `json:"tool"`
	Input map[string]interface{} `json:"input,omitempty"`
}

// Kind returns the event type.
func (e ActionEvent) Kind() EventType { return EventTypeAction }

// ObservationEvent reports a completed tool invocation. Payload is the
// tool's raw result object; its shape is tool-specific and is interpreted
// downstream (it may name a notebook artifact or merely flag a state change).
type ObservationEvent struct {
	Type        EventType       `json:"type"`
	Observation string          `json:"observation"`
	Success     bool            `json:"success"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Kind returns the event type.
func (e ObservationEvent) Kind() EventType { return EventTypeObservation }

// AnswerEvent carries the authoritative full answer text. It replaces any
// content deltas accumulated so far.
type AnswerEvent struct {
	Type   EventType `json:"type"`
	Answer string    `json:"answer"`
}

// Kind returns the event type.
func (e AnswerEvent) Kind() EventType { return EventTypeAnswer }

// AuthorizationEvent signals the backend is blocked on a privileged action
// pending a user-granted capability flag.
type AuthorizationEvent struct {
	Type   EventType `json:"type"`
	Action string    `json:"action"`
}

// Kind returns the event type.
func (e AuthorizationEvent) Kind() EventType { return EventTypeAuthorization }

// Usage tracks token counters reported by the backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Artifact is a code or tool artifact produced during a turn. Identity is
// the ID field; two artifacts with the same ID refer to the same notebook
// cell.
type Artifact struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Language string `json:"language,omitempty"`
	Code     string `json:"code"`
}

// DoneEvent is the terminal success event.
type DoneEvent struct {
	Type           EventType  `json:"type"`
	ConversationID string     `json:"conversation_id,omitempty"`
	Artifacts      []Artifact `json:"artifacts,omitempty"`
	Suggestion     string     `json:"suggestion,omitempty"`
	Usage          Usage      `json:"usage"`
}

// Kind returns the event type.
func (e DoneEvent) Kind() EventType { return EventTypeDone }

// ErrorEvent is the terminal failure event.
type ErrorEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"error"`
}

// Kind returns the event type.
func (e ErrorEvent) Kind() EventType { return EventTypeError }

// ParseEvent parses a frame payload into a typed event. Unknown event types
// return (nil, nil) so callers can skip them without treating the stream as
// broken.
func ParseEvent(data []byte) (Event, error) {
	var base struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, err
	}

	switch base.Type {
	case EventTypeContent:
		var e ContentEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeThought:
		var e ThoughtEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeAction:
		var e ActionEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeObservation:
		var e ObservationEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeAnswer:
		var e AnswerEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeAuthorization:
		var e AuthorizationEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeDone:
		var e DoneEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeError:
		var e ErrorEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		slog.Warn("skipping unknown agent event type", "type", base.Type)
		return nil, nil
	}
}
