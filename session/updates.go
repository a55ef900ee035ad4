package session

import "github.com/fatehu/research-assistant-sub001/conversation"

// Update is the interface for send progress notifications delivered on
// Controller.Updates.
type Update interface {
	update() // sealed marker
}

// AnswerDelta fires for each streamed answer text chunk.
type AnswerDelta struct {
	Delta  string
	Answer string // running answer including the delta
}

func (AnswerDelta) update() {}

// AnswerReplaced fires when an authoritative answer overrides the running
// text.
type AnswerReplaced struct {
	Answer string
}

func (AnswerReplaced) update() {}

// ThoughtDelta fires for each streamed reasoning chunk.
type ThoughtDelta struct {
	Delta string
}

func (ThoughtDelta) update() {}

// ToolStarted fires when the agent begins a tool invocation.
type ToolStarted struct {
	Tool string
}

func (ToolStarted) update() {}

// ToolFinished fires when a tool invocation completes.
type ToolFinished struct {
	Tool    string
	Text    string
	Success bool
}

func (ToolFinished) update() {}

// AuthorizationRequired fires when the backend blocks on a privileged
// action. The send is not retried automatically; the caller re-sends with
// the authorization flag set.
type AuthorizationRequired struct {
	Action string
}

func (AuthorizationRequired) update() {}

// SideEffectFailed reports a notebook mutation that could not be applied.
// It is a notice, not a terminal condition.
type SideEffectFailed struct {
	Err error
}

func (SideEffectFailed) update() {}

// Committed is the terminal success notification. NewConversation marks the
// identity handoff: the caller adopts ConversationID for subsequent sends.
type Committed struct {
	ConversationID  string
	Suggestion      string
	Message         conversation.Message
	NewConversation bool
}

func (Committed) update() {}

// Stopped is the terminal notification for a cancelled send. Nothing was
// committed; side effects already applied stay applied.
type Stopped struct{}

func (Stopped) update() {}

// Failed is the terminal notification for a transport or backend failure.
// Nothing was committed.
type Failed struct {
	Err error
}

func (Failed) update() {}
