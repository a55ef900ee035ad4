// Package conversation holds the durable chat data model: conversations,
// their committed messages, and the iteration-step vocabulary shared by the
// live session reducer and the history view. Messages are immutable once
// appended; streaming state never lands here.
package conversation

import (
	"strings"
	"time"

	"github.com/fatehu/research-assistant-sub001/protocol"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// Usage tracks token counters for a committed message.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Message is one committed conversation entry. Steps and Thought hold the
// final reasoning shape for agent messages so the same iteration view can be
// rebuilt after the stream is gone.
type Message struct {
	CreatedAt      time.Time           `json:"created_at"`
	ID             string              `json:"id"`
	ConversationID string              `json:"conversation_id"`
	Role           Role                `json:"role"`
	Content        string              `json:"content"`
	Thought        string              `json:"thought,omitempty"`
	Suggestion     string              `json:"suggestion,omitempty"`
	Steps          []IterationStep     `json:"react_steps,omitempty"`
	Artifacts      []protocol.Artifact `json:"artifacts,omitempty"`
	Usage          Usage               `json:"usage"`
}

// Conversation is the aggregate owning an ordered message sequence.
type Conversation struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
}

const maxDefaultTitle = 48

// DefaultTitle derives a conversation title from its first user message.
func DefaultTitle(firstMessage string) string {
	title := strings.TrimSpace(firstMessage)
	if title == "" {
		return "New conversation"
	}
	if len(title) > maxDefaultTitle {
		title = strings.TrimSpace(title[:maxDefaultTitle]) + "…"
	}
	return title
}
