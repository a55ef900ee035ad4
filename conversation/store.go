package conversation

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for operations on an unknown conversation.
var ErrNotFound = errors.New("conversation not found")

// Store is the conversation aggregate boundary. Messages are appended only
// at commit time; deleting a conversation cascades to its messages.
type Store interface {
	// Ensure returns the conversation with the given id, creating it (with
	// the given title and model label) if it does not exist yet.
	Ensure(id, title, model string) (*Conversation, error)
	Get(id string) (*Conversation, error)
	List() []*Conversation
	Append(msg Message) error
	Rename(id, title string) error
	Delete(id string) error
}

// MemStore is an in-memory Store. It is the client-side read model; the
// durable copy lives behind the backend's REST interface.
type MemStore struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{convs: make(map[string]*Conversation)}
}

// NewID mints a conversation identity.
func NewID() string {
	return uuid.NewString()
}

// Ensure returns the conversation with the given id, creating it if needed.
func (s *MemStore) Ensure(id, title, model string) (*Conversation, error) {
	if id == "" {
		return nil, errors.New("conversation id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.convs[id]; ok {
		return conv, nil
	}

	now := time.Now()
	conv := &Conversation{
		ID:        id,
		Title:     title,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.convs[id] = conv
	return conv, nil
}

// Get returns the conversation with the given id.
func (s *MemStore) Get(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conv, nil
}

// List returns all conversations, most recently updated first.
func (s *MemStore) List() []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Conversation, 0, len(s.convs))
	for _, conv := range s.convs {
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Append commits a message to its conversation.
func (s *MemStore) Append(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[msg.ConversationID]
	if !ok {
		return ErrNotFound
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now()
	return nil
}

// Rename updates a conversation title.
func (s *MemStore) Rename(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = time.Now()
	return nil
}

// Delete removes a conversation and, with it, all of its messages.
func (s *MemStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.convs[id]; !ok {
		return ErrNotFound
	}
	delete(s.convs, id)
	return nil
}
