// Package session drives one conversation's streaming sends: it owns the
// single-flight invariant, folds decoded events into the transient send
// state, dispatches notebook side effects in arrival order, and commits the
// finalized message to the conversation aggregate. Each conversation gets
// its own Controller; controllers never share state.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fatehu/research-assistant-sub001/conversation"
	"github.com/fatehu/research-assistant-sub001/notebook"
	"github.com/fatehu/research-assistant-sub001/protocol"
)

// SendRequest is the wire body of a send. Stream is always true; the engine
// only speaks the streaming contract.
type SendRequest struct {
	ConversationID   string `json:"conversation_id,omitempty"`
	Message          string `json:"message"`
	IncludeContext   bool   `json:"include_context"`
	IncludeVariables bool   `json:"include_variables"`
	UserAuthorized   bool   `json:"user_authorized"`
	Stream           bool   `json:"stream"`
}

// SendOptions are the caller-controlled flags of a send.
type SendOptions struct {
	IncludeContext   bool
	IncludeVariables bool
	// UserAuthorized grants the backend's requested capability. It is never
	// enabled automatically after an authorization gate; the caller decides.
	UserAuthorized bool
}

// Transport opens the event stream for a send. Implementations return the
// raw response body; decoding happens here.
type Transport interface {
	OpenStream(ctx context.Context, req SendRequest) (io.ReadCloser, error)
}

// Dispatcher applies tool-triggered document mutations.
type Dispatcher interface {
	Apply(ctx context.Context, eff notebook.SideEffect) error
}

const defaultUpdateBuffer = 256

// Controller owns one conversation's send lifecycle.
type Controller struct {
	transport  Transport
	dispatcher Dispatcher
	store      conversation.Store
	model      string
	logger     *slog.Logger

	phase   *phaseManager
	updates chan Update

	mu     sync.Mutex
	convID string
	cancel context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithConversationID binds the controller to an existing conversation.
func WithConversationID(id string) Option {
	return func(c *Controller) { c.convID = id }
}

// NewController creates a controller for one conversation.
func NewController(transport Transport, dispatcher Dispatcher, store conversation.Store, model string, opts ...Option) *Controller {
	c := &Controller{
		transport:  transport,
		dispatcher: dispatcher,
		store:      store,
		model:      model,
		logger:     slog.Default(),
		phase:      newPhaseManager(),
		updates:    make(chan Update, defaultUpdateBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Updates returns the progress notification channel. Non-terminal updates
// are dropped if the caller falls behind; terminal ones never are.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

// Phase returns the current send phase.
func (c *Controller) Phase() Phase {
	return c.phase.Current()
}

// ConversationID returns the conversation identity, empty until the first
// commit allocates one.
func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.convID
}

// Send starts a streaming generation for the given user message. It is
// rejected with ErrSendInFlight while a previous send has not reached a
// terminal phase. Event handling is strictly sequential: one goroutine per
// send reads, decodes, reduces, and dispatches in order.
func (c *Controller) Send(ctx context.Context, text string, opts SendOptions) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if err := c.phase.beginSend(); err != nil {
		return err
	}

	sendCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(sendCtx, text, opts)
	return nil
}

// Cancel stops the in-flight send, if any. It is safe to call repeatedly
// and after natural completion; late or duplicate cancellation changes
// nothing.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// run is the single event loop of one send. All suspension points (chunk
// reads, side-effect application) check the send context, so cancellation
// takes effect at the next suspension.
func (c *Controller) run(ctx context.Context, text string, opts SendOptions) {
	red := newReducer()

	req := SendRequest{
		ConversationID:   c.ConversationID(),
		Message:          text,
		IncludeContext:   opts.IncludeContext,
		IncludeVariables: opts.IncludeVariables,
		UserAuthorized:   opts.UserAuthorized,
		Stream:           true,
	}

	body, err := c.transport.OpenStream(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			c.abort()
			return
		}
		c.fail(err)
		return
	}
	defer body.Close()

	c.phase.streamOpened()

	dec := protocol.NewDecoder()
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			c.abort()
			return
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				if c.handleEvent(ctx, red, text, ev) {
					return
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				for _, ev := range dec.Close() {
					if c.handleEvent(ctx, red, text, ev) {
						return
					}
				}
				break
			}
			if ctx.Err() != nil {
				c.abort()
				return
			}
			c.fail(readErr)
			return
		}
	}

	// Natural close without a done event. An authoritative answer followed
	// by stream close still finalizes; anything else is a truncated stream.
	if red.answered {
		c.finalize(red, text, protocol.DoneEvent{})
		return
	}
	c.fail(ErrStreamEnded)
}

// handleEvent folds one event and reports whether the send reached a
// terminal phase.
func (c *Controller) handleEvent(ctx context.Context, red *reducer, userText string, ev protocol.Event) bool {
	switch e := ev.(type) {
	case protocol.ContentEvent:
		red.apply(e)
		c.emit(AnswerDelta{Delta: e.Content, Answer: red.Answer()})
	case protocol.AnswerEvent:
		red.apply(e)
		c.emit(AnswerReplaced{Answer: e.Answer})
	case protocol.ThoughtEvent:
		red.apply(e)
		c.phase.markThinking()
		c.emit(ThoughtDelta{Delta: e.Thought})
	case protocol.ActionEvent:
		red.apply(e)
		c.phase.markActing()
		c.emit(ToolStarted{Tool: e.Tool})
	case protocol.ObservationEvent:
		eff := red.apply(e)
		c.phase.markThinking()
		c.emit(ToolFinished{Tool: lastActionTool(red), Text: e.Observation, Success: e.Success})
		if eff != nil {
			if err := c.dispatcher.Apply(ctx, *eff); err != nil {
				c.logger.Warn("side effect not applied", "error", err)
				c.emit(SideEffectFailed{Err: err})
			}
		}
	case protocol.AuthorizationEvent:
		// A flag, not a phase transition. The send keeps streaming; the
		// caller re-sends with authorization once this turn ends.
		red.apply(e)
		c.emit(AuthorizationRequired{Action: e.Action})
	case protocol.DoneEvent:
		red.apply(e)
		c.finalize(red, userText, e)
		return true
	case protocol.ErrorEvent:
		c.fail(&BackendError{Message: e.Message})
		return true
	}
	return false
}

// finalize writes the transient send state into immutable messages and
// appends them to the conversation, allocating its identity on a first
// send. This is the only place the durable message list is mutated.
func (c *Controller) finalize(red *reducer, userText string, done protocol.DoneEvent) {
	c.phase.beginFinalize()

	c.mu.Lock()
	convID := c.convID
	c.mu.Unlock()

	minted := convID == ""
	if minted {
		convID = done.ConversationID
		if convID == "" {
			convID = conversation.NewID()
		}
	}

	if _, err := c.store.Ensure(convID, conversation.DefaultTitle(userText), c.model); err != nil {
		c.fail(err)
		return
	}

	now := time.Now()
	userMsg := conversation.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Role:           conversation.RoleUser,
		Content:        userText,
		CreatedAt:      now,
	}
	agentMsg := conversation.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Role:           conversation.RoleAgent,
		Content:        red.Answer(),
		Thought:        red.thoughtText(),
		Suggestion:     done.Suggestion,
		Steps:          red.steps,
		Artifacts:      done.Artifacts,
		Usage: conversation.Usage{
			PromptTokens:     done.Usage.PromptTokens,
			CompletionTokens: done.Usage.CompletionTokens,
		},
		CreatedAt: now,
	}

	if err := c.store.Append(userMsg); err != nil {
		c.fail(err)
		return
	}
	if err := c.store.Append(agentMsg); err != nil {
		c.fail(err)
		return
	}

	c.mu.Lock()
	c.convID = convID
	c.mu.Unlock()

	c.phase.setCommitted()
	c.emitTerminal(Committed{
		ConversationID:  convID,
		NewConversation: minted,
		Suggestion:      done.Suggestion,
		Message:         agentMsg,
	})
}

// abort ends a cancelled send. Nothing is committed; already-applied side
// effects are not retracted.
func (c *Controller) abort() {
	if c.phase.setAborted() {
		c.emitTerminal(Stopped{})
	}
}

func (c *Controller) fail(err error) {
	if c.phase.setFailed() {
		c.emitTerminal(Failed{Err: err})
	}
}

// emit delivers a progress update, dropping it if the caller is not
// keeping up.
func (c *Controller) emit(u Update) {
	select {
	case c.updates <- u:
	default:
		c.logger.Debug("dropping update, consumer behind", "update", u)
	}
}

// emitTerminal delivers a terminal update. These are never dropped.
func (c *Controller) emitTerminal(u Update) {
	c.updates <- u
}

func lastActionTool(red *reducer) string {
	for i := len(red.steps) - 1; i >= 0; i-- {
		if red.steps[i].Kind == conversation.StepAction {
			return red.steps[i].Tool
		}
	}
	return ""
}
