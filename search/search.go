// Package search rate-limits interactive message-history queries. Queries
// arrive on every keystroke; the debouncer dispatches one request once the
// input has been quiet for a window, and discards responses that a newer
// query has superseded.
package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fatehu/research-assistant-sub001/conversation"
)

// DefaultWindow is the quiescence window before a query is dispatched.
const DefaultWindow = 300 * time.Millisecond

// DefaultLimit caps the number of hits requested per query.
const DefaultLimit = 20

// Hit is one search result. Hits are ephemeral; they are never persisted.
type Hit struct {
	CreatedAt         time.Time         `json:"created_at"`
	MessageID         string            `json:"message_id"`
	ConversationID    string            `json:"conversation_id"`
	ConversationTitle string            `json:"conversation_title"`
	Role              conversation.Role `json:"role"`
	Snippet           string            `json:"content_snippet"`
}

// QueryFunc performs the actual backend query.
type QueryFunc func(ctx context.Context, query string, limit int) ([]Hit, error)

// Debouncer coalesces rapid successive inputs into one dispatched query.
// A new input before the window elapses restarts the window (debounce, not
// throttle). At most one query is in flight; when a newer input supersedes
// it, its response is dropped on arrival.
type Debouncer struct {
	run     QueryFunc
	deliver func(query string, hits []Hit, err error)
	window  time.Duration
	limit   int

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewDebouncer creates a debouncer delivering results via the given
// callback. The callback runs on the query goroutine; keep it fast.
func NewDebouncer(run QueryFunc, deliver func(query string, hits []Hit, err error)) *Debouncer {
	return &Debouncer{
		run:     run,
		deliver: deliver,
		window:  DefaultWindow,
		limit:   DefaultLimit,
	}
}

// SetWindow overrides the quiescence window. Intended for tests and callers
// with unusual input cadence.
func (d *Debouncer) SetWindow(window time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window = window
}

// Query registers a keystroke-equivalent input. An empty or whitespace-only
// query clears results immediately without waiting for the window.
func (d *Debouncer) Query(ctx context.Context, query string) {
	d.mu.Lock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	gen := d.gen

	if strings.TrimSpace(query) == "" {
		d.mu.Unlock()
		d.deliver("", nil, nil)
		return
	}

	d.timer = time.AfterFunc(d.window, func() {
		d.dispatch(ctx, gen, query)
	})
	d.mu.Unlock()
}

// Stop cancels any pending dispatch. In-flight responses are still
// superseded-checked on arrival.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

func (d *Debouncer) dispatch(ctx context.Context, gen uint64, query string) {
	if d.superseded(gen) {
		return
	}

	hits, err := d.run(ctx, query, d.limit)

	// A newer query may have arrived while this one was in flight; its
	// response wins and this one is discarded.
	if d.superseded(gen) {
		return
	}
	d.deliver(query, hits, err)
}

func (d *Debouncer) superseded(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen != d.gen
}
