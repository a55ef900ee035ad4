package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for common send failures.
var (
	ErrSendInFlight = errors.New("a send is already in flight for this conversation")
	ErrEmptyMessage = errors.New("message must not be empty")
	ErrStreamEnded  = errors.New("stream ended before a terminal event")
)

// BackendError carries the message of a backend-declared `error` event. The
// text is surfaced to the caller verbatim.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("agent error: %s", e.Message)
}
