// Package notebook models the external document an agent turn can mutate:
// an ordered list of code artifacts ("cells"). The dispatcher applies
// tool-triggered mutations exactly once and in arrival order; the store is a
// file-backed document that can reload itself from its durable source.
package notebook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fatehu/research-assistant-sub001/protocol"
)

// SideEffectKind discriminates document mutations.
type SideEffectKind int

const (
	// SideEffectInsert appends a new artifact unless one with the same
	// identity already exists.
	SideEffectInsert SideEffectKind = iota
	// SideEffectUpdate replaces a matching artifact, inserting when absent.
	SideEffectUpdate
	// SideEffectRefresh asks the document to reload from its durable source,
	// used when no precise delta can be determined.
	SideEffectRefresh
)

func (k SideEffectKind) String() string {
	switch k {
	case SideEffectInsert:
		return "insert"
	case SideEffectUpdate:
		return "update"
	case SideEffectRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// SideEffect is one requested document mutation. Artifact is meaningful for
// insert and update only.
type SideEffect struct {
	Kind     SideEffectKind
	Artifact protocol.Artifact
}

// Document is the mutation surface of the external document collaborator.
type Document interface {
	Insert(artifact protocol.Artifact) error
	Update(artifact protocol.Artifact) error
	Refresh() error
}

// Dispatcher applies side effects to a document. Failures are reported to
// the caller but must never unwind the stream that requested them; callers
// log and continue.
type Dispatcher struct {
	doc    Document
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher for the given document.
func NewDispatcher(doc Document, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{doc: doc, logger: logger}
}

// Apply performs one side effect. Insert is idempotent under retried
// delivery; update falls back to insert semantics when no matching artifact
// exists. Effects already applied are never rolled back by a later abort.
func (d *Dispatcher) Apply(ctx context.Context, eff SideEffect) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	switch eff.Kind {
	case SideEffectInsert:
		err = d.doc.Insert(eff.Artifact)
	case SideEffectUpdate:
		err = d.doc.Update(eff.Artifact)
	case SideEffectRefresh:
		err = d.doc.Refresh()
	default:
		err = fmt.Errorf("unknown side effect kind %d", eff.Kind)
	}

	if err != nil {
		d.logger.Warn("notebook side effect failed",
			"kind", eff.Kind.String(), "artifact", eff.Artifact.ID, "error", err)
		return &ApplyError{Kind: eff.Kind, ArtifactID: eff.Artifact.ID, Cause: err}
	}
	return nil
}

// ApplyError reports a failed document mutation. It is non-fatal to the
// owning stream.
type ApplyError struct {
	Cause      error
	ArtifactID string
	Kind       SideEffectKind
}

func (e *ApplyError) Error() string {
	if e.ArtifactID != "" {
		return fmt.Sprintf("notebook %s of artifact %q failed: %v", e.Kind, e.ArtifactID, e.Cause)
	}
	return fmt.Sprintf("notebook %s failed: %v", e.Kind, e.Cause)
}

func (e *ApplyError) Unwrap() error {
	return e.Cause
}
