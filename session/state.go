package session

import "sync"

// Phase is the lifecycle state of a send.
//
//	Idle → Sending → {Thinking, Acting} (looping) → Finalizing
//	     → {Committed, Aborted, Failed}
//
// Terminal phases admit a new send; everything between Sending and
// Finalizing is in flight and rejects one.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseThinking
	PhaseActing
	PhaseFinalizing
	PhaseCommitted
	PhaseAborted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseThinking:
		return "thinking"
	case PhaseActing:
		return "acting"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseCommitted:
		return "committed"
	case PhaseAborted:
		return "aborted"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends a send.
func (p Phase) Terminal() bool {
	return p == PhaseCommitted || p == PhaseAborted || p == PhaseFailed
}

// InFlight reports whether a send is outstanding.
func (p Phase) InFlight() bool {
	switch p {
	case PhaseSending, PhaseThinking, PhaseActing, PhaseFinalizing:
		return true
	default:
		return false
	}
}

// phaseManager manages thread-safe phase transitions.
type phaseManager struct {
	mu    sync.RWMutex
	phase Phase
}

func newPhaseManager() *phaseManager {
	return &phaseManager{phase: PhaseIdle}
}

func (m *phaseManager) Current() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// beginSend claims the single-flight slot. Only Idle and terminal phases
// accept a send.
func (m *phaseManager) beginSend() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase.InFlight() {
		return ErrSendInFlight
	}
	m.phase = PhaseSending
	return nil
}

func (m *phaseManager) streamOpened() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseSending {
		m.phase = PhaseThinking
	}
}

func (m *phaseManager) markThinking() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseActing {
		m.phase = PhaseThinking
	}
}

func (m *phaseManager) markActing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseThinking || m.phase == PhaseSending {
		m.phase = PhaseActing
	}
}

func (m *phaseManager) beginFinalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.phase.Terminal() {
		m.phase = PhaseFinalizing
	}
}

func (m *phaseManager) setCommitted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = PhaseCommitted
}

// setAborted moves to Aborted unless the send already reached a terminal
// phase. The bool reports whether the transition happened, making repeated
// or late cancellation a no-op.
func (m *phaseManager) setAborted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase.Terminal() {
		return false
	}
	m.phase = PhaseAborted
	return true
}

func (m *phaseManager) setFailed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase.Terminal() {
		return false
	}
	m.phase = PhaseFailed
	return true
}
