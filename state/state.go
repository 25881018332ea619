// Package state implements the daemon lifecycle FSM: a DaemonPhase crossed
// with a NetworkMode, driven by ActionProcessor and ProcessSupervisor, with
// a strict legal-transition table and network force-disabled whenever the
// daemon returns to Off.
package state

import (
	"fmt"
	"sync"
)

// DaemonPhase is the daemon's coarse lifecycle phase.
type DaemonPhase int

const (
	Off DaemonPhase = iota
	Starting
	On
	Stopping
)

func (p DaemonPhase) String() string {
	switch p {
	case Starting:
		return "Starting"
	case On:
		return "On"
	case Stopping:
		return "Stopping"
	default:
		return "Off"
	}
}

// NetworkMode tracks DisableNetwork independently of DaemonPhase: a daemon
// can be On with its network still Disabled (the generator always starts
// tor with DisableNetwork=1, per spec §4.3).
type NetworkMode int

const (
	Disabled NetworkMode = iota
	Enabled
)

func (m NetworkMode) String() string {
	if m == Enabled {
		return "Enabled"
	}
	return "Disabled"
}

// State is the full FSM value: a DaemonPhase, a NetworkMode, and — only
// meaningful while Phase is On — a bootstrap percentage reported by
// STATUS_CLIENT BOOTSTRAP events.
type State struct {
	Phase         DaemonPhase
	Network       NetworkMode
	BootstrapPct  int
}

func (s State) String() string {
	if s.Phase == On {
		return fmt.Sprintf("On(%d%%)/%s", s.BootstrapPct, s.Network)
	}
	return fmt.Sprintf("%s/%s", s.Phase, s.Network)
}

// TransitionError reports an attempted State change the legal-transition
// table rejects.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("state: illegal transition %s -> %s", e.From, e.To)
}

// legal records which DaemonPhase values may follow a given DaemonPhase,
// per spec §4.9's transition table. NetworkMode and BootstrapPct changes
// within a phase (Off->Off, On->On) are always legal; only cross-phase
// moves are checked here.
var legal = map[DaemonPhase]map[DaemonPhase]bool{
	Off:      {Starting: true},
	Starting: {On: true, Stopping: true, Off: true}, // Off: spawn failed before reaching On
	On:       {Stopping: true},
	Stopping: {Off: true},
}

// Manager guards a State behind the single legal-transition table,
// force-disabling Network whenever Phase returns to Off (spec §4.9
// invariant: tor can never be reported Off/Enabled). current is read and
// written from the connection reader goroutine (bootstrap events), the
// action goroutine (Transition), and any caller of Current/State, so it is
// guarded by a mutex per spec §5's "short critical section" requirement.
type Manager struct {
	mu      sync.Mutex
	current State
}

// NewManager starts a Manager in Off/Disabled.
func NewManager() *Manager {
	return &Manager{current: State{Phase: Off, Network: Disabled}}
}

// Current returns the Manager's State.
func (m *Manager) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition moves to next, validating next.Phase against the legal table
// and force-disabling Network when next.Phase is Off. An illegal
// cross-phase move is swallowed per spec §4.9 — it returns applied=false
// and leaves the state untouched, rather than surfacing an error; the
// *TransitionError is still constructed so a caller that wants to log or
// test the rejection can retrieve it via the err return.
func (m *Manager) Transition(next State) (previous State, applied bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous = m.current
	if previous.Phase != next.Phase && !legal[previous.Phase][next.Phase] {
		return previous, false, &TransitionError{From: previous, To: next}
	}
	if next.Phase == Off {
		next.Network = Disabled
		next.BootstrapPct = 0
	}
	m.current = next
	return previous, true, nil
}

// SetBootstrapPct updates the bootstrap percentage in place, valid only
// while Phase is On; it is a no-op error for any other phase (bootstrap
// events arriving after a Stopping transition are stale and ignored by
// StateManager, not an application error — callers that want to surface
// that choose to check the error themselves).
func (m *Manager) SetBootstrapPct(pct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Phase != On {
		return fmt.Errorf("state: bootstrap percentage update while phase is %s, not On", m.current.Phase)
	}
	m.current.BootstrapPct = pct
	return nil
}
