// Package jobs drives the two long-running backend operations the dashboard
// can start: ingesting new messages and scoring a batch of them.
package jobs

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/modq/internal/bus"
)

// ErrJobAlreadyActive is returned when a job of the same kind is running.
var ErrJobAlreadyActive = errors.New("job already active")

// Kind names a job type. One job per kind may be active at a time.
type Kind string

const (
	KindIngest Kind = "ingest"
	KindScore  Kind = "score"
)

// Phase is the lifecycle position of a job.
type Phase string

const (
	Idle      Phase = "idle"
	Running   Phase = "running"
	Polling   Phase = "polling"
	Succeeded Phase = "succeeded"
	Failed    Phase = "failed"
	TimedOut  Phase = "timed_out"
	Complete  Phase = "complete"
)

var ingestTransitions = map[Phase][]Phase{
	Idle:      {Running},
	Running:   {Polling, Failed, Idle},
	Polling:   {Polling, Succeeded, TimedOut, Failed, Idle},
	Succeeded: {Idle},
	TimedOut:  {Idle},
	Failed:    {Running, Idle},
}

var scoreTransitions = map[Phase][]Phase{
	Idle:     {Running},
	Running:  {Complete, Failed, Idle},
	Complete: {Running, Idle},
	Failed:   {Running, Idle},
}

// State is a snapshot of a job. Result holds the kind-specific payload of the
// last completed step (IngestReport or BatchResult).
type State struct {
	Kind    Kind
	Phase   Phase
	Attempt int
	Result  any
	Err     error
}

// Active reports whether the job is still working.
func (s State) Active() bool {
	return s.Phase == Running || s.Phase == Polling
}

func (s State) String() string {
	switch {
	case s.Phase == Polling:
		return fmt.Sprintf("%s %s (%d)", s.Kind, s.Phase, s.Attempt)
	case s.Err != nil:
		return fmt.Sprintf("%s %s: %v", s.Kind, s.Phase, s.Err)
	default:
		return fmt.Sprintf("%s %s", s.Kind, s.Phase)
	}
}

// StateChange is the payload of job.state_changed events.
type StateChange struct {
	From State
	To   State
}

// Machine tracks and enforces job phase transitions.
type Machine struct {
	mu      sync.RWMutex
	table   map[Phase][]Phase
	current State
	bus     *bus.Bus
}

// NewMachine creates an idle machine for the given job kind.
func NewMachine(kind Kind, b *bus.Bus) *Machine {
	table := ingestTransitions
	if kind == KindScore {
		table = scoreTransitions
	}
	return &Machine{
		table:   table,
		current: State{Kind: kind, Phase: Idle},
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Begin moves the job into Running, or fails with ErrJobAlreadyActive.
func (m *Machine) Begin() error {
	return m.Transition(State{Phase: Running})
}

// Transition attempts to move to next. The kind is always the machine's own.
func (m *Machine) Transition(next State) error {
	m.mu.Lock()
	from := m.current
	next.Kind = from.Kind
	if !slices.Contains(m.table[from.Phase], next.Phase) {
		m.mu.Unlock()
		if next.Phase == Running && from.Active() {
			return ErrJobAlreadyActive
		}
		return fmt.Errorf("invalid %s transition from %s to %s", from.Kind, from.Phase, next.Phase)
	}
	m.current = next
	m.mu.Unlock()

	m.bus.Emit(bus.KindJobState, StateChange{From: from, To: next})
	return nil
}
