package jobs

import (
	"errors"
	"testing"

	"github.com/matheus3301/modq/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(KindIngest, nil)
	if got := m.Current(); got.Phase != Idle || got.Kind != KindIngest {
		t.Errorf("initial state = %+v, want idle ingest", got)
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		kind Kind
		path []Phase
	}{
		{KindIngest, []Phase{Running, Polling, Polling, Succeeded, Idle}},
		{KindIngest, []Phase{Running, Polling, TimedOut, Idle}},
		{KindIngest, []Phase{Running, Failed, Running, Idle}},
		{KindIngest, []Phase{Running, Polling, Idle}},
		{KindScore, []Phase{Running, Complete, Running, Failed, Running, Complete}},
		{KindScore, []Phase{Running, Idle}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			m := NewMachine(tt.kind, nil)
			for _, p := range tt.path {
				if err := m.Transition(State{Phase: p}); err != nil {
					t.Fatalf("Transition(%s -> %s) error = %v", m.Current().Phase, p, err)
				}
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(KindScore, nil)
	if err := m.Transition(State{Phase: Complete}); err == nil {
		t.Error("Transition(idle -> complete) should fail")
	}
	m = NewMachine(KindScore, nil)
	if err := m.Transition(State{Phase: Polling}); err == nil {
		t.Error("score jobs never poll")
	}
}

func TestBeginWhileActive(t *testing.T) {
	m := NewMachine(KindIngest, nil)
	if err := m.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := m.Begin(); !errors.Is(err, ErrJobAlreadyActive) {
		t.Errorf("second Begin error = %v, want ErrJobAlreadyActive", err)
	}
	if err := m.Transition(State{Phase: Polling, Attempt: 1}); err != nil {
		t.Fatal(err)
	}
	if err := m.Begin(); !errors.Is(err, ErrJobAlreadyActive) {
		t.Errorf("Begin while polling error = %v, want ErrJobAlreadyActive", err)
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("job.", 10)
	defer unsub()

	m := NewMachine(KindScore, b)
	if err := m.Begin(); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindJobState {
		t.Errorf("event kind = %q, want %q", evt.Kind, bus.KindJobState)
	}
	change, ok := evt.Payload.(StateChange)
	if !ok {
		t.Fatalf("payload type = %T, want StateChange", evt.Payload)
	}
	if change.From.Phase != Idle || change.To.Phase != Running || change.To.Kind != KindScore {
		t.Errorf("change = %+v", change)
	}
}
