package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/flightrec/pkg/log"
)

// mockEmitter tracks state change events for testing.
type mockEmitter struct {
	mu     sync.Mutex
	events []stateChangeEvent
}

type stateChangeEvent struct {
	previous State
	current  State
	reason   string
}

func (m *mockEmitter) OnStateChange(previous, current State, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, stateChangeEvent{previous, current, reason})
}

func (m *mockEmitter) Events() []stateChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]stateChangeEvent{}, m.events...)
}

func newManager() *Manager {
	return NewManager(log.NewNoopLogger(), nil)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "Stopped"},
		{StateStarting, "Starting"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{StateCrashed, "Crashed"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestState_TextRoundTrip(t *testing.T) {
	for _, st := range []State{StateStopped, StateStarting, StateRunning, StateStopping, StateCrashed} {
		b, err := st.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) = %v", st, err)
		}
		var got State
		if err := got.UnmarshalText(b); err != nil || got != st {
			t.Errorf("UnmarshalText(%q) = %v, %v", b, got, err)
		}
	}

	var st State
	if err := st.UnmarshalText([]byte("Paused")); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestManager_ValidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{"stopped to starting", StateStopped, StateStarting},
		{"starting to running", StateStarting, StateRunning},
		{"starting to stopping", StateStarting, StateStopping},
		{"starting to crashed", StateStarting, StateCrashed},
		{"running to stopping", StateRunning, StateStopping},
		{"running to crashed", StateRunning, StateCrashed},
		{"stopping to stopped", StateStopping, StateStopped},
		{"stopping to crashed", StateStopping, StateCrashed},
		{"crashed to starting", StateCrashed, StateStarting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager()
			m.state = tt.from

			if err := m.TransitionTo(tt.to, "test"); err != nil {
				t.Fatalf("TransitionTo() error = %v", err)
			}
			if m.State() != tt.to {
				t.Errorf("state = %v after transition, want %v", m.State(), tt.to)
			}
		})
	}
}

func TestManager_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		wantErr error
	}{
		{"stopped to running", StateStopped, StateRunning, ErrNotRunning},
		{"stopped to stopping", StateStopped, StateStopping, ErrNotRunning},
		{"starting to stopped", StateStarting, StateStopped, ErrAlreadyRunning},
		{"running to starting", StateRunning, StateStarting, ErrAlreadyRunning},
		{"running to stopped", StateRunning, StateStopped, ErrAlreadyRunning},
		{"stopping to running", StateStopping, StateRunning, ErrAlreadyRunning},
		{"crashed to running", StateCrashed, StateRunning, ErrNotRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager()
			m.state = tt.from

			err := m.TransitionTo(tt.to, "test")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("TransitionTo() error = %v, want %v", err, tt.wantErr)
			}
			if m.State() != tt.from {
				t.Errorf("state changed to %v on invalid transition, want %v", m.State(), tt.from)
			}
		})
	}
}

func TestManager_EmitsEvents(t *testing.T) {
	emitter := &mockEmitter{}
	m := NewManager(nil, emitter)

	_ = m.TransitionTo(StateStarting, "start")
	_ = m.TransitionTo(StateRunning, "running")

	events := emitter.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].previous != StateStopped || events[0].current != StateStarting {
		t.Errorf("event 0: got %v->%v, want Stopped->Starting", events[0].previous, events[0].current)
	}
	if events[1].reason != "running" {
		t.Errorf("event 1 reason = %q", events[1].reason)
	}
}

func TestManager_CanStartCanStop(t *testing.T) {
	tests := []struct {
		state     State
		wantStart bool
		wantStop  bool
	}{
		{StateStopped, true, false},
		{StateStarting, false, true},
		{StateRunning, false, true},
		{StateStopping, false, false},
		{StateCrashed, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			m := newManager()
			m.state = tt.state
			if got := m.CanStart(); got != tt.wantStart {
				t.Errorf("CanStart() = %v, want %v", got, tt.wantStart)
			}
			if got := m.CanStop(); got != tt.wantStop {
				t.Errorf("CanStop() = %v, want %v", got, tt.wantStop)
			}
		})
	}
}

func TestManager_Cancel(t *testing.T) {
	m := newManager()
	m.Cancel() // nil-safe

	ctx, cancel := context.WithCancel(context.Background())
	m.SetCancel(cancel)
	m.Cancel()

	select {
	case <-ctx.Done():
	default:
		t.Error("context should be canceled after Cancel()")
	}
}

func TestManager_GoAndWait(t *testing.T) {
	m := newManager()
	m.Go(func() { time.Sleep(10 * time.Millisecond) })
	m.Go(func() {})

	if err := m.WaitWithTimeout(time.Second); err != nil {
		t.Errorf("WaitWithTimeout() = %v, want nil", err)
	}
}

func TestManager_WaitWithTimeout_Timeout(t *testing.T) {
	m := newManager()
	release := make(chan struct{})
	m.Go(func() { <-release })

	err := m.WaitWithTimeout(10 * time.Millisecond)
	if !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("WaitWithTimeout() = %v, want ErrShutdownTimeout", err)
	}
	close(release)
	if err := m.WaitWithTimeout(time.Second); err != nil {
		t.Errorf("WaitWithTimeout() after release = %v", err)
	}
}

func TestBackoff_WaitGrowsAndResets(t *testing.T) {
	b := NewBackoff(time.Millisecond, 4*time.Millisecond)
	ctx := context.Background()

	for _, want := range []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond} {
		if err := b.Wait(ctx); err != nil {
			t.Fatalf("Wait() = %v", err)
		}
		if b.Current() != want {
			t.Errorf("Current() = %v, want %v", b.Current(), want)
		}
	}
	b.Reset()
	if b.Current() != time.Millisecond {
		t.Errorf("Current() after Reset = %v", b.Current())
	}
}

func TestBackoff_WaitCanceled(t *testing.T) {
	b := NewBackoff(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
}

func TestBackoff_ZeroNeverWaits(t *testing.T) {
	b := NewBackoff(0, 0)
	if err := b.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v", err)
	}
}
