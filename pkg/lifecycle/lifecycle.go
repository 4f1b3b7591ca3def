package lifecycle

import "fmt"

// State is where the runtime is in its start/stop cycle. It is independent
// of the capture session state, which cycles once per window while the
// runtime stays Running.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

var stateNames = [...]string{
	StateStopped:  "Stopped",
	StateStarting: "Starting",
	StateRunning:  "Running",
	StateStopping: "Stopping",
	StateCrashed:  "Crashed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// MarshalText writes the state name, so status files carry "Running"
// rather than an ordinal.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown lifecycle state %q", b)
}

// EventEmitter is told about every accepted transition, after the manager
// has released its lock.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}
