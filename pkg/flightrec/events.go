package flightrec

import (
	"time"

	"github.com/bft-labs/flightrec/pkg/lifecycle"
	"github.com/bft-labs/flightrec/pkg/txsched"
)

// State is the lifecycle state of a Runtime.
type State = lifecycle.State

// Lifecycle states.
const (
	StateStopped  = lifecycle.StateStopped
	StateStarting = lifecycle.StateStarting
	StateRunning  = lifecycle.StateRunning
	StateStopping = lifecycle.StateStopping
	StateCrashed  = lifecycle.StateCrashed
)

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// WindowDrainedEvent is emitted once a stopped window has been fully sent.
type WindowDrainedEvent struct {
	SessionID      uint32
	WindowLen      int
	DroppedBytes   uint64
	DroppedRecords uint32
	Overrun        bool
	Incomplete     bool

	// Archived is set when the window was copied to the archive store at
	// ArchiveAddr.
	Archived    bool
	ArchiveAddr int64

	// Duration is the time from the window stopping to its last byte
	// leaving.
	Duration time.Duration
}

// LinkErrorEvent is emitted when the sink rejects a frame. The frame is lost.
type LinkErrorEvent struct {
	Class txsched.Class
	Bytes int
	Error error
}

// EventHandler receives runtime events. Handlers are called synchronously
// from the runtime goroutines and must return quickly.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnWindowDrained(WindowDrainedEvent)
	OnLinkError(LinkErrorEvent)
}

// BaseEventHandler ignores every event. Embed it to handle only some.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)     {}
func (BaseEventHandler) OnWindowDrained(WindowDrainedEvent) {}
func (BaseEventHandler) OnLinkError(LinkErrorEvent)         {}

// eventEmitter adapts an EventHandler to lifecycle.EventEmitter.
type eventEmitter struct {
	handler EventHandler
}

func (e *eventEmitter) OnStateChange(previous, current lifecycle.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{Previous: previous, Current: current, Reason: reason})
}

func (e *eventEmitter) windowDrained(ev WindowDrainedEvent) {
	if e.handler != nil {
		e.handler.OnWindowDrained(ev)
	}
}

func (e *eventEmitter) linkError(ev LinkErrorEvent) {
	if e.handler != nil {
		e.handler.OnLinkError(ev)
	}
}
