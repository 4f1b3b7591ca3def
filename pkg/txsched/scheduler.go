package txsched

import (
	"fmt"
	"sync/atomic"

	"github.com/bft-labs/flightrec/internal/domain"
)

// Errors returned by this package.
var (
	ErrInvalidArg = domain.ErrInvalidArg
	ErrNotReady   = domain.ErrNotReady
)

// Class is the traffic class of a transmitted frame.
type Class int

const (
	ClassNone Class = iota
	ClassPDO
	ClassLog
)

// String returns a human-readable representation of the class.
func (c Class) String() string {
	switch c {
	case ClassNone:
		return "NONE"
	case ClassPDO:
		return "PDO"
	case ClassLog:
		return "LOG"
	default:
		return "UNKNOWN"
	}
}

// Source is one class of outgoing frames.
type Source interface {
	// Available reports whether a frame is waiting.
	Available() bool

	// Pop moves the next frame into out and returns its length. A frame that
	// does not fit out stays queued and Pop returns 0.
	Pop(out []byte) int
}

// Sources groups the two classes the scheduler arbitrates between.
// Either may be nil.
type Sources struct {
	PDO Source
	Log Source
}

// Scheduler interleaves PDO frames, which always win and are never metered,
// with LOG frames, which spend a byte budget refilled once per tick.
//
// Next must be called from a single goroutine. OnTick and Tune may be called
// from any goroutine.
type Scheduler struct {
	budget atomic.Uint32
	step   atomic.Uint32
	max    atomic.Uint32
}

// New creates a scheduler with an empty budget.
func New(step, max uint32) *Scheduler {
	s := &Scheduler{}
	s.step.Store(step)
	s.max.Store(max)
	return s
}

// OnTick adds one step to the budget, saturating at the maximum.
func (s *Scheduler) OnTick() {
	step, max := s.step.Load(), s.max.Load()
	for {
		cur := s.budget.Load()
		next := cur + step
		if next < cur || next > max {
			next = max
		}
		if s.budget.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Tune changes the refill step and maximum. A budget above the new maximum
// is clamped.
func (s *Scheduler) Tune(step, max uint32) {
	s.step.Store(step)
	s.max.Store(max)
	for {
		cur := s.budget.Load()
		if cur <= max || s.budget.CompareAndSwap(cur, max) {
			return
		}
	}
}

// Budget returns the current LOG byte balance.
func (s *Scheduler) Budget() uint32 {
	return s.budget.Load()
}

// Limits returns the refill step and maximum.
func (s *Scheduler) Limits() (step, max uint32) {
	return s.step.Load(), s.max.Load()
}

// Next picks the next frame for the link and copies it into out.
//
// A waiting PDO frame is always returned first and costs no budget. Otherwise
// a LOG frame of at most min(budget, len(out)) bytes is returned and its
// length is debited. ErrNotReady means nothing can be sent right now.
func (s *Scheduler) Next(src Sources, out []byte) (Class, int, error) {
	if src.PDO != nil && src.PDO.Available() {
		if n := src.PDO.Pop(out); n > 0 {
			return ClassPDO, n, nil
		}
	}

	if src.Log != nil && src.Log.Available() {
		budget := s.budget.Load()
		if budget == 0 {
			return ClassNone, 0, ErrNotReady
		}
		allowed := min(int(budget), len(out))
		n := src.Log.Pop(out[:allowed])
		if n > allowed {
			return ClassNone, 0, fmt.Errorf("log source returned %d bytes, allowed %d: %w", n, allowed, ErrInvalidArg)
		}
		if n > 0 {
			s.debit(uint32(n))
			return ClassLog, n, nil
		}
	}

	return ClassNone, 0, ErrNotReady
}

func (s *Scheduler) debit(n uint32) {
	for {
		cur := s.budget.Load()
		next := uint32(0)
		if cur > n {
			next = cur - n
		}
		if s.budget.CompareAndSwap(cur, next) {
			return
		}
	}
}
