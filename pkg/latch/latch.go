// Package latch hands a value from a slow writer to a fast reader: two owned
// slots and an atomic index naming the active one.
//
// Publish fills the inactive slot and then flips the index, so Load always
// sees a complete value. Load never blocks. A reader pins the slot it copies
// from, and Publish waits for the inactive slot's readers to leave before
// overwriting it. Publishers are serialized among themselves.
package latch

import (
	"runtime"
	"sync"
	"sync/atomic"
)

type slot[T any] struct {
	v       T
	readers atomic.Int32
}

// Latch is a double-buffered value of type T. The zero value holds the zero
// T and is ready to use.
type Latch[T any] struct {
	mu     sync.Mutex
	slots  [2]slot[T]
	active atomic.Uint32
}

// New returns a latch holding initial.
func New[T any](initial T) *Latch[T] {
	l := &Latch[T]{}
	l.slots[0].v = initial
	return l
}

// Publish makes v the active value.
func (l *Latch[T]) Publish(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.active.Load() ^ 1
	s := &l.slots[next]
	for s.readers.Load() != 0 {
		runtime.Gosched()
	}
	s.v = v
	l.active.Store(next)
}

// Load returns a copy of the active value.
func (l *Latch[T]) Load() T {
	for {
		idx := l.active.Load()
		s := &l.slots[idx]
		s.readers.Add(1)
		// A flip between the two loads means a publisher may already be
		// writing this slot.
		if l.active.Load() != idx {
			s.readers.Add(-1)
			continue
		}
		v := s.v
		s.readers.Add(-1)
		return v
	}
}
