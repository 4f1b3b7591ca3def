// Package spsc provides a single-producer/single-consumer ring of fixed-size
// slots for handing snapshots from the fast domain to the slow domain.
//
// Neither side blocks. Push fails when the ring is full and Pop fails when it
// is empty. Exactly one goroutine may push and exactly one may pop.
package spsc

import (
	"fmt"
	"sync/atomic"

	"github.com/bft-labs/flightrec/internal/domain"
)

// ErrInvalidArg is returned by New for a malformed layout.
var ErrInvalidArg = domain.ErrInvalidArg

// Queue is a fixed-slot SPSC ring over caller-owned storage.
type Queue struct {
	buf      []byte
	capacity uint32
	itemSize uint32

	writeIdx atomic.Uint32
	readIdx  atomic.Uint32
	count    atomic.Uint32
}

// New lays a queue of capacity slots of itemSize bytes over storage.
// len(storage) must equal capacity*itemSize and be a multiple of 4.
func New(storage []byte, capacity, itemSize int) (*Queue, error) {
	if capacity <= 0 || itemSize <= 0 {
		return nil, fmt.Errorf("capacity %d, item size %d: %w", capacity, itemSize, ErrInvalidArg)
	}
	if len(storage) != capacity*itemSize {
		return nil, fmt.Errorf("storage %d bytes, want %d: %w", len(storage), capacity*itemSize, ErrInvalidArg)
	}
	if len(storage)%4 != 0 {
		return nil, fmt.Errorf("storage %d bytes not 4-byte aligned: %w", len(storage), ErrInvalidArg)
	}
	return &Queue{
		buf:      storage,
		capacity: uint32(capacity),
		itemSize: uint32(itemSize),
	}, nil
}

// Push copies item into the next free slot. It returns false when the queue
// is full or item is shorter than a slot. Producer side only.
func (q *Queue) Push(item []byte) bool {
	if uint32(len(item)) < q.itemSize {
		return false
	}
	if q.count.Load() >= q.capacity {
		return false
	}
	w := q.writeIdx.Load()
	off := w * q.itemSize
	copy(q.buf[off:off+q.itemSize], item)
	q.writeIdx.Store((w + 1) % q.capacity)
	// Publishing the count last makes the slot visible only once it is complete.
	q.count.Add(1)
	return true
}

// Pop copies the oldest slot into out. It returns false when the queue is
// empty or out is shorter than a slot. Consumer side only.
func (q *Queue) Pop(out []byte) bool {
	if uint32(len(out)) < q.itemSize {
		return false
	}
	if q.count.Load() == 0 {
		return false
	}
	r := q.readIdx.Load()
	off := r * q.itemSize
	copy(out, q.buf[off:off+q.itemSize])
	q.readIdx.Store((r + 1) % q.capacity)
	q.count.Add(^uint32(0))
	return true
}

// Peek copies the oldest slot into out without consuming it. Consumer side only.
func (q *Queue) Peek(out []byte) bool {
	if uint32(len(out)) < q.itemSize {
		return false
	}
	if q.count.Load() == 0 {
		return false
	}
	off := q.readIdx.Load() * q.itemSize
	copy(out, q.buf[off:off+q.itemSize])
	return true
}

// Discard drops the oldest slot. Consumer side only.
func (q *Queue) Discard() bool {
	if q.count.Load() == 0 {
		return false
	}
	q.readIdx.Store((q.readIdx.Load() + 1) % q.capacity)
	q.count.Add(^uint32(0))
	return true
}

// Len returns the number of queued items. The value may be stale by the time
// the caller looks at it; use it for diagnostics only.
func (q *Queue) Len() int {
	return int(q.count.Load())
}

// Cap returns the number of slots.
func (q *Queue) Cap() int {
	return int(q.capacity)
}

// ItemSize returns the slot size in bytes.
func (q *Queue) ItemSize() int {
	return int(q.itemSize)
}

// Indices returns the current write and read slot indices for diagnostics.
func (q *Queue) Indices() (write, read int) {
	return int(q.writeIdx.Load()), int(q.readIdx.Load())
}
