package txsched

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/bft-labs/flightrec/pkg/spsc"
)

const lenPrefix = 4

// FrameQueue is a bounded FIFO of variable-length frames. Each frame occupies
// one fixed slot of an spsc.Queue, prefixed with its length.
//
// One goroutine may Push and one may Pop. FrameQueue satisfies Source.
type FrameQueue struct {
	q        *spsc.Queue
	maxFrame int

	pushBuf []byte
	popBuf  []byte

	drops     atomic.Uint32
	highWater atomic.Uint32
}

// NewFrameQueue allocates a queue of depth frames of up to maxFrame bytes.
func NewFrameQueue(depth, maxFrame int) (*FrameQueue, error) {
	if depth <= 0 || maxFrame <= 0 {
		return nil, fmt.Errorf("depth %d, max frame %d: %w", depth, maxFrame, ErrInvalidArg)
	}
	slot := (lenPrefix + maxFrame + 3) &^ 3
	q, err := spsc.New(make([]byte, depth*slot), depth, slot)
	if err != nil {
		return nil, err
	}
	return &FrameQueue{
		q:        q,
		maxFrame: maxFrame,
		pushBuf:  make([]byte, slot),
		popBuf:   make([]byte, slot),
	}, nil
}

// Push enqueues a copy of frame. Empty, oversized and overflowing frames are
// dropped and counted.
func (f *FrameQueue) Push(frame []byte) bool {
	if len(frame) == 0 || len(frame) > f.maxFrame {
		f.drops.Add(1)
		return false
	}
	binary.LittleEndian.PutUint32(f.pushBuf, uint32(len(frame)))
	copy(f.pushBuf[lenPrefix:], frame)
	if !f.q.Push(f.pushBuf) {
		f.drops.Add(1)
		return false
	}
	f.noteDepth(uint32(f.q.Len()))
	return true
}

func (f *FrameQueue) noteDepth(depth uint32) {
	for {
		hw := f.highWater.Load()
		if depth <= hw || f.highWater.CompareAndSwap(hw, depth) {
			return
		}
	}
}

// Available reports whether a frame is queued.
func (f *FrameQueue) Available() bool {
	return f.q.Len() > 0
}

// NextLen returns the length of the oldest frame, or 0 when empty.
func (f *FrameQueue) NextLen() int {
	if !f.q.Peek(f.popBuf) {
		return 0
	}
	return int(binary.LittleEndian.Uint32(f.popBuf))
}

// Pop moves the oldest frame into out. When the frame does not fit, it stays
// queued and Pop returns 0.
func (f *FrameQueue) Pop(out []byte) int {
	if !f.q.Peek(f.popBuf) {
		return 0
	}
	n := int(binary.LittleEndian.Uint32(f.popBuf))
	if n > len(out) {
		return 0
	}
	copy(out, f.popBuf[lenPrefix:lenPrefix+n])
	f.q.Discard()
	return n
}

// Len returns the number of queued frames.
func (f *FrameQueue) Len() int { return f.q.Len() }

// Cap returns the queue depth.
func (f *FrameQueue) Cap() int { return f.q.Cap() }

// MaxFrame returns the largest accepted frame.
func (f *FrameQueue) MaxFrame() int { return f.maxFrame }

// Drops returns the number of rejected frames.
func (f *FrameQueue) Drops() uint32 { return f.drops.Load() }

// HighWater returns the deepest the queue has been.
func (f *FrameQueue) HighWater() uint32 { return f.highWater.Load() }
