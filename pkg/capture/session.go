package capture

import (
	"fmt"

	"github.com/bft-labs/flightrec/internal/domain"
)

// Errors returned by this package.
var (
	ErrInvalidArg = domain.ErrInvalidArg
	ErrNoSpace    = domain.ErrNoSpace
	ErrNotArmed   = domain.ErrNotArmed
	ErrNotReady   = domain.ErrNotReady
)

// State is the capture session state.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateTriggered
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateArmed:
		return "Armed"
	case StateTriggered:
		return "Triggered"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Status is a snapshot of the session counters.
type Status struct {
	SessionID    uint32 `json:"session_id"`
	State        State  `json:"state"`
	WindowLen    int    `json:"window_len"`
	DroppedBytes uint64 `json:"dropped_bytes"`
	Overrun      bool   `json:"overrun"`
	Incomplete   bool   `json:"incomplete"`
}

// Session is a byte ring recording a pretrigger/posttrigger window.
//
// A Session is not safe for concurrent use. The recorder serializes access
// through its critical section.
type Session struct {
	buf []byte

	state     State
	sessionID uint32
	wptr      int

	pre         int
	post        int
	preFilled   int
	postWritten int

	windowStart int
	windowLen   int

	dropped    uint64
	overrun    bool
	incomplete bool
}

// New creates an idle session over storage. The ring capacity is len(storage).
func New(storage []byte) (*Session, error) {
	if len(storage) == 0 {
		return nil, fmt.Errorf("empty capture storage: %w", ErrInvalidArg)
	}
	return &Session{buf: storage}, nil
}

// Capacity returns the ring size in bytes.
func (s *Session) Capacity() int {
	return len(s.buf)
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Arm resets the session and starts pretrigger recording.
func (s *Session) Arm(sessionID uint32, pre, post int) error {
	if pre < 0 || post < 0 {
		return fmt.Errorf("pretrigger %d, posttrigger %d: %w", pre, post, ErrInvalidArg)
	}
	if pre+post > len(s.buf) {
		return fmt.Errorf("window %d+%d exceeds %d-byte ring: %w", pre, post, len(s.buf), ErrNoSpace)
	}
	s.reset()
	s.sessionID = sessionID
	s.pre = pre
	s.post = post
	s.state = StateArmed
	return nil
}

// Trigger fixes the pretrigger part of the window and starts posttrigger
// recording.
func (s *Session) Trigger() error {
	if s.state != StateArmed {
		return fmt.Errorf("trigger in state %s: %w", s.state, ErrNotArmed)
	}
	keep := min(s.preFilled, s.pre)
	s.windowStart = (s.wptr + len(s.buf) - keep) % len(s.buf)
	s.windowLen = keep
	s.postWritten = 0
	s.state = StateTriggered
	return nil
}

// Stop ends the session. Stopping before the posttrigger window filled
// marks the session incomplete.
func (s *Session) Stop() {
	switch s.state {
	case StateArmed:
		s.incomplete = true
	case StateTriggered:
		if s.postWritten < s.post {
			s.incomplete = true
		}
	}
	s.state = StateStopped
}

// Clear returns the session to idle and drops all counters.
func (s *Session) Clear() {
	s.reset()
}

func (s *Session) reset() {
	s.state = StateIdle
	s.sessionID = 0
	s.wptr = 0
	s.pre, s.post = 0, 0
	s.preFilled, s.postWritten = 0, 0
	s.windowStart, s.windowLen = 0, 0
	s.dropped = 0
	s.overrun = false
	s.incomplete = false
}

// Writable returns how many bytes a write in the current state would accept
// without dropping anything.
func (s *Session) Writable() int {
	switch s.state {
	case StateArmed:
		return len(s.buf)
	case StateTriggered:
		return s.post - s.postWritten
	default:
		return 0
	}
}

// Write records p and returns the number of bytes stored.
//
// While armed every byte goes into the ring and the oldest data is
// overwritten. Overwritten history and the head of a write larger than the
// ring count as dropped. While triggered, bytes beyond the posttrigger budget
// are dropped and filling the budget stops the session. Idle and stopped
// sessions store nothing.
func (s *Session) Write(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	switch s.state {
	case StateArmed:
		return s.writeArmed(p)
	case StateTriggered:
		return s.writeTriggered(p)
	default:
		return 0
	}
}

func (s *Session) writeArmed(p []byte) int {
	capacity := len(s.buf)
	if len(p) > capacity {
		s.dropped += uint64(len(p) - capacity)
		p = p[len(p)-capacity:]
	}
	after := s.preFilled + len(p)
	if after > capacity {
		// Pretrigger bytes overwritten by the wrap are lost history.
		s.dropped += uint64(after - capacity)
		s.preFilled = capacity
	} else {
		s.preFilled = after
	}
	s.copyIn(p)
	return len(p)
}

func (s *Session) writeTriggered(p []byte) int {
	remaining := s.post - s.postWritten
	if remaining <= 0 {
		s.state = StateStopped
		return 0
	}
	n := min(len(p), remaining)
	if n < len(p) {
		s.dropped += uint64(len(p) - n)
	}
	s.copyIn(p[:n])
	s.postWritten += n
	s.windowLen += n
	if s.postWritten >= s.post {
		s.state = StateStopped
	}
	return n
}

// copyIn writes p at the cursor, splitting at the end of the ring.
func (s *Session) copyIn(p []byte) {
	first := copy(s.buf[s.wptr:], p)
	if first < len(p) {
		copy(s.buf, p[first:])
	}
	s.wptr = (s.wptr + len(p)) % len(s.buf)
}

// Read copies window bytes starting at offset into dst. The window is only
// readable once the session is stopped; an offset past the window reads
// nothing.
func (s *Session) Read(offset int, dst []byte) (int, error) {
	if s.state != StateStopped {
		return 0, fmt.Errorf("read in state %s: %w", s.state, ErrNotReady)
	}
	if offset < 0 {
		return 0, fmt.Errorf("read offset %d: %w", offset, ErrInvalidArg)
	}
	if offset >= s.windowLen {
		return 0, nil
	}
	n := min(len(dst), s.windowLen-offset)
	start := (s.windowStart + offset) % len(s.buf)
	first := copy(dst[:n], s.buf[start:])
	if first < n {
		copy(dst[first:n], s.buf)
	}
	return n, nil
}

// MarkOverrun flags the session as overrun and incomplete. The recorder
// calls it when it drops a whole record.
func (s *Session) MarkOverrun() {
	s.overrun = true
	s.incomplete = true
}

// Status returns a snapshot of the session counters.
func (s *Session) Status() Status {
	return Status{
		SessionID:    s.sessionID,
		State:        s.state,
		WindowLen:    s.windowLen,
		DroppedBytes: s.dropped,
		Overrun:      s.overrun,
		Incomplete:   s.incomplete,
	}
}
