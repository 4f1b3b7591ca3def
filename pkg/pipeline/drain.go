package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/bft-labs/flightrec/internal/domain"
	"github.com/bft-labs/flightrec/pkg/capture"
	"github.com/bft-labs/flightrec/pkg/recorder"
)

// WindowSource streams a stopped capture window as LOG bytes for the
// transmission scheduler. Frames are cut at whatever length the scheduler
// allows; receivers find record boundaries by magic.
type WindowSource struct {
	rec   *recorder.Recorder
	off   int
	total int
}

// NewWindowSource returns an empty source over rec.
func NewWindowSource(rec *recorder.Recorder) *WindowSource {
	return &WindowSource{rec: rec}
}

// Load starts streaming the current window. The recorder must be stopped.
func (s *WindowSource) Load() error {
	st := s.rec.Status()
	if st.State != capture.StateStopped {
		return fmt.Errorf("window in state %s: %w", st.State, domain.ErrNotReady)
	}
	s.off = 0
	s.total = st.WindowLen
	return nil
}

// Available reports whether unsent window bytes remain.
func (s *WindowSource) Available() bool {
	return s.off < s.total
}

// Pop copies the next slice of the window into out.
func (s *WindowSource) Pop(out []byte) int {
	if !s.Available() {
		return 0
	}
	if rest := s.total - s.off; len(out) > rest {
		out = out[:rest]
	}
	n, err := s.rec.ReadChunk(s.off, out)
	if err != nil {
		// The window went away underneath us.
		s.total = s.off
		return 0
	}
	s.off += n
	return n
}

// Sent returns how many window bytes have been popped.
func (s *WindowSource) Sent() int { return s.off }

// Total returns the loaded window length.
func (s *WindowSource) Total() int { return s.total }

// Done reports whether a loaded window has been fully sent.
func (s *WindowSource) Done() bool { return s.total > 0 && s.off >= s.total }

// Reset forgets the loaded window.
func (s *WindowSource) Reset() {
	s.off, s.total = 0, 0
}

// Drain copies the stopped window of rec to w in chunks of chunk bytes and
// returns the number of bytes written.
func Drain(ctx context.Context, rec *recorder.Recorder, w io.Writer, chunk int) (int64, error) {
	if chunk <= 0 {
		return 0, fmt.Errorf("chunk %d: %w", chunk, domain.ErrInvalidArg)
	}
	buf := make([]byte, chunk)
	var total int64
	for off := 0; ; {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := rec.ReadChunk(off, buf)
		if err != nil {
			return total, fmt.Errorf("read window at %d: %w", off, err)
		}
		if n == 0 {
			return total, nil
		}
		written, err := w.Write(buf[:n])
		total += int64(written)
		if err != nil {
			return total, fmt.Errorf("write window: %w", err)
		}
		off += n
	}
}
