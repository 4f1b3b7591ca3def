package link

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bft-labs/flightrec/pkg/txsched"
)

// WriterSink writes the raw bytes of selected classes to an io.Writer.
type WriterSink struct {
	mu      sync.Mutex
	w       io.Writer
	classes map[txsched.Class]bool
	closed  bool
	written int64
}

// NewWriterSink returns a sink writing frames of the given classes to w. With
// no classes only LOG frames are kept.
func NewWriterSink(w io.Writer, classes ...txsched.Class) *WriterSink {
	if len(classes) == 0 {
		classes = []txsched.Class{txsched.ClassLog}
	}
	keep := make(map[txsched.Class]bool, len(classes))
	for _, c := range classes {
		keep[c] = true
	}
	return &WriterSink{w: w, classes: keep}
}

// WriteFrame implements Sink.
func (s *WriterSink) WriteFrame(class txsched.Class, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.classes[class] {
		return nil
	}
	n, err := s.w.Write(frame)
	s.written += int64(n)
	if err != nil {
		return fmt.Errorf("write %s frame: %w", class, err)
	}
	return nil
}

// Written returns the number of bytes written so far.
func (s *WriterSink) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close marks the sink closed. The underlying writer is left open.
func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FileSink appends selected classes to a file.
type FileSink struct {
	*WriterSink
	f  *os.File
	bw *bufio.Writer
}

// NewFileSink opens (creating if needed) path for appending.
func NewFileSink(path string, classes ...txsched.Class) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	bw := bufio.NewWriter(f)
	return &FileSink{WriterSink: NewWriterSink(bw, classes...), f: f, bw: bw}, nil
}

// Flush pushes buffered bytes to the file.
func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bw.Flush()
}

// Path returns the file name.
func (s *FileSink) Path() string { return s.f.Name() }

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	_ = s.WriterSink.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.bw.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("flush capture file: %w", err)
	}
	return s.f.Close()
}
