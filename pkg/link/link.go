package link

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bft-labs/flightrec/internal/domain"
	"github.com/bft-labs/flightrec/pkg/txsched"
)

// Errors returned by this package.
var (
	ErrInvalidArg = domain.ErrInvalidArg
	ErrClosed     = errors.New("link closed")
	ErrTimeout    = errors.New("link timeout")
)

// FrameHeaderSize is the size of the link header written before every frame
// on a multiplexed link: class (1 byte) then payload length (LE u16).
const FrameHeaderSize = 3

// MaxFrame is the largest payload one link frame can carry.
const MaxFrame = 0xFFFF

// Sink receives scheduler frames.
type Sink interface {
	WriteFrame(class txsched.Class, frame []byte) error
	Close() error
}

// EncodeFrame writes the link header for frame into dst and copies the frame
// after it. It returns the number of bytes used.
func EncodeFrame(dst []byte, class txsched.Class, frame []byte) (int, error) {
	if len(frame) > MaxFrame {
		return 0, fmt.Errorf("frame of %d bytes exceeds %d: %w", len(frame), MaxFrame, ErrInvalidArg)
	}
	n := FrameHeaderSize + len(frame)
	if len(dst) < n {
		return 0, fmt.Errorf("need %d bytes, have %d: %w", n, len(dst), domain.ErrNoSpace)
	}
	dst[0] = byte(class)
	binary.LittleEndian.PutUint16(dst[1:3], uint16(len(frame)))
	copy(dst[FrameHeaderSize:], frame)
	return n, nil
}

// ReadFrame reads one multiplexed frame from r into buf. It returns io.EOF
// only when r ends cleanly between frames.
func ReadFrame(r io.Reader, buf []byte) (txsched.Class, int, error) {
	var hdr [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return txsched.ClassNone, 0, err
	}
	class := txsched.Class(hdr[0])
	n := int(binary.LittleEndian.Uint16(hdr[1:3]))
	if n > len(buf) {
		return class, 0, fmt.Errorf("frame of %d bytes, buffer holds %d: %w", n, len(buf), domain.ErrNoSpace)
	}
	if _, err := io.ReadFull(r, buf[:n]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return class, 0, err
	}
	return class, n, nil
}

// MultiSink fans every frame out to all sinks. Every sink is tried; the
// errors are joined.
type MultiSink []Sink

// WriteFrame implements Sink.
func (m MultiSink) WriteFrame(class txsched.Class, frame []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteFrame(class, frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard accepts and drops every frame.
type Discard struct{}

func (Discard) WriteFrame(txsched.Class, []byte) error { return nil }
func (Discard) Close() error                           { return nil }
