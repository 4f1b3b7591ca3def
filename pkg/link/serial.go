package link

import (
	"fmt"
	"io"
	"sync"

	"github.com/bft-labs/flightrec/pkg/log"
	"github.com/bft-labs/flightrec/pkg/txsched"
)

// Port is a serial line.
type Port interface {
	io.ReadWriteCloser

	// Flush pushes out any buffered data.
	Flush() error
}

// SerialConfig describes a serial device.
type SerialConfig struct {
	// Device path, e.g. /dev/ttyUSB0 or COM3.
	Device string `json:"device" toml:"device"`

	Baud int `json:"baud" toml:"baud"`

	// ReadTimeout in milliseconds, 0 blocks.
	ReadTimeout int `json:"read_timeout_ms" toml:"read_timeout_ms"`
}

// DefaultSerialConfig returns the settings used for device.
func DefaultSerialConfig(device string) SerialConfig {
	return SerialConfig{
		Device:      device,
		Baud:        921600,
		ReadTimeout: 100,
	}
}

// SerialSink multiplexes PDO and LOG frames over one port.
type SerialSink struct {
	mu     sync.Mutex
	port   Port
	buf    []byte
	logger log.Logger
	frames uint64
}

// NewSerialSink wraps an open port.
func NewSerialSink(port Port, logger log.Logger) *SerialSink {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &SerialSink{
		port:   port,
		buf:    make([]byte, FrameHeaderSize+MaxFrame),
		logger: logger,
	}
}

// WriteFrame implements Sink.
func (s *SerialSink) WriteFrame(class txsched.Class, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return ErrClosed
	}
	n, err := EncodeFrame(s.buf, class, frame)
	if err != nil {
		return err
	}
	if _, err := s.port.Write(s.buf[:n]); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	s.frames++
	return nil
}

// Frames returns how many frames went out.
func (s *SerialSink) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Close flushes and closes the port.
func (s *SerialSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	if err := s.port.Flush(); err != nil {
		s.logger.Warn("serial flush failed", log.Err(err))
	}
	err := s.port.Close()
	s.port = nil
	return err
}
