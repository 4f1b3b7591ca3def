//go:build !wasm

package link

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// NativePort wraps a tarm/serial port.
type NativePort struct {
	port *serial.Port
	cfg  SerialConfig
}

// OpenSerial opens the device described by cfg.
func OpenSerial(cfg SerialConfig) (*NativePort, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial device not set: %w", ErrInvalidArg)
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return &NativePort{port: port, cfg: cfg}, nil
}

func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Flush discards unread input. Writes on tarm/serial are unbuffered.
func (p *NativePort) Flush() error {
	return p.port.Flush()
}

func (p *NativePort) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}
