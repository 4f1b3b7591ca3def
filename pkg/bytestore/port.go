package bytestore

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
)

// Port is the low-level device behind a Store.
type Port interface {
	// Init (re)initializes the device.
	Init() error

	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)

	// TimingEpoch changes whenever the device timing is reconfigured. A
	// store refuses transfers after a change until it is recovered.
	TimingEpoch() uint32

	// SafeMaxChunk is the largest transfer the device accepts in one go.
	SafeMaxChunk() int
}

// MemPort is an in-memory Port.
type MemPort struct {
	mu    sync.Mutex
	buf   []byte
	safe  int
	epoch atomic.Uint32
}

// NewMemPort allocates size bytes with the given chunk limit.
func NewMemPort(size, safeMaxChunk int) *MemPort {
	return &MemPort{buf: make([]byte, size), safe: safeMaxChunk}
}

func (m *MemPort) Init() error { return nil }

func (m *MemPort) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.buf)) {
		return 0, fmt.Errorf("read [%d, %d): %w", off, off+int64(len(p)), ErrBus)
	}
	return copy(p, m.buf[off:]), nil
}

func (m *MemPort) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.buf)) {
		return 0, fmt.Errorf("write [%d, %d): %w", off, off+int64(len(p)), ErrBus)
	}
	return copy(m.buf[off:], p), nil
}

func (m *MemPort) TimingEpoch() uint32 { return m.epoch.Load() }

func (m *MemPort) SafeMaxChunk() int { return m.safe }

// Retime bumps the timing epoch.
func (m *MemPort) Retime() { m.epoch.Add(1) }

// FilePort keeps the store image in a file, created and sized on Init.
type FilePort struct {
	path string
	size int64
	safe int

	mu    sync.Mutex
	f     *os.File
	epoch atomic.Uint32
}

// NewFilePort returns a port over the file at path.
func NewFilePort(path string, size int64, safeMaxChunk int) *FilePort {
	return &FilePort{path: path, size: size, safe: safeMaxChunk}
}

// Init opens the image, extending it to the configured size. Calling Init
// again reopens the file.
func (p *FilePort) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.f != nil {
		_ = p.f.Close()
		p.f = nil
	}

	f, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat image: %w", err)
	}
	if info.Size() < p.size {
		if err := f.Truncate(p.size); err != nil {
			f.Close()
			return fmt.Errorf("size image: %w", err)
		}
	}
	p.f = f
	return nil
}

func (p *FilePort) file() (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.f == nil {
		return nil, fmt.Errorf("image %s not open: %w", p.path, ErrBus)
	}
	return p.f, nil
}

func (p *FilePort) ReadAt(b []byte, off int64) (int, error) {
	f, err := p.file()
	if err != nil {
		return 0, err
	}
	return f.ReadAt(b, off)
}

func (p *FilePort) WriteAt(b []byte, off int64) (int, error) {
	f, err := p.file()
	if err != nil {
		return 0, err
	}
	return f.WriteAt(b, off)
}

func (p *FilePort) TimingEpoch() uint32 { return p.epoch.Load() }

func (p *FilePort) SafeMaxChunk() int { return p.safe }

// Sync flushes the image to disk.
func (p *FilePort) Sync() error {
	f, err := p.file()
	if err != nil {
		return err
	}
	return f.Sync()
}

// Close releases the image file.
func (p *FilePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.f == nil {
		return nil
	}
	err := p.f.Close()
	p.f = nil
	return err
}
