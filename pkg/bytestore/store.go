package bytestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/flightrec/pkg/lifecycle"
	"github.com/bft-labs/flightrec/pkg/log"
)

// Errors returned by the store.
var (
	ErrParam         = errors.New("bytestore: invalid parameter")
	ErrNotInit       = errors.New("bytestore: not initialized")
	ErrNotReady      = errors.New("bytestore: not ready")
	ErrTimeout       = errors.New("bytestore: transaction timeout")
	ErrBus           = errors.New("bytestore: bus error")
	ErrDataMismatch  = errors.New("bytestore: data mismatch")
	ErrLocked        = errors.New("bytestore: locked by another owner")
	ErrTimingChanged = errors.New("bytestore: port timing changed")
)

// State is the store's health.
type State int

const (
	StateUninit State = iota
	StateReady
	StateBusy
	StateDegraded
	StateFault
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUninit:
		return "UNINIT"
	case StateReady:
		return "READY"
	case StateBusy:
		return "BUSY"
	case StateDegraded:
		return "DEGRADED"
	case StateFault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// Reason explains the most recent ErrNotReady.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonState means the store was DEGRADED or FAULT.
	ReasonState
	// ReasonTimingChanged means the port's timing epoch moved since init.
	ReasonTimingChanged
)

// String returns a human-readable representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "NONE"
	case ReasonState:
		return "STATE"
	case ReasonTimingChanged:
		return "TIMING_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// SelfTestPattern is written to and read back from address 0 by SelfTest.
var SelfTestPattern = [16]byte{
	0xA5, 0x5A, 0x3C, 0xC3, 0x55, 0xAA, 0x0F, 0xF0,
	0x96, 0x69, 0x12, 0x21, 0xDE, 0xED, 0xBE, 0xEF,
}

// Config bounds the store's transfers.
type Config struct {
	MemorySize         int64         `json:"memory_size" toml:"memory_size"`
	MaxChunk           int           `json:"max_chunk" toml:"max_chunk"`
	MaxRetriesPerChunk int           `json:"max_retries_per_chunk" toml:"max_retries_per_chunk"`
	DegradeThreshold   int           `json:"degrade_threshold" toml:"degrade_threshold"`
	RetryDelay         time.Duration `json:"retry_delay" toml:"retry_delay"`
}

func (c Config) validate() error {
	if c.MemorySize <= 0 || c.MaxChunk <= 0 {
		return fmt.Errorf("memory size %d, max chunk %d: %w", c.MemorySize, c.MaxChunk, ErrParam)
	}
	if c.MaxRetriesPerChunk <= 0 || c.DegradeThreshold <= 0 {
		return fmt.Errorf("retries %d, degrade threshold %d: %w", c.MaxRetriesPerChunk, c.DegradeThreshold, ErrParam)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay %s: %w", c.RetryDelay, ErrParam)
	}
	return nil
}

// Status is a point-in-time view of the store.
type Status struct {
	State             State  `json:"state"`
	LastError         error  `json:"-"`
	NotReadyReason    Reason `json:"not_ready_reason"`
	ConsecutiveErrors int    `json:"consecutive_errors"`
	ReadTransactions  uint64 `json:"read_transactions"`
	WriteTransactions uint64 `json:"write_transactions"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for state transitions.
func WithLogger(logger log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is a chunked, retrying byte store over a Port. Operations are
// serialized by owner: a second owner arriving while a transfer is in flight
// gets ErrLocked instead of waiting.
type Store struct {
	cfg    Config
	port   Port
	logger log.Logger

	mu     sync.Mutex
	status Status
	locked bool
	owner  uint32
	epoch  uint32
}

// New validates cfg against port and returns an uninitialized store.
func New(cfg Config, port Port, opts ...Option) (*Store, error) {
	if port == nil {
		return nil, fmt.Errorf("nil port: %w", ErrParam)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	safe := port.SafeMaxChunk()
	if safe <= 0 || cfg.MaxChunk > safe {
		return nil, fmt.Errorf("max chunk %d exceeds port limit %d: %w", cfg.MaxChunk, safe, ErrParam)
	}

	s := &Store{
		cfg:    cfg,
		port:   port,
		logger: log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Init brings up the port. On failure the store enters FAULT and only
// Recover can bring it back.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = Status{State: StateUninit}
	s.locked = false
	s.owner = 0

	if err := s.port.Init(); err != nil {
		mapped := mapPortError(err)
		s.status.State = StateFault
		s.status.LastError = mapped
		s.logger.Error("byte store init failed", log.Err(err))
		return fmt.Errorf("init port: %w", mapped)
	}

	s.epoch = s.port.TimingEpoch()
	s.status.State = StateReady
	return nil
}

// Read fills p from addr.
func (s *Store) Read(ctx context.Context, owner uint32, addr int64, p []byte) error {
	return s.do(ctx, owner, addr, p, false)
}

// Write stores p at addr.
func (s *Store) Write(ctx context.Context, owner uint32, addr int64, p []byte) error {
	return s.do(ctx, owner, addr, p, true)
}

func (s *Store) do(ctx context.Context, owner uint32, addr int64, p []byte, write bool) error {
	if err := s.begin(owner, addr, len(p)); err != nil {
		return err
	}
	err := s.transfer(ctx, addr, p, write)
	s.finish(owner, err)
	return err
}

// begin runs the pre-checks and takes the owner lock.
func (s *Store) begin(owner uint32, addr int64, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status.State {
	case StateUninit:
		return ErrNotInit
	case StateDegraded, StateFault:
		s.status.NotReadyReason = ReasonState
		return fmt.Errorf("state %s: %w", s.status.State, ErrNotReady)
	}

	if s.port.TimingEpoch() != s.epoch {
		s.noteErrorLocked(ErrNotReady)
		s.setStateLocked(StateDegraded)
		s.status.NotReadyReason = ReasonTimingChanged
		return fmt.Errorf("%w: %w", ErrNotReady, ErrTimingChanged)
	}

	if n <= 0 || addr < 0 || addr > s.cfg.MemorySize-int64(n) {
		return fmt.Errorf("range [%d, %d) outside %d bytes: %w", addr, addr+int64(n), s.cfg.MemorySize, ErrParam)
	}

	if s.locked {
		return ErrLocked
	}
	s.locked = true
	s.owner = owner
	s.status.State = StateBusy
	return nil
}

func (s *Store) finish(owner uint32, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.status.State = StateReady
		s.resetErrorsLocked()
	} else {
		s.noteErrorLocked(err)
		if s.status.State == StateBusy {
			s.status.State = StateReady
		}
	}
	s.releaseLocked(owner)
}

// transfer moves p in chunks of at most MaxChunk bytes, retrying each chunk
// up to MaxRetriesPerChunk times.
func (s *Store) transfer(ctx context.Context, addr int64, p []byte, write bool) error {
	for off := 0; off < len(p); {
		n := min(len(p)-off, s.cfg.MaxChunk)
		chunk := p[off : off+n]
		at := addr + int64(off)

		backoff := lifecycle.NewBackoff(s.cfg.RetryDelay, 8*s.cfg.RetryDelay)
		var err error
		for attempt := 0; attempt < s.cfg.MaxRetriesPerChunk; attempt++ {
			if attempt > 0 {
				if werr := backoff.Wait(ctx); werr != nil {
					return fmt.Errorf("%w: %w", ErrTimeout, werr)
				}
			}
			if err = s.transferChunk(chunk, at, write); err == nil {
				break
			}
		}
		if err != nil {
			return fmt.Errorf("chunk at %d: %w", at, err)
		}

		s.mu.Lock()
		if write {
			s.status.WriteTransactions++
		} else {
			s.status.ReadTransactions++
		}
		s.mu.Unlock()

		off += n
	}
	return nil
}

func (s *Store) transferChunk(chunk []byte, at int64, write bool) error {
	var (
		n   int
		err error
	)
	if write {
		n, err = s.port.WriteAt(chunk, at)
	} else {
		n, err = s.port.ReadAt(chunk, at)
	}
	if err != nil {
		return mapPortError(err)
	}
	if n != len(chunk) {
		return ErrBus
	}
	return nil
}

// SelfTest writes SelfTestPattern at address 0 and reads it back.
func (s *Store) SelfTest(ctx context.Context, owner uint32) error {
	if err := s.Write(ctx, owner, 0, SelfTestPattern[:]); err != nil {
		return err
	}
	var readback [len(SelfTestPattern)]byte
	if err := s.Read(ctx, owner, 0, readback[:]); err != nil {
		return err
	}
	if readback != SelfTestPattern {
		s.mu.Lock()
		s.noteErrorLocked(ErrDataMismatch)
		s.mu.Unlock()
		return ErrDataMismatch
	}
	return nil
}

// Recover re-initializes the port. The store ends up READY with a fresh
// timing epoch, or FAULT.
func (s *Store) Recover(ctx context.Context, owner uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.State == StateUninit {
		return ErrNotInit
	}
	if s.locked {
		return ErrLocked
	}

	if err := s.port.Init(); err != nil {
		mapped := mapPortError(err)
		s.setStateLocked(StateFault)
		s.status.LastError = mapped
		return fmt.Errorf("recover port: %w", mapped)
	}

	s.epoch = s.port.TimingEpoch()
	s.setStateLocked(StateReady)
	s.status.NotReadyReason = ReasonNone
	s.resetErrorsLocked()
	return nil
}

// Status returns a copy of the current status.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Config returns the store's configuration.
func (s *Store) Config() Config {
	return s.cfg
}

func (s *Store) noteErrorLocked(err error) {
	s.status.LastError = err
	s.status.ConsecutiveErrors++
	if s.status.ConsecutiveErrors >= s.cfg.DegradeThreshold {
		s.setStateLocked(StateDegraded)
	}
}

func (s *Store) resetErrorsLocked() {
	s.status.ConsecutiveErrors = 0
	s.status.LastError = nil
}

func (s *Store) releaseLocked(owner uint32) {
	if s.locked && s.owner == owner {
		s.locked = false
	}
}

func (s *Store) setStateLocked(state State) {
	if s.status.State == state {
		return
	}
	if state == StateDegraded || state == StateFault {
		s.logger.Warn("byte store unhealthy",
			log.String("from", s.status.State.String()),
			log.String("to", state.String()),
			log.Int("consecutive_errors", s.status.ConsecutiveErrors),
			log.Err(s.status.LastError),
		)
	}
	s.status.State = state
}

// mapPortError folds port failures into ErrTimeout or ErrBus.
func mapPortError(err error) error {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrBus
}
