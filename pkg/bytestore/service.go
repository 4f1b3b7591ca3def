package bytestore

import "context"

// Service is the feature-gated front of a Store, bound to one owner.
// A disabled or nil Service answers every call with ErrNotReady.
type Service struct {
	store   *Store
	owner   uint32
	enabled bool
}

// NewService builds and initializes a store when enabled is true. With the
// feature disabled it returns a Service that refuses all transfers.
func NewService(enabled bool, owner uint32, cfg Config, port Port, opts ...Option) (*Service, error) {
	svc := &Service{owner: owner}
	if !enabled {
		return svc, nil
	}

	store, err := New(cfg, port, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.Init(); err != nil {
		return nil, err
	}
	svc.store = store
	svc.enabled = true
	return svc, nil
}

// Enabled reports whether transfers are accepted.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// Write stores p at addr.
func (s *Service) Write(ctx context.Context, addr int64, p []byte) error {
	if !s.Enabled() {
		return ErrNotReady
	}
	return s.store.Write(ctx, s.owner, addr, p)
}

// Read fills p from addr.
func (s *Service) Read(ctx context.Context, addr int64, p []byte) error {
	if !s.Enabled() {
		return ErrNotReady
	}
	return s.store.Read(ctx, s.owner, addr, p)
}

// SelfTest runs the store self test.
func (s *Service) SelfTest(ctx context.Context) error {
	if !s.Enabled() {
		return ErrNotReady
	}
	return s.store.SelfTest(ctx, s.owner)
}

// Recover re-initializes the store.
func (s *Service) Recover(ctx context.Context) error {
	if !s.Enabled() {
		return ErrNotReady
	}
	return s.store.Recover(ctx, s.owner)
}

// Status returns the store status, or an UNINIT status when disabled.
func (s *Service) Status() Status {
	if !s.Enabled() {
		return Status{State: StateUninit}
	}
	return s.store.Status()
}

// Size returns the usable capacity in bytes, or 0 when disabled.
func (s *Service) Size() int64 {
	if !s.Enabled() {
		return 0
	}
	return s.store.cfg.MemorySize
}
