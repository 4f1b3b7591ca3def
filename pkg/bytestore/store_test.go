package bytestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultPort wraps a MemPort and fails the first n transfers.
type faultPort struct {
	*MemPort
	failReads  int
	failWrites int
	failInit   bool
	corrupt    bool
	calls      int
}

func (f *faultPort) Init() error {
	if f.failInit {
		return ErrTimeout
	}
	return nil
}

func (f *faultPort) ReadAt(p []byte, off int64) (int, error) {
	f.calls++
	if f.failReads > 0 {
		f.failReads--
		return 0, ErrBus
	}
	n, err := f.MemPort.ReadAt(p, off)
	if f.corrupt && n > 0 {
		p[0] ^= 0xFF
	}
	return n, err
}

func (f *faultPort) WriteAt(p []byte, off int64) (int, error) {
	f.calls++
	if f.failWrites > 0 {
		f.failWrites--
		return 0, ErrTimeout
	}
	return f.MemPort.WriteAt(p, off)
}

func testConfig() Config {
	return Config{MemorySize: 256, MaxChunk: 16, MaxRetriesPerChunk: 3, DegradeThreshold: 2}
}

func newStore(t *testing.T, port Port) *Store {
	t.Helper()
	s, err := New(testConfig(), port)
	require.NoError(t, err)
	require.NoError(t, s.Init())
	return s
}

func TestNew_InvalidConfig(t *testing.T) {
	port := NewMemPort(256, 32)
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"zero size", func(c *Config) { c.MemorySize = 0 }},
		{"zero chunk", func(c *Config) { c.MaxChunk = 0 }},
		{"zero retries", func(c *Config) { c.MaxRetriesPerChunk = 0 }},
		{"zero threshold", func(c *Config) { c.DegradeThreshold = 0 }},
		{"chunk above port limit", func(c *Config) { c.MaxChunk = 64 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mod(&cfg)
			_, err := New(cfg, port)
			assert.True(t, errors.Is(err, ErrParam))
		})
	}

	_, err := New(testConfig(), nil)
	assert.True(t, errors.Is(err, ErrParam))
}

func TestStore_UninitRejects(t *testing.T) {
	s, err := New(testConfig(), NewMemPort(256, 16))
	require.NoError(t, err)
	assert.Equal(t, StateUninit, s.Status().State)

	ctx := context.Background()
	assert.True(t, errors.Is(s.Write(ctx, 1, 0, []byte{1}), ErrNotInit))
	assert.True(t, errors.Is(s.Recover(ctx, 1), ErrNotInit))
}

func TestStore_ChunkedRoundTrip(t *testing.T) {
	s := newStore(t, NewMemPort(256, 16))
	ctx := context.Background()

	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, s.Write(ctx, 1, 100, data))
	got := make([]byte, 40)
	require.NoError(t, s.Read(ctx, 1, 100, got))
	assert.Equal(t, data, got)

	st := s.Status()
	assert.Equal(t, StateReady, st.State)
	assert.Equal(t, uint64(3), st.WriteTransactions)
	assert.Equal(t, uint64(3), st.ReadTransactions)
}

func TestStore_RangeChecks(t *testing.T) {
	s := newStore(t, NewMemPort(256, 16))
	ctx := context.Background()

	assert.True(t, errors.Is(s.Write(ctx, 1, 0, nil), ErrParam))
	assert.True(t, errors.Is(s.Write(ctx, 1, 250, make([]byte, 7)), ErrParam))
	assert.True(t, errors.Is(s.Read(ctx, 1, -1, make([]byte, 1)), ErrParam))
	assert.NoError(t, s.Write(ctx, 1, 250, make([]byte, 6)))
}

func TestStore_RetriesThenSucceeds(t *testing.T) {
	port := &faultPort{MemPort: NewMemPort(256, 16), failWrites: 2}
	s := newStore(t, port)

	require.NoError(t, s.Write(context.Background(), 1, 0, []byte{1, 2, 3}))
	assert.Equal(t, 3, port.calls)
	assert.Equal(t, 0, s.Status().ConsecutiveErrors)
}

func TestStore_DegradesAtThreshold(t *testing.T) {
	port := &faultPort{MemPort: NewMemPort(256, 16), failReads: 100}
	s := newStore(t, port)
	ctx := context.Background()
	buf := make([]byte, 4)

	err := s.Read(ctx, 1, 0, buf)
	assert.True(t, errors.Is(err, ErrBus))
	st := s.Status()
	assert.Equal(t, StateReady, st.State)
	assert.Equal(t, 1, st.ConsecutiveErrors)

	err = s.Read(ctx, 1, 0, buf)
	assert.True(t, errors.Is(err, ErrBus))
	assert.Equal(t, StateDegraded, s.Status().State)

	err = s.Read(ctx, 1, 0, buf)
	assert.True(t, errors.Is(err, ErrNotReady))
	assert.Equal(t, ReasonState, s.Status().NotReadyReason)

	port.failReads = 0
	require.NoError(t, s.Recover(ctx, 1))
	st = s.Status()
	assert.Equal(t, StateReady, st.State)
	assert.Equal(t, ReasonNone, st.NotReadyReason)
	assert.Equal(t, 0, st.ConsecutiveErrors)
	assert.NoError(t, s.Read(ctx, 1, 0, buf))
}

func TestStore_SuccessResetsErrorCount(t *testing.T) {
	port := &faultPort{MemPort: NewMemPort(256, 16), failWrites: 3}
	s := newStore(t, port)
	ctx := context.Background()

	assert.True(t, errors.Is(s.Write(ctx, 1, 0, []byte{1}), ErrTimeout))
	assert.Equal(t, 1, s.Status().ConsecutiveErrors)

	require.NoError(t, s.Write(ctx, 1, 0, []byte{1}))
	assert.Equal(t, 0, s.Status().ConsecutiveErrors)
	assert.Nil(t, s.Status().LastError)
}

func TestStore_TimingChange(t *testing.T) {
	port := NewMemPort(256, 16)
	s := newStore(t, port)
	ctx := context.Background()

	port.Retime()
	err := s.Write(ctx, 1, 0, []byte{1})
	assert.True(t, errors.Is(err, ErrNotReady))
	assert.True(t, errors.Is(err, ErrTimingChanged))

	st := s.Status()
	assert.Equal(t, StateDegraded, st.State)
	assert.Equal(t, ReasonTimingChanged, st.NotReadyReason)

	require.NoError(t, s.Recover(ctx, 1))
	assert.NoError(t, s.Write(ctx, 1, 0, []byte{1}))
}

func TestStore_LockedByOtherOwner(t *testing.T) {
	s := newStore(t, NewMemPort(256, 16))
	s.locked = true
	s.owner = 7

	assert.True(t, errors.Is(s.Write(context.Background(), 1, 0, []byte{1}), ErrLocked))
	assert.True(t, errors.Is(s.Recover(context.Background(), 1), ErrLocked))
}

func TestStore_InitAndRecoverFault(t *testing.T) {
	port := &faultPort{MemPort: NewMemPort(256, 16), failInit: true}
	s, err := New(testConfig(), port)
	require.NoError(t, err)

	err = s.Init()
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, StateFault, s.Status().State)

	err = s.Recover(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, StateFault, s.Status().State)

	port.failInit = false
	require.NoError(t, s.Recover(context.Background(), 1))
	assert.Equal(t, StateReady, s.Status().State)
}

func TestStore_SelfTest(t *testing.T) {
	ctx := context.Background()

	s := newStore(t, NewMemPort(256, 16))
	require.NoError(t, s.SelfTest(ctx, 1))

	bad := newStore(t, &faultPort{MemPort: NewMemPort(256, 16), corrupt: true})
	err := bad.SelfTest(ctx, 1)
	assert.True(t, errors.Is(err, ErrDataMismatch))
	assert.Equal(t, 1, bad.Status().ConsecutiveErrors)
}

func TestStore_FilePort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.img")
	port := NewFilePort(path, 256, 32)
	t.Cleanup(func() { port.Close() })

	s := newStore(t, port)
	ctx := context.Background()
	require.NoError(t, s.SelfTest(ctx, 1))
	require.NoError(t, port.Sync())

	// A second port over the same image sees the pattern.
	again := NewFilePort(path, 256, 32)
	t.Cleanup(func() { again.Close() })
	s2 := newStore(t, again)
	got := make([]byte, len(SelfTestPattern))
	require.NoError(t, s2.Read(ctx, 2, 0, got))
	assert.Equal(t, SelfTestPattern[:], got)
}

func TestService_Disabled(t *testing.T) {
	svc, err := NewService(false, 1, testConfig(), NewMemPort(256, 16))
	require.NoError(t, err)
	assert.False(t, svc.Enabled())

	ctx := context.Background()
	assert.True(t, errors.Is(svc.Write(ctx, 0, []byte{1}), ErrNotReady))
	assert.True(t, errors.Is(svc.Read(ctx, 0, []byte{1}), ErrNotReady))
	assert.Equal(t, StateUninit, svc.Status().State)

	var nilSvc *Service
	assert.True(t, errors.Is(nilSvc.Write(ctx, 0, []byte{1}), ErrNotReady))
}

func TestService_Enabled(t *testing.T) {
	svc, err := NewService(true, 3, testConfig(), NewMemPort(256, 16))
	require.NoError(t, err)
	require.True(t, svc.Enabled())
	assert.Equal(t, int64(256), svc.Size())

	ctx := context.Background()
	require.NoError(t, svc.Write(ctx, 10, []byte{9, 8}))
	got := make([]byte, 2)
	require.NoError(t, svc.Read(ctx, 10, got))
	assert.Equal(t, []byte{9, 8}, got)
	assert.NoError(t, svc.SelfTest(ctx))
}

func TestStateAndReasonStrings(t *testing.T) {
	assert.Equal(t, "DEGRADED", StateDegraded.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
	assert.Equal(t, "TIMING_CHANGED", ReasonTimingChanged.String())
}
