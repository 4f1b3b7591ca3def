package txsched

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	frames [][]byte
	// lie makes Pop report more bytes than it was given room for.
	lie int
}

func (s *stubSource) Available() bool { return len(s.frames) > 0 }

func (s *stubSource) Pop(out []byte) int {
	if len(s.frames) == 0 {
		return 0
	}
	if s.lie > 0 {
		return len(out) + s.lie
	}
	f := s.frames[0]
	if len(f) > len(out) {
		return 0
	}
	s.frames = s.frames[1:]
	return copy(out, f)
}

func TestClass_String(t *testing.T) {
	assert.Equal(t, "NONE", ClassNone.String())
	assert.Equal(t, "PDO", ClassPDO.String())
	assert.Equal(t, "LOG", ClassLog.String())
	assert.Equal(t, "UNKNOWN", Class(9).String())
}

func TestScheduler_OnTickSaturates(t *testing.T) {
	s := New(100, 250)
	assert.Equal(t, uint32(0), s.Budget())

	s.OnTick()
	assert.Equal(t, uint32(100), s.Budget())
	s.OnTick()
	s.OnTick()
	assert.Equal(t, uint32(250), s.Budget())
}

func TestScheduler_PDOFirstThenBudgetedLog(t *testing.T) {
	s := New(100, 200)
	pdo := &stubSource{frames: [][]byte{make([]byte, 10)}}
	logs := &stubSource{frames: [][]byte{make([]byte, 150)}}
	src := Sources{PDO: pdo, Log: logs}
	out := make([]byte, 256)

	s.OnTick()

	class, n, err := s.Next(src, out)
	require.NoError(t, err)
	assert.Equal(t, ClassPDO, class)
	assert.Equal(t, 10, n)
	assert.Equal(t, uint32(100), s.Budget(), "PDO must not consume budget")

	// 150 bytes do not fit a budget of 100.
	class, _, err = s.Next(src, out)
	assert.True(t, errors.Is(err, ErrNotReady))
	assert.Equal(t, ClassNone, class)
	assert.True(t, logs.Available())

	s.OnTick()
	class, n, err = s.Next(src, out)
	require.NoError(t, err)
	assert.Equal(t, ClassLog, class)
	assert.Equal(t, 150, n)
	assert.Equal(t, uint32(50), s.Budget())
}

func TestScheduler_ZeroBudgetBackpressure(t *testing.T) {
	s := New(10, 10)
	logs := &stubSource{frames: [][]byte{{1}}}

	_, _, err := s.Next(Sources{Log: logs}, make([]byte, 8))
	assert.True(t, errors.Is(err, ErrNotReady))
	assert.True(t, logs.Available())
}

func TestScheduler_AllowedBoundedByOut(t *testing.T) {
	s := New(100, 100)
	s.OnTick()
	logs := &stubSource{frames: [][]byte{make([]byte, 20)}}

	_, _, err := s.Next(Sources{Log: logs}, make([]byte, 16))
	assert.True(t, errors.Is(err, ErrNotReady))
	assert.Equal(t, uint32(100), s.Budget())
}

func TestScheduler_SourceOverreport(t *testing.T) {
	s := New(50, 50)
	s.OnTick()

	_, _, err := s.Next(Sources{Log: &stubSource{frames: [][]byte{{1}}, lie: 1}}, make([]byte, 64))
	assert.True(t, errors.Is(err, ErrInvalidArg))
	assert.Equal(t, uint32(50), s.Budget())
}

func TestScheduler_NothingQueued(t *testing.T) {
	s := New(1, 1)
	class, n, err := s.Next(Sources{}, make([]byte, 4))
	assert.True(t, errors.Is(err, ErrNotReady))
	assert.Equal(t, ClassNone, class)
	assert.Equal(t, 0, n)
}

func TestScheduler_TuneClampsBudget(t *testing.T) {
	s := New(100, 300)
	s.OnTick()
	s.OnTick()
	require.Equal(t, uint32(200), s.Budget())

	s.Tune(10, 50)
	assert.Equal(t, uint32(50), s.Budget())
	step, max := s.Limits()
	assert.Equal(t, uint32(10), step)
	assert.Equal(t, uint32(50), max)

	s.Tune(10, 500)
	s.OnTick()
	assert.Equal(t, uint32(60), s.Budget())
}
