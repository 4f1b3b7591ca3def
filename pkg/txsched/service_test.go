package txsched

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameQueue_Invalid(t *testing.T) {
	_, err := NewFrameQueue(0, 8)
	assert.True(t, errors.Is(err, ErrInvalidArg))
	_, err = NewFrameQueue(4, 0)
	assert.True(t, errors.Is(err, ErrInvalidArg))
}

func TestFrameQueue_PushPop(t *testing.T) {
	q, err := NewFrameQueue(2, 6)
	require.NoError(t, err)

	assert.False(t, q.Push(nil))
	assert.False(t, q.Push(make([]byte, 7)))
	require.True(t, q.Push([]byte{1, 2, 3}))
	require.True(t, q.Push([]byte{4, 5, 6, 7, 8, 9}))
	assert.False(t, q.Push([]byte{1}))
	assert.Equal(t, uint32(3), q.Drops())
	assert.Equal(t, uint32(2), q.HighWater())

	assert.Equal(t, 3, q.NextLen())
	out := make([]byte, 6)
	assert.Equal(t, 3, q.Pop(out))
	assert.Equal(t, []byte{1, 2, 3}, out[:3])

	assert.Equal(t, 0, q.Pop(make([]byte, 5)), "oversized frame must stay queued")
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 6, q.Pop(out))
	assert.Equal(t, []byte{4, 5, 6, 7, 8, 9}, out)
	assert.False(t, q.Available())
	assert.Equal(t, 0, q.NextLen())
}

func TestFrameQueue_AsSchedulerSource(t *testing.T) {
	s := New(100, 200)
	pdo, err := NewFrameQueue(4, 32)
	require.NoError(t, err)
	logs, err := NewFrameQueue(4, 200)
	require.NoError(t, err)

	require.True(t, logs.Push(make([]byte, 150)))
	require.True(t, pdo.Push([]byte{0xAA}))
	src := Sources{PDO: pdo, Log: logs}
	out := make([]byte, 256)

	s.OnTick()
	class, n, err := s.Next(src, out)
	require.NoError(t, err)
	assert.Equal(t, ClassPDO, class)
	assert.Equal(t, 1, n)

	_, _, err = s.Next(src, out)
	assert.True(t, errors.Is(err, ErrNotReady))

	s.OnTick()
	class, n, err = s.Next(src, out)
	require.NoError(t, err)
	assert.Equal(t, ClassLog, class)
	assert.Equal(t, 150, n)
}

func newService(t *testing.T) *ServiceScheduler {
	t.Helper()
	s, err := NewService(ServiceConfig{Q0Depth: 2, Q1Depth: 2, Q2Depth: 2, MaxFrame: 64})
	require.NoError(t, err)
	return s
}

func TestServiceScheduler_PriorityOrderUnmetered(t *testing.T) {
	s := newService(t)
	require.True(t, s.Enqueue(PrioP2, []byte{2}))
	require.True(t, s.Enqueue(PrioP1, []byte{1}))
	require.True(t, s.Enqueue(PrioP0, []byte{0}))

	out := make([]byte, 64)
	var got []Prio
	for {
		n, prio, ok := s.Dequeue(out)
		if !ok {
			break
		}
		assert.Equal(t, 1, n)
		assert.Equal(t, byte(prio), out[0])
		got = append(got, prio)
	}
	assert.Equal(t, []Prio{PrioP0, PrioP1, PrioP2}, got)
}

func TestServiceScheduler_BudgetMetersP1P2(t *testing.T) {
	s := newService(t)
	s.SetBudget(10, 20)

	require.True(t, s.Enqueue(PrioP1, make([]byte, 15)))
	require.True(t, s.Enqueue(PrioP2, make([]byte, 5)))
	require.True(t, s.Enqueue(PrioP0, make([]byte, 40)))
	out := make([]byte, 64)

	n, prio, ok := s.Dequeue(out)
	require.True(t, ok)
	assert.Equal(t, PrioP0, prio)
	assert.Equal(t, 40, n)

	_, _, ok = s.Dequeue(out)
	assert.False(t, ok, "no budget yet")

	s.OnTick()
	_, _, ok = s.Dequeue(out)
	assert.False(t, ok, "P1 frame exceeds budget and blocks P2")

	s.OnTick()
	n, prio, ok = s.Dequeue(out)
	require.True(t, ok)
	assert.Equal(t, PrioP1, prio)
	assert.Equal(t, 15, n)

	n, prio, ok = s.Dequeue(out)
	require.True(t, ok)
	assert.Equal(t, PrioP2, prio)
	assert.Equal(t, 5, n)
	assert.Equal(t, uint32(0), s.Stats().Budget)
}

func TestServiceScheduler_BudgetCapBelowMaxFrame(t *testing.T) {
	s, err := NewService(ServiceConfig{Q0Depth: 2, Q1Depth: 2, Q2Depth: 2, MaxFrame: 32})
	require.NoError(t, err)
	s.SetBudget(8, 16)

	require.True(t, s.Enqueue(PrioP1, make([]byte, 32)))
	require.True(t, s.Enqueue(PrioP2, []byte{7}))
	out := make([]byte, 64)

	var got []Prio
	for tick := 0; tick < 10 && len(got) < 2; tick++ {
		s.OnTick()
		for {
			_, prio, ok := s.Dequeue(out)
			if !ok {
				break
			}
			got = append(got, prio)
		}
	}

	assert.Equal(t, []Prio{PrioP1, PrioP2}, got)
	st := s.Stats()
	assert.Equal(t, uint32(0), st.P1Drops)
	assert.Equal(t, uint32(0), st.P2Drops)
}

func TestServiceScheduler_Stats(t *testing.T) {
	s := newService(t)
	for i := 0; i < 3; i++ {
		s.Enqueue(PrioP1, []byte{1})
		s.Enqueue(PrioP2, []byte{2})
	}
	s.Enqueue(PrioP0, []byte{0})
	assert.False(t, s.Enqueue(Prio(7), []byte{0}))

	st := s.Stats()
	assert.Equal(t, uint32(1), st.P1Drops)
	assert.Equal(t, uint32(1), st.P2Drops)
	assert.Equal(t, uint32(1), st.Q0HighWater)
	assert.Equal(t, uint32(2), st.Q1HighWater)
	assert.Equal(t, uint32(2), st.Q2HighWater)
}

func TestPrio_String(t *testing.T) {
	assert.Equal(t, "P0", PrioP0.String())
	assert.Equal(t, "P2", PrioP2.String())
	assert.Equal(t, "UNKNOWN", Prio(-1).String())
}
