package latch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type command struct {
	Ref    float32
	Enable bool
}

func TestLatch_PublishLoad(t *testing.T) {
	l := New(command{Ref: 1})
	assert.Equal(t, command{Ref: 1}, l.Load())

	l.Publish(command{Ref: 2, Enable: true})
	assert.Equal(t, command{Ref: 2, Enable: true}, l.Load())

	l.Publish(command{Ref: 3})
	assert.Equal(t, command{Ref: 3}, l.Load())
}

func TestLatch_ZeroValue(t *testing.T) {
	var l Latch[int]
	assert.Equal(t, 0, l.Load())
	l.Publish(5)
	assert.Equal(t, 5, l.Load())
}

type pair struct {
	A, B uint64
}

func TestLatch_ConcurrentPublishersAndReader(t *testing.T) {
	const publishers, perPublisher = 4, 500
	l := New(pair{})

	stop := make(chan struct{})
	readerDone := make(chan int)
	go func() {
		torn := 0
		for {
			select {
			case <-stop:
				readerDone <- torn
				return
			default:
			}
			if v := l.Load(); v.B != v.A*3 {
				torn++
			}
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(base uint64) {
			defer wg.Done()
			for i := uint64(1); i <= perPublisher; i++ {
				n := base + i
				l.Publish(pair{A: n, B: n * 3})
			}
		}(uint64(p) * 1000)
	}
	wg.Wait()
	l.Publish(pair{A: 7, B: 21})
	close(stop)

	assert.Equal(t, 0, <-readerDone)
	assert.Equal(t, pair{A: 7, B: 21}, l.Load())
}
