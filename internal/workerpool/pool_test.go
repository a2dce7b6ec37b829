package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	p := New(4)
	defer p.Shutdown()

	var count int64
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&count, 1)
		})
	}

	wg.Wait()
	assert.Equal(t, int64(100), atomic.LoadInt64(&count))
}

func TestPool_QueueDepthReflectsPendingTasks(t *testing.T) {
	p := New(1)
	defer p.Shutdown()

	block := make(chan struct{})
	p.Submit(func() { <-block })

	for i := 0; i < 5; i++ {
		p.Submit(func() {})
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 5, p.QueueDepth())

	close(block)
}

func TestPool_ShutdownWaitsForWorkers(t *testing.T) {
	p := New(2)

	var finished int64
	p.Submit(func() {
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&finished, 1)
	})

	p.Shutdown()
	assert.Equal(t, int64(1), atomic.LoadInt64(&finished))
}

func TestPool_SubmitAfterShutdownIsDiscarded(t *testing.T) {
	p := New(1)
	p.Shutdown()

	var ran bool
	p.Submit(func() { ran = true })

	time.Sleep(5 * time.Millisecond)
	assert.False(t, ran)
}
