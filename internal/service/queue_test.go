package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineDispatcherRunsJobs(t *testing.T) {
	dispatcher := NewInlineDispatcher(context.Background(), testLogger())

	ran := make(chan struct{})
	dispatcher.Dispatch("test job", func(ctx context.Context) error {
		close(ran)
		return nil
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}

	// Errors are swallowed after logging.
	dispatcher.Dispatch("failing job", func(ctx context.Context) error {
		return errors.New("boom")
	})
	dispatcher.Shutdown()
}

func TestInlineDispatcherDoesNotBlockCaller(t *testing.T) {
	dispatcher := NewInlineDispatcher(context.Background(), testLogger())

	release := make(chan struct{})
	done := make(chan struct{})
	start := time.Now()
	dispatcher.Dispatch("slow job", func(ctx context.Context) error {
		<-release
		close(done)
		return nil
	})

	// The caller gets control back while the job is still blocked, so a
	// webhook acknowledgement never waits on processing.
	require.Less(t, time.Since(start), 500*time.Millisecond)

	close(release)
	<-done
	dispatcher.Shutdown()
}

func TestInlineDispatcherShutdownWaitsForJobs(t *testing.T) {
	dispatcher := NewInlineDispatcher(context.Background(), testLogger())

	var counter int64
	for i := 0; i < 5; i++ {
		dispatcher.Dispatch("count", func(ctx context.Context) error {
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&counter, 1)
			return nil
		})
	}
	dispatcher.Shutdown()

	assert.Equal(t, int64(5), atomic.LoadInt64(&counter))
}

func TestPoolDispatcherRunsJobs(t *testing.T) {
	dispatcher := NewPoolDispatcher(context.Background(), 3, 10, testLogger())

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		dispatcher.Dispatch("count", func(ctx context.Context) error {
			defer wg.Done()
			atomic.AddInt64(&counter, 1)
			return nil
		})
	}
	wg.Wait()
	dispatcher.Shutdown()

	assert.Equal(t, int64(20), atomic.LoadInt64(&counter))
}

func TestPoolDispatcherShutdownDrains(t *testing.T) {
	dispatcher := NewPoolDispatcher(context.Background(), 1, 10, testLogger())

	var counter int64
	for i := 0; i < 5; i++ {
		dispatcher.Dispatch("slow", func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&counter, 1)
			return nil
		})
	}

	dispatcher.Shutdown()
	assert.Equal(t, int64(5), atomic.LoadInt64(&counter))
}

func TestPoolDispatcherFullQueueRunsInline(t *testing.T) {
	dispatcher := NewPoolDispatcher(context.Background(), 1, 1, testLogger())
	defer dispatcher.Shutdown()

	release := make(chan struct{})
	started := make(chan struct{})

	// Occupy the single worker.
	dispatcher.Dispatch("blocker", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	// Fill the single queue slot.
	dispatcher.Dispatch("queued", func(ctx context.Context) error {
		return nil
	})

	// Queue is full: this one must run on the caller, before release.
	inlineRan := false
	dispatcher.Dispatch("overflow", func(ctx context.Context) error {
		inlineRan = true
		return nil
	})
	require.True(t, inlineRan)

	close(release)
}

func TestPoolDispatcherDispatchAfterShutdown(t *testing.T) {
	dispatcher := NewPoolDispatcher(context.Background(), 1, 1, testLogger())
	dispatcher.Shutdown()

	ran := false
	dispatcher.Dispatch("late", func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ran)

	// Shutdown is idempotent.
	dispatcher.Shutdown()
}

func TestPoolDispatcherConcurrentDispatchAndShutdown(t *testing.T) {
	// Dispatchers racing Shutdown must never hit the closed channel; a
	// job accepted on either side of the close still runs exactly once.
	for i := 0; i < 50; i++ {
		dispatcher := NewPoolDispatcher(context.Background(), 2, 4, testLogger())

		const jobs = 16
		var wg sync.WaitGroup
		var counter int64
		for j := 0; j < jobs; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				dispatcher.Dispatch("racing", func(ctx context.Context) error {
					atomic.AddInt64(&counter, 1)
					return nil
				})
			}()
		}

		dispatcher.Shutdown()
		wg.Wait()

		require.Equal(t, int64(jobs), atomic.LoadInt64(&counter))
	}
}

func TestPoolDispatcherRecoversPanics(t *testing.T) {
	dispatcher := NewPoolDispatcher(context.Background(), 1, 10, testLogger())

	done := make(chan struct{})
	dispatcher.Dispatch("panicking", func(ctx context.Context) error {
		defer close(done)
		panic("tool blew up")
	})
	<-done

	// The worker survived and keeps taking jobs.
	ran := make(chan struct{})
	dispatcher.Dispatch("after panic", func(ctx context.Context) error {
		close(ran)
		return nil
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker did not process jobs after a panic")
	}
	dispatcher.Shutdown()
}
