package prerefresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newForTest(tb testing.TB, opts ...Option) *Pool {
	tb.Helper()
	p, err := New(opts...)
	require.NoError(tb, err)
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

func TestSubmit_InvalidArgs(t *testing.T) {
	p := newForTest(t)

	_, err := p.Submit("", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = p.Submit("k1", nil)
	assert.ErrorIs(t, err, ErrNilTask)
}

func TestSubmit_RunsTask(t *testing.T) {
	p := newForTest(t)

	var ran atomic.Bool
	done := make(chan struct{})
	accepted, err := p.Submit("k1", func(context.Context) error {
		ran.Store(true)
		close(done)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, accepted)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	assert.True(t, ran.Load())
}

func TestSubmit_DropsSecondSubmissionForSameKey(t *testing.T) {
	p := newForTest(t)

	started := make(chan struct{})
	release := make(chan struct{})

	accepted1, err := p.Submit("k1", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)
	assert.True(t, accepted1)

	<-started

	var secondRan atomic.Bool
	accepted2, err := p.Submit("k1", func(context.Context) error {
		secondRan.Store(true)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, accepted2)

	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, secondRan.Load())
}

func TestSubmit_RemovedFromInFlightAfterCompletion(t *testing.T) {
	p := newForTest(t)

	done := make(chan struct{})
	_, err := p.Submit("k1", func(context.Context) error {
		close(done)
		return nil
	})
	require.NoError(t, err)
	<-done

	require.Eventually(t, func() bool {
		return p.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSubmit_RemovedFromInFlightAfterTaskError(t *testing.T) {
	p := newForTest(t)

	done := make(chan struct{})
	_, err := p.Submit("k1", func(context.Context) error {
		defer close(done)
		return errors.New("boom")
	})
	require.NoError(t, err)
	<-done

	require.Eventually(t, func() bool {
		return p.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSubmit_CallerRunsWhenQueueFull(t *testing.T) {
	p := newForTest(t, WithWorkers(1), WithQueueDepth(1))

	blockWorker := make(chan struct{})
	unblockWorker := make(chan struct{})
	_, err := p.Submit("busy-worker", func(context.Context) error {
		close(blockWorker)
		<-unblockWorker
		return nil
	})
	require.NoError(t, err)
	<-blockWorker

	// Fill the one queue slot.
	fillBlock := make(chan struct{})
	_, err = p.Submit("fill-queue", func(context.Context) error {
		<-fillBlock
		return nil
	})
	require.NoError(t, err)

	// Queue is now full and the single worker is busy: this submission
	// must run inline on the calling goroutine.
	var ranInline atomic.Bool
	callerGoroutine := make(chan struct{})
	go func() {
		defer close(callerGoroutine)
		_, err := p.Submit("caller-runs", func(context.Context) error {
			ranInline.Store(true)
			return nil
		})
		require.NoError(t, err)
	}()

	select {
	case <-callerGoroutine:
	case <-time.After(time.Second):
		t.Fatal("caller-runs submission never returned")
	}
	assert.True(t, ranInline.Load())

	close(unblockWorker)
	close(fillBlock)
}

func TestCancel_CancelsInFlightJob(t *testing.T) {
	p := newForTest(t)

	started := make(chan struct{})
	var observedErr error
	var mu sync.Mutex
	finished := make(chan struct{})

	_, err := p.Submit("k1", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		mu.Lock()
		observedErr = ctx.Err()
		mu.Unlock()
		close(finished)
		return ctx.Err()
	})
	require.NoError(t, err)

	<-started
	assert.True(t, p.Cancel("k1"))

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("job never observed cancellation")
	}
	mu.Lock()
	assert.ErrorIs(t, observedErr, context.Canceled)
	mu.Unlock()
}

func TestCancel_UnknownKeyReturnsFalse(t *testing.T) {
	p := newForTest(t)
	assert.False(t, p.Cancel("does-not-exist"))
}

func TestShutdown_RejectsNewSubmissions(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	_, err = p.Submit("k1", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestShutdown_Idempotent(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
	require.NoError(t, p.Shutdown(ctx))
}

func TestShutdown_WaitsForOutstandingJobs(t *testing.T) {
	p, err := New(WithShutdownGrace(time.Second))
	require.NoError(t, err)

	var completed atomic.Bool
	started := make(chan struct{})
	_, err = p.Submit("k1", func(context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		completed.Store(true)
		return nil
	})
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
	assert.True(t, completed.Load())
}

func TestShutdown_ForceCancelsAfterGrace(t *testing.T) {
	p, err := New(WithShutdownGrace(20 * time.Millisecond))
	require.NoError(t, err)

	started := make(chan struct{})
	var observedCancel atomic.Bool
	_, err = p.Submit("k1", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		observedCancel.Store(true)
		return ctx.Err()
	})
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = p.Shutdown(ctx)
	assert.Error(t, err)
	assert.True(t, observedCancel.Load())
}
