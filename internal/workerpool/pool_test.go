package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPool(t *testing.T, maxWorkers, queueSize int) *WorkerPool {
	p := NewWorkerPool(&Config{
		Name:       "test",
		MaxWorkers: maxWorkers,
		QueueSize:  queueSize,
		Logger:     zap.NewNop(),
	})
	t.Cleanup(func() { _ = p.Stop(time.Second) })
	return p
}

func TestSubmitRunsTask(t *testing.T) {
	p := newTestPool(t, 2, 4)
	var ran atomic.Bool
	done := make(chan struct{})

	require.NoError(t, p.Submit(Task{
		ID: "t1",
		Fn: func(ctx context.Context) error {
			ran.Store(true)
			close(done)
			return nil
		},
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	require.True(t, ran.Load())
}

func TestExecuteTaskRecoversPanic(t *testing.T) {
	p := newTestPool(t, 1, 4)
	done := make(chan struct{})

	require.NoError(t, p.Submit(Task{
		ID: "panicker",
		Fn: func(ctx context.Context) error {
			defer close(done)
			panic("boom")
		},
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not complete")
	}

	// give executeTask a moment to record the stat after the deferred
	// recover returns control to safeExecute.
	require.Eventually(t, func() bool {
		return p.Stats().FailedTasks == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSubmitRejectsAfterStop(t *testing.T) {
	p := NewWorkerPool(&Config{Name: "stopped", MaxWorkers: 1, QueueSize: 1, Logger: zap.NewNop()})
	require.NoError(t, p.Stop(time.Second))

	err := p.Submit(Task{ID: "late", Fn: func(ctx context.Context) error { return nil }})
	require.Error(t, err)
}

func TestTrySubmitFailsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	p := NewWorkerPool(&Config{Name: "full", MaxWorkers: 1, QueueSize: 1, Logger: zap.NewNop()})
	t.Cleanup(func() {
		close(block)
		_ = p.Stop(time.Second)
	})

	require.NoError(t, p.Submit(Task{ID: "blocker", Fn: func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	}}))
	<-started // the only worker is now busy, so the queue slot is free for the filler
	require.NoError(t, p.Submit(Task{ID: "filler", Fn: func(ctx context.Context) error { return nil }}))

	ok := p.TrySubmit(Task{ID: "overflow", Fn: func(ctx context.Context) error { return nil }})
	require.False(t, ok)
}

func TestSubmitWithContextRespectsCancellation(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	p := NewWorkerPool(&Config{Name: "ctx", MaxWorkers: 1, QueueSize: 1, Logger: zap.NewNop()})
	t.Cleanup(func() {
		close(block)
		_ = p.Stop(time.Second)
	})

	require.NoError(t, p.Submit(Task{ID: "blocker", Fn: func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	}}))
	<-started // the only worker is now busy, so the queue slot is free for the filler
	require.NoError(t, p.Submit(Task{ID: "filler", Fn: func(ctx context.Context) error { return nil }}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.SubmitWithContext(ctx, Task{ID: "queued", Fn: func(ctx context.Context) error { return nil }})
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestStatsUtilizationHelpers(t *testing.T) {
	s := Stats{MaxWorkers: 4, ActiveWorkers: 2, QueueSize: 10, QueuedTasks: 5, TotalTasks: 8, CompletedTasks: 4}
	require.Equal(t, 50.0, s.WorkerUtilization())
	require.Equal(t, 50.0, s.QueueUtilization())
	require.Equal(t, 50.0, s.SuccessRate())

	empty := Stats{}
	require.Equal(t, 100.0, empty.SuccessRate())
}
