package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icon-forge/iconforge/internal/queue"
)

func waitFor(t *testing.T, cond func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestPool_ProcessesJobSuccessfully(t *testing.T) {
	q := queue.New(10)
	process := func(ctx context.Context, payload interface{}) (interface{}, error) {
		return payload.(int) * 2, nil
	}
	p := New(2, process, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx, q)
	defer cancel()

	_, future, err := q.Enqueue(21, time.Now().Add(time.Second))
	require.NoError(t, err)

	res, err := future.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queue.OutcomeCompleted, res.Outcome)
	assert.Equal(t, 42, res.Value)
}

func TestPool_JobErrorIsPropagated(t *testing.T) {
	q := queue.New(10)
	boom := assert.AnError
	process := func(ctx context.Context, payload interface{}) (interface{}, error) {
		return nil, boom
	}
	p := New(1, process, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx, q)
	defer cancel()

	_, future, err := q.Enqueue("x", time.Now().Add(time.Second))
	require.NoError(t, err)

	res, err := future.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queue.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, boom)
}

func TestPool_CrashedWorkerFailsJobAndRespawns(t *testing.T) {
	q := queue.New(10)
	process := func(ctx context.Context, payload interface{}) (interface{}, error) {
		if payload.(string) == "panic" {
			panic("simulated crash")
		}
		return "ok", nil
	}
	p := New(1, process, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx, q)
	defer cancel()

	_, crashFuture, err := q.Enqueue("panic", time.Now().Add(time.Second))
	require.NoError(t, err)

	res, err := crashFuture.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queue.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrWorkerCrashed)

	waitFor(t, func() bool { return p.ActiveWorkers() == 1 }, 2*time.Second)

	_, okFuture, err := q.Enqueue("fine", time.Now().Add(time.Second))
	require.NoError(t, err)

	res, err = okFuture.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queue.OutcomeCompleted, res.Outcome)
	assert.Equal(t, "ok", res.Value)
}

func TestPool_ProcessesManyJobsConcurrently(t *testing.T) {
	q := queue.New(100)
	var processed int64
	process := func(ctx context.Context, payload interface{}) (interface{}, error) {
		atomic.AddInt64(&processed, 1)
		return payload, nil
	}
	p := New(4, process, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx, q)
	defer cancel()

	futures := make([]*queue.Future, 0, 20)
	for i := 0; i < 20; i++ {
		_, f, err := q.Enqueue(i, time.Now().Add(time.Second))
		require.NoError(t, err)
		futures = append(futures, f)
	}

	for _, f := range futures {
		res, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, queue.OutcomeCompleted, res.Outcome)
	}
	assert.EqualValues(t, 20, atomic.LoadInt64(&processed))
}

func TestPool_ShutdownStopsDispatchLoop(t *testing.T) {
	q := queue.New(10)
	process := func(ctx context.Context, payload interface{}) (interface{}, error) {
		return payload, nil
	}
	p := New(2, process, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, q)
		close(done)
	}()

	waitFor(t, func() bool { return p.ActiveWorkers() == 2 }, time.Second)

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
