package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestQueue_RetriesUntilSuccess(t *testing.T) {
	logger, logs := observed()
	q := NewQueue(logger, nil, WithBaseDelay(time.Millisecond), WithMaxAttempts(5))
	q.Start(context.Background())
	defer q.Stop()

	var calls atomic.Int32
	require.NoError(t, q.Enqueue(Task{Name: "clear_cart", OrderNumber: "ORD-1", Run: func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("db unavailable")
		}
		return nil
	}}))

	waitFor(t, func() bool { return logs.FilterMessage("reconcile_task_succeeded").Len() == 1 })
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 0, logs.FilterMessage("reconciliation_abandoned").Len())
}

func TestQueue_AbandonsAfterMaxAttempts(t *testing.T) {
	logger, logs := observed()
	q := NewQueue(logger, nil, WithBaseDelay(time.Millisecond), WithMaxAttempts(3))
	q.Start(context.Background())
	defer q.Stop()

	var calls atomic.Int32
	require.NoError(t, q.Enqueue(Task{Name: "approve_payment", OrderNumber: "ORD-2", Run: func(context.Context) error {
		calls.Add(1)
		return errors.New("still broken")
	}}))

	waitFor(t, func() bool { return logs.FilterMessage("reconciliation_abandoned").Len() == 1 })
	assert.Equal(t, int32(3), calls.Load())
	entry := logs.FilterMessage("reconciliation_abandoned").All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "ORD-2", entry.ContextMap()["order_number"])
}

func TestQueue_RecoversFromPanics(t *testing.T) {
	logger, logs := observed()
	q := NewQueue(logger, nil, WithBaseDelay(time.Millisecond), WithMaxAttempts(1))
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Task{Name: "boom", Run: func(context.Context) error { panic("boom") }}))
	waitFor(t, func() bool { return logs.FilterMessage("reconciliation_abandoned").Len() == 1 })
	assert.Equal(t, 1, logs.FilterMessage("reconcile_task_panic").Len())
}

func TestQueue_FullAndStopped(t *testing.T) {
	logger, logs := observed()
	q := NewQueue(logger, nil, WithBuffer(1))
	noop := Task{Name: "noop", Run: func(context.Context) error { return nil }}

	require.NoError(t, q.Enqueue(noop))
	assert.ErrorIs(t, q.Enqueue(noop), ErrQueueFull)
	assert.Equal(t, 1, q.Pending())

	q.Stop()
	assert.ErrorIs(t, q.Enqueue(noop), ErrStopped)
	// the queued task plus the two rejected ones
	assert.Equal(t, 3, logs.FilterMessage("reconciliation_abandoned").Len())
}

func TestBackoff_GrowsWithJitter(t *testing.T) {
	base := 10 * time.Millisecond
	for attempt := 0; attempt < 4; attempt++ {
		d := Backoff(base, attempt)
		exp := base * time.Duration(1<<attempt)
		assert.GreaterOrEqual(t, d, exp)
		assert.Less(t, d, exp+exp/2)
	}
	assert.LessOrEqual(t, Backoff(time.Second, 40), maxBackoff+maxBackoff/2)
	assert.Equal(t, time.Duration(0), Backoff(0, 3))
}
