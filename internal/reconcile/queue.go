// Package reconcile retries post-commit cleanup that failed during checkout,
// such as marking a payment approved or clearing the cart.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/wichananm65/urbancart-backend/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("reconcile queue is full")
	ErrStopped   = errors.New("reconcile queue is stopped")
)

// Task is a unit of idempotent cleanup work.
type Task struct {
	Name        string
	OrderNumber string
	Run         func(ctx context.Context) error
}

type Queue struct {
	queue       chan Task
	startOnce   sync.Once
	stopOnce    sync.Once
	stopped     chan struct{}
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	workers     int
	maxAttempts int
	baseDelay   time.Duration
	taskTimeout time.Duration
	log         *zap.Logger
	metrics     *metrics.Metrics
}

type Option func(*Queue)

func WithMaxAttempts(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(q *Queue) { q.baseDelay = d }
}

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithBuffer(n int) Option {
	return func(q *Queue) { q.queue = make(chan Task, n) }
}

func NewQueue(logger *zap.Logger, m *metrics.Metrics, opts ...Option) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		queue:       make(chan Task, 256),
		stopped:     make(chan struct{}),
		workers:     2,
		maxAttempts: 5,
		baseDelay:   200 * time.Millisecond,
		taskTimeout: 10 * time.Second,
		log:         logger.With(zap.String("component", "reconcile")),
		metrics:     m,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		bg, cancel := context.WithCancel(ctx)
		q.cancel = cancel
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker(bg)
		}
		q.log.Info("reconcile_queue_started", zap.Int("workers", q.workers))
	})
}

// Stop halts the workers and abandons whatever is still queued.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopped)
		if q.cancel != nil {
			q.cancel()
		}
		q.wg.Wait()
		for {
			select {
			case t := <-q.queue:
				q.abandon(t, context.Canceled)
			default:
				q.log.Info("reconcile_queue_stopped")
				return
			}
		}
	})
}

// Enqueue never blocks: a full or stopped queue abandons the task.
func (q *Queue) Enqueue(t Task) error {
	select {
	case <-q.stopped:
		q.abandon(t, ErrStopped)
		return ErrStopped
	default:
	}
	select {
	case q.queue <- t:
		q.metrics.ReconcileTask(t.Name, "enqueued")
		q.log.Debug("reconcile_task_enqueued", zap.String("task", t.Name), zap.String("order_number", t.OrderNumber))
		return nil
	default:
		q.abandon(t, ErrQueueFull)
		return ErrQueueFull
	}
}

// Pending is the number of queued tasks not yet picked up by a worker.
func (q *Queue) Pending() int {
	return len(q.queue)
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.queue:
			q.process(ctx, t)
		}
	}
}

func (q *Queue) process(ctx context.Context, t Task) {
	var err error
	for attempt := 0; attempt < q.maxAttempts; attempt++ {
		if attempt > 0 {
			if serr := Sleep(ctx, Backoff(q.baseDelay, attempt-1)); serr != nil {
				q.abandon(t, errors.Join(err, serr))
				return
			}
		}
		if err = q.runOnce(ctx, t); err == nil {
			q.metrics.ReconcileTask(t.Name, "succeeded")
			q.log.Info("reconcile_task_succeeded",
				zap.String("task", t.Name),
				zap.String("order_number", t.OrderNumber),
				zap.Int("attempts", attempt+1))
			return
		}
		q.metrics.ReconcileTask(t.Name, "failed_attempt")
		q.log.Warn("reconcile_task_failed",
			zap.String("task", t.Name),
			zap.String("order_number", t.OrderNumber),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	q.abandon(t, err)
}

func (q *Queue) runOnce(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("reconcile_task_panic",
				zap.String("task", t.Name),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, q.taskTimeout)
	defer cancel()
	return t.Run(ctx)
}

// abandon records a task that needs manual follow-up.
func (q *Queue) abandon(t Task, err error) {
	q.metrics.ReconcileAbandoned()
	q.log.Error("reconciliation_abandoned",
		zap.String("task", t.Name),
		zap.String("order_number", t.OrderNumber),
		zap.Error(err))
}
