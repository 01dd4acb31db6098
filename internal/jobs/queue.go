// Package jobs runs the periodic personalization, reminder and weekly report
// work, and owns the bounded background queue used for fire-and-forget tasks.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultQueueConcurrency is the number of tasks the queue runs at once.
const DefaultQueueConcurrency = 3

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("background queue closed")

// Task is a unit of background work.
type Task func(ctx context.Context) error

// BackgroundQueue runs tasks with bounded concurrency. Failures are logged
// and dropped and panics are recovered.
type BackgroundQueue struct {
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	metrics *Metrics
}

// NewBackgroundQueue creates a queue running at most concurrency tasks.
func NewBackgroundQueue(concurrency int, logger *zap.Logger) (*BackgroundQueue, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if concurrency <= 0 {
		concurrency = DefaultQueueConcurrency
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BackgroundQueue{
		sem:     semaphore.NewWeighted(int64(concurrency)),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		metrics: NewMetrics(),
	}, nil
}

// Enqueue schedules task and returns immediately.
func (q *BackgroundQueue) Enqueue(name string, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("%w: %s", ErrQueueClosed, name)
	}
	q.wg.Add(1)
	go q.run(name, task)
	return nil
}

func (q *BackgroundQueue) run(name string, task Task) {
	defer q.wg.Done()
	if err := q.sem.Acquire(q.ctx, 1); err != nil {
		q.metrics.QueueTasksTotal.WithLabelValues("dropped").Inc()
		q.logger.Warn("background task dropped", zap.String("task", name), zap.Error(err))
		return
	}
	defer q.sem.Release(1)

	q.metrics.QueueInFlight.Inc()
	defer q.metrics.QueueInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			q.metrics.QueueTasksTotal.WithLabelValues("panic").Inc()
			q.logger.Error("background task panicked",
				zap.String("task", name),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	if err := task(q.ctx); err != nil {
		q.metrics.QueueTasksTotal.WithLabelValues("error").Inc()
		q.logger.Warn("background task failed", zap.String("task", name), zap.Error(err))
		return
	}
	q.metrics.QueueTasksTotal.WithLabelValues("ok").Inc()
}

// Shutdown stops accepting tasks and waits for queued ones to finish. When
// ctx ends first, running tasks see their context cancelled and ctx's error
// is returned.
func (q *BackgroundQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	defer q.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
