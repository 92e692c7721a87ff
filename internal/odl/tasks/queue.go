// Package tasks runs the hold-queue recalculation and expired-hold removal
// units of work on a bounded worker pool, and triggers them periodically
// for every ODL collection.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gammazero/workerpool"

	"circulation/internal/odl/metrics"
	"circulation/internal/odl/reaper"
	"circulation/internal/odl/scheduler"
)

// ErrQueueFull is returned when the waiting queue is at capacity.
var ErrQueueFull = errors.New("task queue full")

// ErrQueueStopped is returned for tasks enqueued after shutdown began.
var ErrQueueStopped = errors.New("task queue stopped")

// Kind names a unit of work.
type Kind string

const (
	KindRecalculate Kind = scheduler.TaskName
	KindReap        Kind = reaper.TaskName
)

// Task is one queued unit of work for a collection. BatchSize and AfterID
// only apply to recalculation.
type Task struct {
	Kind         Kind
	CollectionID int64
	BatchSize    int
	AfterID      int64
}

// BatchRunner recalculates one batch of a collection.
type BatchRunner interface {
	RecalculateBatch(ctx context.Context, req scheduler.BatchRequest) (*scheduler.BatchResult, error)
}

// CollectionReaper removes a collection's expired holds.
type CollectionReaper interface {
	ReapCollection(ctx context.Context, collectionID int64) (*reaper.ReapResult, error)
}

// Queue executes tasks on a fixed number of workers. A recalculation batch
// that asks for a continuation is queued again with the returned cursor.
type Queue struct {
	pool     *workerpool.WorkerPool
	batches  BatchRunner
	reaper   CollectionReaper
	capacity int
	logger   *slog.Logger
	metrics  *metrics.Metrics
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	stopped  bool
	stopOnce sync.Once
	pending  sync.WaitGroup
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

func WithLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) QueueOption {
	return func(q *Queue) {
		q.metrics = m
	}
}

// NewQueue starts workers goroutines. capacity bounds the number of tasks
// waiting for a worker.
func NewQueue(workers, capacity int, batches BatchRunner, r CollectionReaper, opts ...QueueOption) (*Queue, error) {
	if workers < 1 {
		return nil, fmt.Errorf("workers must be positive, got %d", workers)
	}
	if batches == nil || r == nil {
		return nil, errors.New("batch runner and reaper are required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		pool:     workerpool.New(workers),
		batches:  batches,
		reaper:   r,
		capacity: max(capacity, 1),
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Enqueue submits t without blocking.
func (q *Queue) Enqueue(t Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		q.metrics.IncTaskDropped(string(t.Kind))
		return ErrQueueStopped
	}
	if q.pool.WaitingQueueSize() >= q.capacity {
		q.metrics.IncTaskDropped(string(t.Kind))
		return ErrQueueFull
	}
	q.pending.Add(1)
	q.pool.Submit(func() { q.run(t) })
	q.metrics.SetQueueDepth(q.pool.WaitingQueueSize())
	return nil
}

func (q *Queue) run(t Task) {
	ctx := q.ctx
	logger := q.logger.With("task", string(t.Kind), "collection_id", t.CollectionID)
	defer q.complete()

	var err error
	switch t.Kind {
	case KindRecalculate:
		err = q.recalculate(ctx, t)
	case KindReap:
		_, err = q.reaper.ReapCollection(ctx, t.CollectionID)
	default:
		err = fmt.Errorf("unknown task kind %q", t.Kind)
	}
	if err != nil {
		q.metrics.IncTaskRun(string(t.Kind), metrics.OutcomeFailed)
		logger.ErrorContext(ctx, "task failed", "error", err)
		return
	}
	q.metrics.IncTaskRun(string(t.Kind), metrics.OutcomeOK)
}

func (q *Queue) recalculate(ctx context.Context, t Task) error {
	res, err := q.batches.RecalculateBatch(ctx, scheduler.BatchRequest{
		CollectionID: t.CollectionID,
		BatchSize:    t.BatchSize,
		AfterID:      t.AfterID,
	})
	if err != nil {
		return err
	}
	if res.Next == nil {
		return nil
	}
	next := Task{
		Kind:         KindRecalculate,
		CollectionID: res.Next.CollectionID,
		BatchSize:    res.Next.BatchSize,
		AfterID:      res.Next.AfterID,
	}
	if err := q.Enqueue(next); err != nil {
		q.logger.WarnContext(ctx, "continuation not queued; the next trigger resumes from the start",
			"collection_id", next.CollectionID,
			"after_id", next.AfterID,
			"error", err,
		)
	}
	return nil
}

func (q *Queue) complete() {
	q.metrics.SetQueueDepth(q.pool.WaitingQueueSize())
	q.pending.Done()
}

// Serve blocks until ctx is cancelled, then cancels running tasks and waits
// for the workers to exit. Queued tasks that have not started are dropped.
func (q *Queue) Serve(ctx context.Context) error {
	<-ctx.Done()
	q.Stop()
	return ctx.Err()
}

// Stop rejects new tasks, cancels running ones and waits for them to return.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		q.mu.Unlock()
		q.cancel()
		q.pool.Stop()
	})
}

// Wait blocks until every queued task, continuations included, has run.
// Continuations are queued before their parent finishes, so Wait does not
// return between batches of one collection. Do not call Wait after Stop.
func (q *Queue) Wait() {
	q.pending.Wait()
}

func (q *Queue) String() string {
	return "odl-task-queue"
}
