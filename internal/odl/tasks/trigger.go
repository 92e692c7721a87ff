package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"circulation/internal/odl/ports"
)

// Enqueuer accepts tasks.
type Enqueuer interface {
	Enqueue(t Task) error
}

// Trigger periodically queues one task per collection speaking one of the
// configured protocols. It runs once at start and then on every tick.
type Trigger struct {
	kind      Kind
	interval  time.Duration
	batchSize int
	protocols []string
	lookup    ports.CollectionLookup
	queue     Enqueuer
	logger    *slog.Logger
}

// TriggerConfig configures a Trigger.
type TriggerConfig struct {
	Kind      Kind
	Interval  time.Duration
	BatchSize int
	Protocols []string
}

func NewTrigger(cfg TriggerConfig, lookup ports.CollectionLookup, queue Enqueuer, logger *slog.Logger) (*Trigger, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("trigger %s: interval must be positive", cfg.Kind)
	}
	if lookup == nil || queue == nil {
		return nil, errors.New("collection lookup and queue are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		kind:      cfg.Kind,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		protocols: cfg.Protocols,
		lookup:    lookup,
		queue:     queue,
		logger:    logger,
	}, nil
}

// Serve fires until ctx is cancelled.
func (t *Trigger) Serve(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		if _, err := t.Fire(ctx); err != nil && ctx.Err() == nil {
			t.logger.ErrorContext(ctx, "trigger failed", "task", string(t.kind), "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Fire queues one task per matching collection and returns how many were
// queued. A full queue skips the remaining collections until the next tick.
func (t *Trigger) Fire(ctx context.Context) (int, error) {
	collections, err := t.lookup.ListCollections(ctx, t.protocols)
	if err != nil {
		return 0, fmt.Errorf("list collections: %w", err)
	}
	queued := 0
	for _, c := range collections {
		task := Task{Kind: t.kind, CollectionID: c.ID}
		if t.kind == KindRecalculate {
			task.BatchSize = t.batchSize
		}
		if err := t.queue.Enqueue(task); err != nil {
			return queued, fmt.Errorf("queue %s for collection %d: %w", t.kind, c.ID, err)
		}
		queued++
	}
	t.logger.DebugContext(ctx, "trigger fired", "task", string(t.kind), "queued", queued)
	return queued, nil
}

func (t *Trigger) String() string {
	return "trigger-" + string(t.kind)
}
