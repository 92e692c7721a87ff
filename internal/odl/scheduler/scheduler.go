// Package scheduler runs hold-queue recalculation over a collection in
// bounded batches of license pools.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"circulation/internal/odl/events"
	"circulation/internal/odl/metrics"
	"circulation/internal/odl/models"
	"circulation/internal/odl/mutex"
	"circulation/internal/odl/ports"
	"circulation/internal/odl/reconciler"
)

// TaskName scopes the collection mutex of the recalculation task.
const TaskName = "recalculate-hold-queue"

// DefaultBatchSize applies when a request carries no batch size.
const DefaultBatchSize = 100

// BatchRequest identifies one unit of work. AfterID is exclusive.
type BatchRequest struct {
	CollectionID int64
	BatchSize    int
	AfterID      int64
}

// Continuation asks the caller to run the next batch.
type Continuation struct {
	CollectionID int64
	BatchSize    int
	AfterID      int64
}

// Request converts the continuation back into a batch request.
func (c Continuation) Request() BatchRequest {
	return BatchRequest(c)
}

// BatchResult reports one batch.
type BatchResult struct {
	// Skipped is true when another worker held the collection mutex. Nothing
	// was read or written and no continuation is requested.
	Skipped   bool
	Processed []int64
	Updated   int
	Failed    []int64
	Events    events.Report
	// Next is set when the batch was full, so more pools likely remain.
	Next *Continuation
}

// Scheduler selects pools with holds and reconciles them one transaction each.
type Scheduler struct {
	store      ports.Store
	lockers    ports.LockerFactory
	reconciler *reconciler.Reconciler
	collector  *events.Collector
	notifier   ports.HoldNotifier
	lockTTL    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func WithNotifier(n ports.HoldNotifier) Option {
	return func(s *Scheduler) {
		s.notifier = n
	}
}

// WithLeaseRenewal keeps the collection mutex alive for batches that outlast
// ttl. Zero disables renewal.
func WithLeaseRenewal(ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.lockTTL = ttl
	}
}

func New(
	store ports.Store,
	lockers ports.LockerFactory,
	rec *reconciler.Reconciler,
	collector *events.Collector,
	opts ...Option,
) (*Scheduler, error) {
	switch {
	case store == nil:
		return nil, errors.New("store is required")
	case lockers == nil:
		return nil, errors.New("locker factory is required")
	case rec == nil:
		return nil, errors.New("reconciler is required")
	case collector == nil:
		return nil, errors.New("event collector is required")
	}
	s := &Scheduler{
		store:      store,
		lockers:    lockers,
		reconciler: rec,
		collector:  collector,
		logger:     slog.Default(),
		tracer:     otel.Tracer("circulation/odl/scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RecalculateBatch reconciles up to BatchSize pools of the collection with
// IDs after AfterID. The collection's reservation period is checked before
// the mutex is taken; a pool that fails is logged and left for the next run.
func (s *Scheduler) RecalculateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if req.BatchSize <= 0 {
		req.BatchSize = DefaultBatchSize
	}
	ctx, span := s.tracer.Start(ctx, "odl.recalculate_batch", trace.WithAttributes(
		attribute.Int64("collection.id", req.CollectionID),
		attribute.Int64("batch.after_id", req.AfterID),
		attribute.Int("batch.size", req.BatchSize),
	))
	defer span.End()
	start := time.Now()
	defer s.metrics.ObserveBatch(start)

	collection, err := s.store.GetCollection(ctx, req.CollectionID)
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	period, err := collection.ReservationPeriod()
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	var pending []models.CirculationEvent

	var guardOpts []mutex.GuardOption
	if s.lockTTL > 0 {
		guardOpts = append(guardOpts, mutex.WithRenewal(s.lockTTL))
	}
	locker := s.lockers.ForCollection(TaskName, req.CollectionID)
	ran, err := mutex.Guard(ctx, locker, func(ctx context.Context) error {
		poolIDs, err := s.store.LicensePoolIDsWithHolds(ctx, req.CollectionID, req.AfterID, req.BatchSize)
		if err != nil {
			return fmt.Errorf("select batch: %w", err)
		}
		for _, poolID := range poolIDs {
			res, err := s.reconciler.ReconcileInTx(ctx, poolID, period)
			if err != nil {
				result.Failed = append(result.Failed, poolID)
				s.logger.ErrorContext(ctx, "license pool reconciliation failed",
					"collection_id", req.CollectionID,
					"license_pool_id", poolID,
					"error", err,
				)
				continue
			}
			result.Processed = append(result.Processed, poolID)
			result.Updated += res.Updated
			pending = append(pending, res.Events...)
		}
		if len(poolIDs) == req.BatchSize {
			result.Next = &Continuation{
				CollectionID: req.CollectionID,
				BatchSize:    req.BatchSize,
				AfterID:      poolIDs[len(poolIDs)-1],
			}
		}
		return nil
	}, guardOpts...)
	if err != nil {
		return nil, fmt.Errorf("recalculate collection %d: %w", req.CollectionID, err)
	}
	if !ran {
		s.metrics.IncLockContended(TaskName)
		s.logger.InfoContext(ctx, "collection mutex held elsewhere, skipping",
			"task", TaskName,
			"collection_id", req.CollectionID,
		)
		return &BatchResult{Skipped: true}, nil
	}

	result.Events = s.collector.Collect(ctx, pending)
	if s.notifier != nil {
		s.notifier.NotifyReady(ctx, pending)
	}

	span.SetAttributes(
		attribute.Int("batch.processed", len(result.Processed)),
		attribute.Int("batch.failed", len(result.Failed)),
		attribute.Bool("batch.continues", result.Next != nil),
	)
	s.logger.InfoContext(ctx, "hold queue batch recalculated",
		"collection_id", req.CollectionID,
		"after_id", req.AfterID,
		"processed", len(result.Processed),
		"failed", len(result.Failed),
		"holds_updated", result.Updated,
		"events_delivered", result.Events.Delivered,
		"events_failed", result.Events.Failed,
		"continues", result.Next != nil,
	)
	return result, nil
}
