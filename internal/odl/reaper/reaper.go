// Package reaper removes ready holds whose reservation window passed without
// a checkout and hands the freed copies back to the hold queue.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"circulation/internal/odl/events"
	"circulation/internal/odl/metrics"
	"circulation/internal/odl/models"
	"circulation/internal/odl/mutex"
	"circulation/internal/odl/ports"
	"circulation/internal/odl/reconciler"
	"circulation/pkg/platform/clock"
)

// TaskName scopes the collection mutex of the reaper.
const TaskName = "remove-expired-holds"

// DefaultBatchSize caps the expired holds deleted in one transaction.
const DefaultBatchSize = 100

// ReapResult reports one run over a collection.
type ReapResult struct {
	// Skipped is true when another worker held the collection mutex.
	Skipped bool
	// Deleted counts expired holds removed.
	Deleted int
	// Reconciled lists pools whose queue was recomputed after the deletions.
	Reconciled []int64
	// Failed lists pools whose reconciliation failed; they are picked up by
	// the next recalculation pass.
	Failed []int64
	Events events.Report
}

// Reaper deletes expired ready holds of a collection.
type Reaper struct {
	store      ports.Store
	lockers    ports.LockerFactory
	reconciler *reconciler.Reconciler
	collector  *events.Collector
	notifier   ports.HoldNotifier
	batchSize  int
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures a Reaper.
type Option func(*Reaper)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reaper) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reaper) {
		r.metrics = m
	}
}

func WithClock(c clock.Clock) Option {
	return func(r *Reaper) {
		r.clock = c
	}
}

// WithBatchSize bounds each deletion transaction. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(r *Reaper) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithNotifier sends hold-ready notices for holds promoted into freed copies.
func WithNotifier(n ports.HoldNotifier) Option {
	return func(r *Reaper) {
		r.notifier = n
	}
}

func New(
	store ports.Store,
	lockers ports.LockerFactory,
	rec *reconciler.Reconciler,
	collector *events.Collector,
	opts ...Option,
) (*Reaper, error) {
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
	r := &Reaper{
		store:      store,
		lockers:    lockers,
		reconciler: rec,
		collector:  collector,
		batchSize:  DefaultBatchSize,
		clock:      clock.NewSystem(),
		logger:     slog.Default(),
		tracer:     otel.Tracer("circulation/odl/reaper"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ReapCollection removes the collection's expired ready holds under the
// collection mutex. Holds are deleted with their hold-expired events in
// transactions of at most the batch size; each affected pool is then
// reconciled in its own transaction, and every event is delivered only after
// the mutex is released.
func (r *Reaper) ReapCollection(ctx context.Context, collectionID int64) (*ReapResult, error) {
	ctx, span := r.tracer.Start(ctx, "odl.reap_collection",
		trace.WithAttributes(attribute.Int64("collection.id", collectionID)))
	defer span.End()

	collection, err := r.store.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	period, err := collection.ReservationPeriod()
	if err != nil {
		return nil, err
	}

	result := &ReapResult{}
	var pending []models.CirculationEvent

	ran, err := mutex.Guard(ctx, r.lockers.ForCollection(TaskName, collectionID), func(ctx context.Context) error {
		var poolIDs []int64
		for {
			expired, batchPools, err := r.deleteExpired(ctx, collectionID)
			if err != nil {
				return err
			}
			result.Deleted += len(expired)
			pending = append(pending, expired...)
			for _, id := range batchPools {
				if !slices.Contains(poolIDs, id) {
					poolIDs = append(poolIDs, id)
				}
			}
			if len(expired) < r.batchSize {
				break
			}
		}
		slices.Sort(poolIDs)

		for _, poolID := range poolIDs {
			res, err := r.reconciler.ReconcileInTx(ctx, poolID, period)
			if err != nil {
				result.Failed = append(result.Failed, poolID)
				r.logger.ErrorContext(ctx, "reconcile after reap failed",
					"collection_id", collectionID,
					"license_pool_id", poolID,
					"error", err,
				)
				continue
			}
			result.Reconciled = append(result.Reconciled, poolID)
			pending = append(pending, res.Events...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reap collection %d: %w", collectionID, err)
	}
	if !ran {
		r.metrics.IncLockContended(TaskName)
		r.logger.InfoContext(ctx, "collection mutex held elsewhere, skipping",
			"task", TaskName,
			"collection_id", collectionID,
		)
		return &ReapResult{Skipped: true}, nil
	}

	r.metrics.AddHoldsExpired(result.Deleted)
	result.Events = r.collector.Collect(ctx, pending)
	if r.notifier != nil {
		r.notifier.NotifyReady(ctx, pending)
	}

	span.SetAttributes(attribute.Int("holds.deleted", result.Deleted))
	r.logger.InfoContext(ctx, "expired holds removed",
		"collection_id", collectionID,
		"deleted", result.Deleted,
		"pools_reconciled", len(result.Reconciled),
		"pools_failed", len(result.Failed),
		"events_delivered", result.Events.Delivered,
	)
	return result, nil
}

// deleteExpired removes up to batchSize expired ready holds in one
// transaction and returns their events and the distinct pools they belonged
// to.
func (r *Reaper) deleteExpired(ctx context.Context, collectionID int64) ([]models.CirculationEvent, []int64, error) {
	var evts []models.CirculationEvent
	var poolIDs []int64

	err := r.store.RunInTx(ctx, func(txCtx context.Context) error {
		evts, poolIDs = nil, nil
		now := r.clock.Now()
		holds, err := r.store.ExpiredHoldsForUpdate(txCtx, collectionID, now, r.batchSize)
		if err != nil {
			return err
		}
		for _, h := range holds {
			evts = append(evts, models.NewHoldEvent(models.EventHoldExpired, h, now))
			if err := r.store.DeleteHold(txCtx, h.ID); err != nil {
				return err
			}
			if !slices.Contains(poolIDs, h.LicensePoolID) {
				poolIDs = append(poolIDs, h.LicensePoolID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("delete expired holds: %w", err)
	}
	return evts, poolIDs, nil
}
