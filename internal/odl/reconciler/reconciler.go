// Package reconciler brings a license pool's counters and hold queue into a
// consistent state while the pool's license rows are locked.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"circulation/internal/odl/metrics"
	"circulation/internal/odl/models"
	"circulation/internal/odl/ports"
	"circulation/internal/odl/store"
	"circulation/pkg/platform/clock"
	"circulation/pkg/platform/retry"
)

// Result reports what one reconciliation pass changed.
type Result struct {
	// Updated counts holds whose position or end changed.
	Updated int
	// Expired counts ready holds deleted because their window had closed.
	Expired int
	// Events holds the hold-expired events of deleted holds followed by one
	// hold-ready event per promotion, in queue order.
	Events []models.CirculationEvent
	// Pool is the pool as persisted after the pass.
	Pool models.LicensePool
}

// Reconciler recomputes license pool availability and reorders its holds.
type Reconciler struct {
	store   ports.Store
	retry   retry.Policy
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Reconciler.
type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

func WithClock(c clock.Clock) Option {
	return func(r *Reconciler) {
		r.clock = c
	}
}

// WithRetryPolicy replaces the default per-pool retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(r *Reconciler) {
		r.retry = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Reconciler) {
		r.tracer = t
	}
}

// New builds a Reconciler. By default transient store errors are retried
// with exponential backoff.
func New(s ports.Store, opts ...Option) (*Reconciler, error) {
	if s == nil {
		return nil, errors.New("store is required")
	}
	policy, err := retry.New(retry.WithRetryable(store.IsTransient))
	if err != nil {
		return nil, fmt.Errorf("default retry policy: %w", err)
	}
	r := &Reconciler{
		store:  s,
		retry:  policy,
		clock:  clock.NewSystem(),
		logger: slog.Default(),
		tracer: otel.Tracer("circulation/odl/reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// LockLicenses takes an exclusive row lock on every license of the pool,
// ordered by ID. It must run inside the transaction carried by ctx; the locks
// are released when that transaction ends. Errors, deadlocks included, must
// abort the caller's transaction.
func LockLicenses(ctx context.Context, s ports.LicenseStore, poolID int64) ([]models.License, error) {
	licenses, err := s.LockLicenses(ctx, poolID)
	if err != nil {
		return nil, err
	}
	return licenses, nil
}

// Reconcile runs one pass over the pool inside the transaction carried by ctx.
//
// The licenses are locked first. Ready holds whose window already closed are
// deleted with a hold-expired event, so no lapsed reservation keeps position
// 0. The pool counters are then recomputed and the active holds are split
// into the ready prefix and the waiting tail. Ready holds that are not yet at
// position 0 with an end are promoted with end = now + reservationPeriod and
// produce a hold-ready event; ready holds already reserved keep their
// original end. Waiting holds get dense 1-based positions and no end.
func (r *Reconciler) Reconcile(ctx context.Context, poolID int64, reservationPeriod time.Duration, now time.Time) (*Result, error) {
	licenses, err := LockLicenses(ctx, r.store, poolID)
	if err != nil {
		return nil, err
	}
	pool, err := r.store.GetLicensePoolForUpdate(ctx, poolID)
	if err != nil {
		return nil, err
	}
	result := &Result{}
	expired, err := r.store.ExpiredPoolHoldsForUpdate(ctx, poolID, now)
	if err != nil {
		return nil, err
	}
	for _, h := range expired {
		if err := r.store.DeleteHold(ctx, h.ID); err != nil {
			return nil, err
		}
		result.Expired++
		result.Events = append(result.Events, models.NewHoldEvent(models.EventHoldExpired, h, now))
	}

	holds, err := r.store.ActiveHoldsForUpdate(ctx, poolID, now)
	if err != nil {
		return nil, err
	}

	if pool.UpdateAvailabilityFromLicenses(licenses, len(holds), now) {
		if err := r.store.UpdateLicensePoolAvailability(ctx, pool); err != nil {
			return nil, err
		}
	}

	reserved := min(pool.LicensesReserved, len(holds))
	ready, waiting := holds[:reserved], holds[reserved:]
	result.Pool = *pool

	for _, h := range ready {
		if h.Position == 0 && h.End != nil {
			continue
		}
		end := now.Add(reservationPeriod)
		h.Position = 0
		h.End = &end
		if err := r.store.UpdateHold(ctx, h); err != nil {
			return nil, err
		}
		result.Updated++
		result.Events = append(result.Events, models.NewHoldEvent(models.EventHoldReady, h, now))
	}

	for i, h := range waiting {
		position := i + 1
		if h.Position == position && h.End == nil {
			continue
		}
		h.Position = position
		h.End = nil
		if err := r.store.UpdateHold(ctx, h); err != nil {
			return nil, err
		}
		result.Updated++
	}

	return result, nil
}

// ReconcileInTx runs Reconcile in its own short transaction, retrying the
// whole unit when the store reports a transient conflict. Nothing from a
// failed attempt is persisted.
func (r *Reconciler) ReconcileInTx(ctx context.Context, poolID int64, reservationPeriod time.Duration) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "odl.reconcile_pool",
		trace.WithAttributes(attribute.Int64("license_pool.id", poolID)))
	defer span.End()

	start := time.Now()
	defer r.metrics.ObserveReconcile(start)

	attempt := 0
	var result *Result
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			r.metrics.IncTransientRetry()
			r.logger.DebugContext(ctx, "retrying pool reconciliation",
				"license_pool_id", poolID,
				"attempt", attempt,
			)
		}
		return r.store.RunInTx(ctx, func(txCtx context.Context) error {
			res, err := r.Reconcile(txCtx, poolID, reservationPeriod, r.clock.Now())
			if err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	if err != nil {
		r.metrics.IncPoolReconciled(metrics.OutcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		return nil, fmt.Errorf("reconcile license pool %d: %w", poolID, err)
	}

	r.metrics.IncPoolReconciled(metrics.OutcomeOK)
	r.metrics.AddHoldsUpdated(result.Updated)
	r.metrics.AddHoldsExpired(result.Expired)
	span.SetAttributes(
		attribute.Int("holds.updated", result.Updated),
		attribute.Int("holds.expired", result.Expired),
		attribute.Int("events", len(result.Events)),
	)
	return result, nil
}
