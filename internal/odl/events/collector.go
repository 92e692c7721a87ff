// Package events delivers circulation events to analytics after the
// transactions that produced them have committed.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"circulation/internal/odl/metrics"
	"circulation/internal/odl/models"
	"circulation/internal/odl/ports"
)

// Report summarises one delivery run. Delivery failures never surface as errors.
type Report struct {
	Delivered int
	Failed    int
}

// Add merges o into r.
func (r *Report) Add(o Report) {
	r.Delivered += o.Delivered
	r.Failed += o.Failed
}

// Collector hands events to an analytics sink, one short transaction per event.
type Collector struct {
	store       ports.Store
	sink        ports.AnalyticsSink
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Collector.
type Option func(*Collector)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Collector) {
		c.metrics = m
	}
}

// WithConcurrency bounds how many events are in flight at once. Values below
// one mean sequential delivery.
func WithConcurrency(n int) Option {
	return func(c *Collector) {
		c.concurrency = max(n, 1)
	}
}

func New(store ports.Store, sink ports.AnalyticsSink, opts ...Option) (*Collector, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if sink == nil {
		return nil, errors.New("analytics sink is required")
	}
	c := &Collector{
		store:       store,
		sink:        sink,
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Collect delivers every event. A failure for one event is logged and does
// not stop delivery of the others.
func (c *Collector) Collect(ctx context.Context, events []models.CirculationEvent) Report {
	if len(events) == 0 {
		return Report{}
	}

	var delivered, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)

	for _, event := range events {
		g.Go(func() error {
			if err := c.deliver(ctx, event); err != nil {
				failed.Add(1)
				c.metrics.IncEventFailure(string(event.Type))
				c.logger.WarnContext(ctx, "circulation event delivery failed",
					"event_type", event.Type,
					"license_pool_id", event.LicensePoolID,
					"hold_id", event.HoldID,
					"error", err,
				)
				return nil
			}
			delivered.Add(1)
			c.metrics.IncEventDelivered(string(event.Type))
			return nil
		})
	}
	_ = g.Wait()

	return Report{Delivered: int(delivered.Load()), Failed: int(failed.Load())}
}

func (c *Collector) deliver(ctx context.Context, event models.CirculationEvent) error {
	return c.store.RunInTx(ctx, func(txCtx context.Context) error {
		resolved, err := c.store.ResolveEvent(txCtx, event)
		if err != nil {
			return fmt.Errorf("resolve event: %w", err)
		}
		if err := c.sink.CollectEvent(txCtx, *resolved); err != nil {
			return fmt.Errorf("collect event: %w", err)
		}
		return nil
	})
}
