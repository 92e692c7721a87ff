package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Relay moves outbox entries to Kafka. Several relays may run against the
// same table; each claims its batch with SKIP LOCKED. Delivery is
// at-least-once: an entry published right before a crash is published again.
type Relay struct {
	outbox    OutboxRepository
	publisher Publisher
	topic     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithRelayMetrics(m *Metrics) RelayOption {
	return func(r *Relay) {
		r.metrics = m
	}
}

// WithRelayInterval sets the pause between polls when the outbox is drained.
func WithRelayInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithRelayBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewRelay(outbox OutboxRepository, publisher Publisher, topic string, opts ...RelayOption) (*Relay, error) {
	if outbox == nil {
		return nil, errors.New("outbox is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	r := &Relay{
		outbox:    outbox,
		publisher: publisher,
		topic:     topic,
		interval:  5 * time.Second,
		batchSize: 100,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Serve polls until ctx is cancelled. A full batch is followed immediately by
// the next one.
func (r *Relay) Serve(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		n, err := r.RelayOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.metrics.incRelayFailure()
			r.logger.WarnContext(ctx, "outbox relay failed", "error", err)
		}
		next := r.interval
		if err == nil && n == r.batchSize {
			next = 0
		}
		timer.Reset(next)
	}
}

func (r *Relay) String() string {
	return "analytics-outbox-relay"
}

// RelayOnce publishes one batch and returns how many entries were published.
// Entries published before a failure are still marked.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	published := 0
	var publishErr error
	err := r.outbox.RunInTx(ctx, func(txCtx context.Context) error {
		published, publishErr = 0, nil
		entries, err := r.outbox.ClaimPending(txCtx, r.batchSize)
		if err != nil {
			return err
		}
		done := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			msg := payloadMessage(r.topic, e.ID.String(), e.EventType, e.Key, e.Payload)
			if err := r.publisher.Publish(txCtx, msg); err != nil {
				publishErr = fmt.Errorf("publish outbox entry %s: %w", e.ID, err)
				break
			}
			done = append(done, e.ID)
		}
		if err := r.outbox.MarkPublished(txCtx, done, time.Now().UTC()); err != nil {
			return err
		}
		published = len(done)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("relay outbox: %w", err)
	}
	r.metrics.addPublished(published)
	return published, publishErr
}
