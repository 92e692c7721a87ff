// Package notify tells patrons that a held title is ready to borrow.
//
// A patron hears about a given hold at most once per UTC day. The hold is
// claimed in a short transaction that stamps patron_last_notified; the notice
// is sent after commit, so a send failure loses that day's notice rather than
// repeating it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"circulation/internal/odl/metrics"
	"circulation/internal/odl/models"
	"circulation/internal/odl/ports"
	"circulation/pkg/platform/clock"
	"circulation/pkg/platform/sentinel"
	"circulation/pkg/platform/tx"
)

const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Notice is one hold-ready message.
type Notice struct {
	HoldID        int64     `json:"hold_id"`
	PatronID      int64     `json:"patron_id"`
	LibraryID     int64     `json:"library_id"`
	LicensePoolID int64     `json:"license_pool_id"`
	ReadyUntil    time.Time `json:"ready_until"`
	SentAt        time.Time `json:"sent_at"`
}

// Sender delivers a notice to the patron's channel.
type Sender interface {
	Send(ctx context.Context, notice Notice) error
}

// Store is the persistence the notifier needs.
type Store interface {
	tx.Runner
	ports.HoldStore
}

// Notifier implements ports.HoldNotifier.
type Notifier struct {
	store   Store
	sender  Sender
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

var _ ports.HoldNotifier = (*Notifier)(nil)

// Option configures a Notifier.
type Option func(*Notifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) {
		n.metrics = m
	}
}

func WithClock(c clock.Clock) Option {
	return func(n *Notifier) {
		n.clock = c
	}
}

func New(store Store, sender Sender, opts ...Option) (*Notifier, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	n := &Notifier{
		store:  store,
		sender: sender,
		clock:  clock.NewSystem(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// NotifyReady sends a notice for every hold-ready event whose hold is still
// ready and whose patron was not notified today. Other event types are
// ignored. It returns the number of notices sent.
func (n *Notifier) NotifyReady(ctx context.Context, evts []models.CirculationEvent) int {
	sent := 0
	for _, e := range evts {
		if e.Type != models.EventHoldReady {
			continue
		}
		notice, err := n.claim(ctx, e.HoldID)
		if err != nil {
			n.metrics.IncNotification(OutcomeFailed)
			n.logger.WarnContext(ctx, "hold notification claim failed",
				"hold_id", e.HoldID,
				"error", err,
			)
			continue
		}
		if notice == nil {
			n.metrics.IncNotification(OutcomeSkipped)
			continue
		}
		if err := n.sender.Send(ctx, *notice); err != nil {
			n.metrics.IncNotification(OutcomeFailed)
			n.logger.WarnContext(ctx, "hold notification not delivered",
				"hold_id", notice.HoldID,
				"patron_id", notice.PatronID,
				"error", err,
			)
			continue
		}
		n.metrics.IncNotification(OutcomeSent)
		sent++
	}
	return sent
}

// claim marks the hold as notified and returns the notice to send, or nil
// when the hold is gone, no longer ready or already notified today.
func (n *Notifier) claim(ctx context.Context, holdID int64) (*Notice, error) {
	var notice *Notice
	err := n.store.RunInTx(ctx, func(txCtx context.Context) error {
		notice = nil
		now := n.clock.Now()
		h, err := n.store.GetHoldForUpdate(txCtx, holdID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !h.IsReady() || h.NotifiedOn(now) {
			return nil
		}
		if err := n.store.MarkPatronNotified(txCtx, h.ID, now); err != nil {
			return err
		}
		notice = &Notice{
			HoldID:        h.ID,
			PatronID:      h.PatronID,
			LibraryID:     h.LibraryID,
			LicensePoolID: h.LicensePoolID,
			ReadyUntil:    *h.End,
			SentAt:        now,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim hold %d: %w", holdID, err)
	}
	return notice, nil
}
