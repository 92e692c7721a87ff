package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"circulation/internal/odl/models"
	"circulation/pkg/platform/sentinel"
	"circulation/pkg/platform/tx"
)

// OutboxEntry is one analytics payload waiting to be relayed.
type OutboxEntry struct {
	ID          uuid.UUID  `db:"id"`
	EventType   string     `db:"event_type"`
	Key         string     `db:"aggregate_key"`
	Payload     []byte     `db:"payload"`
	CreatedAt   time.Time  `db:"created_at"`
	PublishedAt *time.Time `db:"published_at"`
}

// OutboxRepository stores payloads and hands pending ones to the relay.
type OutboxRepository interface {
	tx.Runner
	Append(ctx context.Context, entry OutboxEntry) error
	// ClaimPending locks up to limit unpublished entries, oldest first,
	// skipping rows claimed by another relay. Requires a transaction.
	ClaimPending(ctx context.Context, limit int) ([]OutboxEntry, error)
	// MarkPublished stamps the entries. Requires a transaction.
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

const (
	insertOutboxQuery = `
		INSERT INTO circulation_outbox (id, event_type, aggregate_key, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	claimOutboxQuery = `
		SELECT id, event_type, aggregate_key, payload, created_at, published_at
		FROM circulation_outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	markPublishedQuery = `UPDATE circulation_outbox SET published_at = $2 WHERE id = ANY($1)`
)

// PostgresOutbox writes analytics payloads to the circulation_outbox table.
// Appends join the transaction in ctx when there is one, so a payload is
// only visible once the work that produced it commits.
type PostgresOutbox struct {
	*tx.SQLRunner
	db *sqlx.DB
}

func NewPostgresOutbox(db *sqlx.DB, txTimeout time.Duration) *PostgresOutbox {
	return &PostgresOutbox{SQLRunner: tx.NewSQLRunner(db, txTimeout), db: db}
}

func (s *PostgresOutbox) execer(ctx context.Context) sqlx.ExtContext {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresOutbox) Append(ctx context.Context, entry OutboxEntry) error {
	_, err := s.execer(ctx).ExecContext(ctx, insertOutboxQuery,
		entry.ID,
		entry.EventType,
		entry.Key,
		entry.Payload,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *PostgresOutbox) ClaimPending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	t, ok := tx.From(ctx)
	if !ok {
		return nil, fmt.Errorf("claim outbox entries: %w", sentinel.ErrNoTransaction)
	}
	var entries []OutboxEntry
	if err := sqlx.SelectContext(ctx, t, &entries, claimOutboxQuery, limit); err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	return entries, nil
}

func (s *PostgresOutbox) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	t, ok := tx.From(ctx)
	if !ok {
		return fmt.Errorf("mark outbox entries published: %w", sentinel.ErrNoTransaction)
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	if _, err := t.ExecContext(ctx, markPublishedQuery, pq.Array(raw), at); err != nil {
		return fmt.Errorf("mark outbox entries published: %w", err)
	}
	return nil
}

// OutboxSink appends events to an outbox for the relay to publish.
type OutboxSink struct {
	outbox OutboxRepository
	now    func() time.Time
}

func NewOutboxSink(outbox OutboxRepository) *OutboxSink {
	return &OutboxSink{outbox: outbox, now: time.Now}
}

func (s *OutboxSink) CollectEvent(ctx context.Context, e models.ResolvedEvent) error {
	payload := NewPayload(e)
	value, err := payload.Marshal()
	if err != nil {
		return fmt.Errorf("marshal analytics payload: %w", err)
	}
	id, err := uuid.Parse(payload.ID)
	if err != nil {
		return fmt.Errorf("parse payload id: %w", err)
	}
	return s.outbox.Append(ctx, OutboxEntry{
		ID:        id,
		EventType: payload.Type,
		Key:       payload.Key(),
		Payload:   value,
		CreatedAt: s.now().UTC(),
	})
}
