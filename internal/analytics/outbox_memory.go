package analytics

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryOutbox is an OutboxRepository for tests and single-process runs.
// Transactions serialise on one mutex; ClaimPending never skips rows.
type InMemoryOutbox struct {
	mu      sync.Mutex
	entries map[uuid.UUID]OutboxEntry
	txMu    sync.Mutex
}

func NewInMemoryOutbox() *InMemoryOutbox {
	return &InMemoryOutbox{entries: make(map[uuid.UUID]OutboxEntry)}
}

func (s *InMemoryOutbox) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := make(map[uuid.UUID]OutboxEntry, len(s.entries))
	for id, e := range s.entries {
		snapshot[id] = e
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.entries = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *InMemoryOutbox) Append(_ context.Context, entry OutboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
	return nil
}

func (s *InMemoryOutbox) ClaimPending(_ context.Context, limit int) ([]OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []OutboxEntry
	for _, e := range s.entries {
		if e.PublishedAt == nil {
			pending = append(pending, e)
		}
	}
	slices.SortFunc(pending, func(a, b OutboxEntry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *InMemoryOutbox) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		e, ok := s.entries[id]
		if !ok {
			continue
		}
		published := at
		e.PublishedAt = &published
		s.entries[id] = e
	}
	return nil
}

// Pending returns the number of unpublished entries.
func (s *InMemoryOutbox) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.PublishedAt == nil {
			n++
		}
	}
	return n
}
