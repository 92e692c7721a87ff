package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"circulation/internal/odl/models"
	"circulation/pkg/platform/sentinel"
)

// FaultFunc lets tests fail a store operation. op is the method name and id
// the primary key it targets.
type FaultFunc func(op string, id int64) error

// InMemoryStore is a transactional store for tests and local runs.
// Transactions are serialized by a single mutex, which stands in for the row
// locks a relational store takes: a transaction works on a private copy of the
// state that replaces the shared state only on commit.
type InMemoryStore struct {
	mu      sync.Mutex
	state   *memState
	nextID  int64
	fault   FaultFunc
	commits int
	writes  int
}

type memState struct {
	libraries   map[int64]models.Library
	patrons     map[int64]models.Patron
	collections map[int64]models.Collection
	pools       map[int64]models.LicensePool
	licenses    map[int64]models.License
	holds       map[int64]models.Hold
	writes      int
}

type memTxKey struct{}

type memTx struct {
	state *memState
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		state: &memState{
			libraries:   make(map[int64]models.Library),
			patrons:     make(map[int64]models.Patron),
			collections: make(map[int64]models.Collection),
			pools:       make(map[int64]models.LicensePool),
			licenses:    make(map[int64]models.License),
			holds:       make(map[int64]models.Hold),
		},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		libraries:   maps.Clone(s.libraries),
		patrons:     maps.Clone(s.patrons),
		collections: maps.Clone(s.collections),
		pools:       maps.Clone(s.pools),
		licenses:    maps.Clone(s.licenses),
		holds:       make(map[int64]models.Hold, len(s.holds)),
	}
	for id, h := range s.holds {
		c.holds[id] = copyHold(h)
	}
	return c
}

func copyHold(h models.Hold) models.Hold {
	if h.End != nil {
		end := *h.End
		h.End = &end
	}
	if h.PatronLastNotified != nil {
		n := *h.PatronLastNotified
		h.PatronLastNotified = &n
	}
	return h
}

// InjectFault installs fn to be consulted before every operation.
func (s *InMemoryStore) InjectFault(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

// RunInTx runs fn against a private copy of the state and publishes it when fn succeeds.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &memTx{state: s.state.clone()}
	t.state.writes = 0
	if err := fn(context.WithValue(ctx, memTxKey{}, t)); err != nil {
		return err
	}
	s.state = t.state
	s.commits++
	s.writes += t.state.writes
	return nil
}

// Commits reports how many transactions committed.
func (s *InMemoryStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Writes reports how many row mutations were committed.
func (s *InMemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// txState returns the transaction's state, or an error when locking is
// required and no transaction is open.
func (s *InMemoryStore) txState(ctx context.Context) (*memState, error) {
	if t, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return t.state, nil
	}
	return nil, sentinel.ErrNoTransaction
}

// read runs fn against the transaction state if present, otherwise against
// the committed state under the store mutex.
func (s *InMemoryStore) read(ctx context.Context, fn func(st *memState) error) error {
	if st, err := s.txState(ctx); err == nil {
		return fn(st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// check consults the fault hook. Inside a transaction the store mutex is
// already held by RunInTx; outside one it is taken here.
func (s *InMemoryStore) check(ctx context.Context, op string, id int64) error {
	var fault FaultFunc
	if _, err := s.txState(ctx); err == nil {
		fault = s.fault
	} else {
		s.mu.Lock()
		fault = s.fault
		s.mu.Unlock()
	}
	if fault == nil {
		return nil
	}
	return fault(op, id)
}

// -----------------------------------------------------------------------------
// Seeding
// -----------------------------------------------------------------------------

func (s *InMemoryStore) id(current int64) int64 {
	if current != 0 {
		if current > s.nextID {
			s.nextID = current
		}
		return current
	}
	s.nextID++
	return s.nextID
}

func (s *InMemoryStore) AddLibrary(l models.Library) models.Library {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.id(l.ID)
	s.state.libraries[l.ID] = l
	return l
}

func (s *InMemoryStore) AddPatron(p models.Patron) models.Patron {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id(p.ID)
	s.state.patrons[p.ID] = p
	return p
}

func (s *InMemoryStore) AddCollection(c models.Collection) models.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id(c.ID)
	s.state.collections[c.ID] = c
	return c
}

func (s *InMemoryStore) AddLicensePool(p models.LicensePool) models.LicensePool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id(p.ID)
	s.state.pools[p.ID] = p
	return p
}

func (s *InMemoryStore) AddLicense(l models.License) models.License {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.id(l.ID)
	s.state.licenses[l.ID] = l
	return l
}

// AddHold stores h, filling LibraryID from the patron when unset.
func (s *InMemoryStore) AddHold(h models.Hold) models.Hold {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = s.id(h.ID)
	if h.LibraryID == 0 {
		h.LibraryID = s.state.patrons[h.PatronID].LibraryID
	}
	s.state.holds[h.ID] = copyHold(h)
	return h
}

// Hold returns a committed hold.
func (s *InMemoryStore) Hold(id int64) (models.Hold, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.state.holds[id]
	return copyHold(h), ok
}

// HoldsForPool returns committed holds of a pool ordered by (start, id).
func (s *InMemoryStore) HoldsForPool(poolID int64) []models.Hold {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Hold
	for _, h := range s.state.holds {
		if h.LicensePoolID == poolID {
			out = append(out, copyHold(h))
		}
	}
	sortHolds(out)
	return out
}

// LicensePool returns a committed pool.
func (s *InMemoryStore) LicensePool(id int64) (models.LicensePool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.pools[id]
	return p, ok
}

func sortHolds(holds []models.Hold) {
	sort.SliceStable(holds, func(i, j int) bool {
		if !holds[i].Start.Equal(holds[j].Start) {
			return holds[i].Start.Before(holds[j].Start)
		}
		return holds[i].ID < holds[j].ID
	})
}

// -----------------------------------------------------------------------------
// LicenseStore
// -----------------------------------------------------------------------------

func (s *InMemoryStore) LockLicenses(ctx context.Context, poolID int64) ([]models.License, error) {
	st, err := s.txState(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock licenses: %w", err)
	}
	if err := s.check(ctx, "LockLicenses", poolID); err != nil {
		return nil, err
	}
	var out []models.License
	for _, l := range st.licenses {
		if l.LicensePoolID == poolID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b models.License) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *InMemoryStore) GetLicensePoolForUpdate(ctx context.Context, poolID int64) (*models.LicensePool, error) {
	st, err := s.txState(ctx)
	if err != nil {
		return nil, fmt.Errorf("get license pool for update: %w", err)
	}
	if err := s.check(ctx, "GetLicensePoolForUpdate", poolID); err != nil {
		return nil, err
	}
	p, ok := st.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("license pool %d: %w", poolID, sentinel.ErrNotFound)
	}
	return &p, nil
}

func (s *InMemoryStore) UpdateLicensePoolAvailability(ctx context.Context, pool *models.LicensePool) error {
	st, err := s.txState(ctx)
	if err != nil {
		return fmt.Errorf("update license pool availability: %w", err)
	}
	if err := s.check(ctx, "UpdateLicensePoolAvailability", pool.ID); err != nil {
		return err
	}
	if _, ok := st.pools[pool.ID]; !ok {
		return fmt.Errorf("license pool %d: %w", pool.ID, sentinel.ErrStale)
	}
	st.pools[pool.ID] = *pool
	st.writes++
	return nil
}

// -----------------------------------------------------------------------------
// HoldStore
// -----------------------------------------------------------------------------

func (s *InMemoryStore) ActiveHoldsForUpdate(ctx context.Context, poolID int64, now time.Time) ([]models.Hold, error) {
	st, err := s.txState(ctx)
	if err != nil {
		return nil, fmt.Errorf("active holds for update: %w", err)
	}
	if err := s.check(ctx, "ActiveHoldsForUpdate", poolID); err != nil {
		return nil, err
	}
	var out []models.Hold
	for _, h := range st.holds {
		if h.LicensePoolID == poolID && h.IsActive(now) {
			out = append(out, copyHold(h))
		}
	}
	sortHolds(out)
	return out, nil
}

func (s *InMemoryStore) ExpiredPoolHoldsForUpdate(ctx context.Context, poolID int64, now time.Time) ([]models.Hold, error) {
	st, err := s.txState(ctx)
	if err != nil {
		return nil, fmt.Errorf("expired pool holds for update: %w", err)
	}
	if err := s.check(ctx, "ExpiredPoolHoldsForUpdate", poolID); err != nil {
		return nil, err
	}
	var out []models.Hold
	for _, h := range st.holds {
		if h.LicensePoolID == poolID && h.IsExpired(now) {
			out = append(out, copyHold(h))
		}
	}
	slices.SortFunc(out, func(a, b models.Hold) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *InMemoryStore) ExpiredHoldsForUpdate(ctx context.Context, collectionID int64, now time.Time, limit int) ([]models.Hold, error) {
	st, err := s.txState(ctx)
	if err != nil {
		return nil, fmt.Errorf("expired holds for update: %w", err)
	}
	if err := s.check(ctx, "ExpiredHoldsForUpdate", collectionID); err != nil {
		return nil, err
	}
	var out []models.Hold
	for _, h := range st.holds {
		pool, ok := st.pools[h.LicensePoolID]
		if ok && pool.CollectionID == collectionID && h.IsExpired(now) {
			out = append(out, copyHold(h))
		}
	}
	slices.SortFunc(out, func(a, b models.Hold) int { return cmp.Compare(a.ID, b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) GetHoldForUpdate(ctx context.Context, holdID int64) (*models.Hold, error) {
	st, err := s.txState(ctx)
	if err != nil {
		return nil, fmt.Errorf("get hold for update: %w", err)
	}
	if err := s.check(ctx, "GetHoldForUpdate", holdID); err != nil {
		return nil, err
	}
	h, ok := st.holds[holdID]
	if !ok {
		return nil, fmt.Errorf("hold %d: %w", holdID, sentinel.ErrNotFound)
	}
	h = copyHold(h)
	return &h, nil
}

func (s *InMemoryStore) UpdateHold(ctx context.Context, hold models.Hold) error {
	st, err := s.txState(ctx)
	if err != nil {
		return fmt.Errorf("update hold: %w", err)
	}
	if err := s.check(ctx, "UpdateHold", hold.ID); err != nil {
		return err
	}
	existing, ok := st.holds[hold.ID]
	if !ok {
		return fmt.Errorf("hold %d: %w", hold.ID, sentinel.ErrStale)
	}
	existing.Position = hold.Position
	existing.End = copyHold(hold).End
	st.holds[hold.ID] = existing
	st.writes++
	return nil
}

func (s *InMemoryStore) DeleteHold(ctx context.Context, holdID int64) error {
	st, err := s.txState(ctx)
	if err != nil {
		return fmt.Errorf("delete hold: %w", err)
	}
	if err := s.check(ctx, "DeleteHold", holdID); err != nil {
		return err
	}
	if _, ok := st.holds[holdID]; !ok {
		return fmt.Errorf("hold %d: %w", holdID, sentinel.ErrStale)
	}
	delete(st.holds, holdID)
	st.writes++
	return nil
}

func (s *InMemoryStore) MarkPatronNotified(ctx context.Context, holdID int64, at time.Time) error {
	st, err := s.txState(ctx)
	if err != nil {
		return fmt.Errorf("mark patron notified: %w", err)
	}
	if err := s.check(ctx, "MarkPatronNotified", holdID); err != nil {
		return err
	}
	h, ok := st.holds[holdID]
	if !ok {
		return fmt.Errorf("hold %d: %w", holdID, sentinel.ErrStale)
	}
	h.PatronLastNotified = &at
	st.holds[holdID] = h
	st.writes++
	return nil
}

// -----------------------------------------------------------------------------
// CollectionStore, EventStore, CollectionLookup
// -----------------------------------------------------------------------------

func (s *InMemoryStore) GetCollection(ctx context.Context, collectionID int64) (*models.Collection, error) {
	var out *models.Collection
	err := s.read(ctx, func(st *memState) error {
		c, ok := st.collections[collectionID]
		if !ok {
			return fmt.Errorf("collection %d: %w", collectionID, sentinel.ErrNotFound)
		}
		out = &c
		return nil
	})
	return out, err
}

func (s *InMemoryStore) LicensePoolIDsWithHolds(ctx context.Context, collectionID, afterID int64, limit int) ([]int64, error) {
	if err := s.check(ctx, "LicensePoolIDsWithHolds", collectionID); err != nil {
		return nil, err
	}
	var out []int64
	err := s.read(ctx, func(st *memState) error {
		seen := make(map[int64]struct{})
		for _, h := range st.holds {
			pool, ok := st.pools[h.LicensePoolID]
			if !ok || pool.CollectionID != collectionID || pool.ID <= afterID {
				continue
			}
			seen[pool.ID] = struct{}{}
		}
		out = slices.Sorted(maps.Keys(seen))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) ResolveEvent(ctx context.Context, event models.CirculationEvent) (*models.ResolvedEvent, error) {
	if err := s.check(ctx, "ResolveEvent", event.HoldID); err != nil {
		return nil, err
	}
	var out *models.ResolvedEvent
	err := s.read(ctx, func(st *memState) error {
		library, ok := st.libraries[event.LibraryID]
		if !ok {
			return fmt.Errorf("library %d: %w", event.LibraryID, sentinel.ErrNotFound)
		}
		pool, ok := st.pools[event.LicensePoolID]
		if !ok {
			return fmt.Errorf("license pool %d: %w", event.LicensePoolID, sentinel.ErrNotFound)
		}
		resolved := &models.ResolvedEvent{
			Type:        event.Type,
			Library:     library,
			LicensePool: pool,
			OccurredAt:  event.OccurredAt,
		}
		if patron, ok := st.patrons[event.PatronID]; ok {
			resolved.Patron = &patron
		}
		out = resolved
		return nil
	})
	return out, err
}

func (s *InMemoryStore) ListCollections(ctx context.Context, protocols []string) ([]models.Collection, error) {
	var out []models.Collection
	err := s.read(ctx, func(st *memState) error {
		for _, c := range st.collections {
			if slices.Contains(protocols, c.Protocol) {
				out = append(out, c)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.Collection) int { return cmp.Compare(a.ID, b.ID) })
	return out, err
}
