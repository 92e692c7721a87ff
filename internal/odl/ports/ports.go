// Package ports defines the interfaces the ODL reconciliation core consumes.
// Interfaces live here when more than one service uses them.
package ports

import (
	"context"
	"time"

	"circulation/internal/odl/models"
	"circulation/pkg/platform/tx"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Store,CollectionLookup,Locker,LockerFactory,AnalyticsSink,HoldNotifier

// LicenseStore reads and locks the contended license rows of a pool.
type LicenseStore interface {
	// LockLicenses takes a row-level exclusive lock on every license of the
	// pool. Requires a transaction in ctx; the lock ends with it.
	LockLicenses(ctx context.Context, poolID int64) ([]models.License, error)

	// GetLicensePoolForUpdate loads and locks the pool row.
	GetLicensePoolForUpdate(ctx context.Context, poolID int64) (*models.LicensePool, error)

	// UpdateLicensePoolAvailability persists the pool counters.
	UpdateLicensePoolAvailability(ctx context.Context, pool *models.LicensePool) error
}

// HoldStore reads and mutates hold rows.
type HoldStore interface {
	// ActiveHoldsForUpdate returns the pool's active holds ordered by
	// (start, id) under a locking read.
	ActiveHoldsForUpdate(ctx context.Context, poolID int64, now time.Time) ([]models.Hold, error)

	// ExpiredPoolHoldsForUpdate returns the pool's ready holds whose end is
	// before now, ordered by id, under a locking read.
	ExpiredPoolHoldsForUpdate(ctx context.Context, poolID int64, now time.Time) ([]models.Hold, error)

	// ExpiredHoldsForUpdate returns up to limit ready holds of the collection
	// whose end is before now, ordered by id, under a locking read.
	ExpiredHoldsForUpdate(ctx context.Context, collectionID int64, now time.Time, limit int) ([]models.Hold, error)

	// GetHoldForUpdate loads and locks a single hold.
	GetHoldForUpdate(ctx context.Context, holdID int64) (*models.Hold, error)

	// UpdateHold persists position and end of a hold.
	UpdateHold(ctx context.Context, hold models.Hold) error

	// DeleteHold removes a hold row.
	DeleteHold(ctx context.Context, holdID int64) error

	// MarkPatronNotified records the last notification time for a hold.
	MarkPatronNotified(ctx context.Context, holdID int64, at time.Time) error
}

// CollectionStore reads collection configuration and pages through pools.
type CollectionStore interface {
	GetCollection(ctx context.Context, collectionID int64) (*models.Collection, error)

	// LicensePoolIDsWithHolds returns up to limit distinct pool IDs of the
	// collection that have holds, ordered by ID and strictly after afterID.
	LicensePoolIDsWithHolds(ctx context.Context, collectionID, afterID int64, limit int) ([]int64, error)
}

// EventStore re-attaches event entities inside the delivering transaction.
type EventStore interface {
	ResolveEvent(ctx context.Context, event models.CirculationEvent) (*models.ResolvedEvent, error)
}

// Store is the full persistence surface of the core.
type Store interface {
	tx.Runner
	LicenseStore
	HoldStore
	CollectionStore
	EventStore
}

// CollectionLookup locates collections by integration protocol.
type CollectionLookup interface {
	ListCollections(ctx context.Context, protocols []string) ([]models.Collection, error)
}

// Locker is a non-blocking, lease-based cross-process lock.
type Locker interface {
	// Acquire tries to take the lock once; false means someone else holds it.
	Acquire(ctx context.Context) (bool, error)

	// Release drops the lock if this locker still owns it.
	Release(ctx context.Context) (bool, error)

	// Extend pushes the lease out to ttl if this locker still owns it.
	Extend(ctx context.Context, ttl time.Duration) (bool, error)

	// Key returns the coordination key.
	Key() string
}

// LockerFactory builds lockers scoped to a task and collection.
type LockerFactory interface {
	ForCollection(task string, collectionID int64) Locker
}

// AnalyticsSink accepts one circulation event at a time. Errors are treated
// as non-fatal by callers.
type AnalyticsSink interface {
	CollectEvent(ctx context.Context, event models.ResolvedEvent) error
}

// HoldNotifier tells patrons that a held title is ready. It returns the number
// of notifications sent; failures are logged by the implementation.
type HoldNotifier interface {
	NotifyReady(ctx context.Context, events []models.CirculationEvent) int
}
