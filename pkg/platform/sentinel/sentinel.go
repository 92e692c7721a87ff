package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can decide how to react.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrStale: entity changed or disappeared underneath a running unit of work
// - ErrNoTransaction: a locking read was attempted outside a transaction
// - ErrUnavailable: service or resource temporarily unavailable
// - ErrLockNotAcquired: another worker holds the coordination lock
var (
	ErrNotFound        = errors.New("not found")
	ErrStale           = errors.New("stale entity")
	ErrNoTransaction   = errors.New("no transaction in context")
	ErrUnavailable     = errors.New("unavailable")
	ErrLockNotAcquired = errors.New("lock not acquired")
)
