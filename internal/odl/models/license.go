package models

import "time"

// LicenseStatus mirrors the status a distributor reports for a license.
type LicenseStatus string

const (
	LicenseStatusAvailable   LicenseStatus = "available"
	LicenseStatusUnavailable LicenseStatus = "unavailable"
	LicenseStatusPreorder    LicenseStatus = "preorder"
	LicenseStatusRetired     LicenseStatus = "retired"
)

// License is one unit of concurrent-use capacity for a title within a collection.
//
// CheckoutsLeft is nil for licenses without a usage limit. Expires is nil for
// perpetual licenses.
type License struct {
	ID                 int64         `db:"id"`
	Identifier         string        `db:"identifier"`
	LicensePoolID      int64         `db:"license_pool_id"`
	Status             LicenseStatus `db:"status"`
	CheckoutsLeft      *int          `db:"checkouts_left"`
	CheckoutsAvailable int           `db:"checkouts_available"`
	TermsConcurrency   int           `db:"terms_concurrency"`
	Expires            *time.Time    `db:"expires"`
}

// IsExpired reports whether the license term has ended at now.
func (l License) IsExpired(now time.Time) bool {
	return l.Expires != nil && !l.Expires.After(now)
}

// IsExhausted reports whether a usage-limited license has no loans left.
func (l License) IsExhausted() bool {
	return l.CheckoutsLeft != nil && *l.CheckoutsLeft <= 0
}

// IsActive reports whether the license still contributes owned capacity.
// Exhausted, expired and retired licenses never come back without a fresh import.
func (l License) IsActive(now time.Time) bool {
	return l.Status != LicenseStatusRetired && !l.IsExpired(now) && !l.IsExhausted()
}

// IsAvailableForBorrowing reports whether a patron could check out under this
// license right now.
func (l License) IsAvailableForBorrowing(now time.Time) bool {
	return l.Status == LicenseStatusAvailable && l.IsActive(now) && l.CheckoutsAvailable > 0
}

// ConcurrentCapacity is the number of simultaneous loans the license allows.
func (l License) ConcurrentCapacity() int {
	capacity := l.TermsConcurrency
	if capacity <= 0 {
		capacity = 1
	}
	if l.CheckoutsLeft != nil && *l.CheckoutsLeft < capacity {
		capacity = max(*l.CheckoutsLeft, 0)
	}
	return capacity
}

// AvailableCheckouts is the number of idle slots, bounded by capacity.
func (l License) AvailableCheckouts(now time.Time) int {
	if !l.IsAvailableForBorrowing(now) {
		return 0
	}
	return min(l.CheckoutsAvailable, l.ConcurrentCapacity())
}
