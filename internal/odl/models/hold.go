package models

import "time"

// Hold is one patron's place in line for a license pool.
//
// Position 0 means the hold is ready for checkout until End. Waiting holds
// have a 1-based position and no End.
type Hold struct {
	ID                 int64      `db:"id"`
	PatronID           int64      `db:"patron_id"`
	LibraryID          int64      `db:"library_id"`
	LicensePoolID      int64      `db:"license_pool_id"`
	Position           int        `db:"position"`
	Start              time.Time  `db:"start"`
	End                *time.Time `db:"end"`
	PatronLastNotified *time.Time `db:"patron_last_notified"`
}

// IsReady reports whether the hold has a reserved copy waiting.
func (h Hold) IsReady() bool {
	return h.Position == 0 && h.End != nil
}

// IsExpired reports whether a ready hold's reservation window has passed.
func (h Hold) IsExpired(now time.Time) bool {
	return h.Position == 0 && h.End != nil && h.End.Before(now)
}

// IsActive reports whether the hold still competes for a copy: waiting holds
// always do, ready holds until their window closes.
func (h Hold) IsActive(now time.Time) bool {
	return h.End == nil || !h.End.Before(now)
}

// NotifiedOn reports whether the patron was already notified about this hold
// on the same UTC calendar day as now.
func (h Hold) NotifiedOn(now time.Time) bool {
	if h.PatronLastNotified == nil {
		return false
	}
	ly, lm, ld := h.PatronLastNotified.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	return ly == ny && lm == nm && ld == nd
}
