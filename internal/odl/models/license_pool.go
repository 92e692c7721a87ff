package models

import "time"

// LicensePool aggregates every license for one title in one collection.
type LicensePool struct {
	ID                 int64  `db:"id"`
	CollectionID       int64  `db:"collection_id"`
	Identifier         string `db:"identifier"`
	LicensesOwned      int    `db:"licenses_owned"`
	LicensesAvailable  int    `db:"licenses_available"`
	LicensesReserved   int    `db:"licenses_reserved"`
	PatronsInHoldQueue int    `db:"patrons_in_hold_queue"`
	OpenAccess         bool   `db:"open_access"`
	UnlimitedAccess    bool   `db:"unlimited_access"`
}

// UpdateAvailabilityFromLicenses recomputes the pool counters from the
// (locked) license rows and the number of active holds.
//
// Idle checkouts first satisfy the hold queue in order: holds beyond supply
// keep waiting and every idle slot covered by a hold becomes reserved.
// Returns true when any counter changed.
func (p *LicensePool) UpdateAvailabilityFromLicenses(licenses []License, activeHolds int, now time.Time) bool {
	owned, idle := 0, 0
	for _, l := range licenses {
		if l.LicensePoolID != p.ID {
			continue
		}
		if l.IsActive(now) {
			owned += l.ConcurrentCapacity()
		}
		idle += l.AvailableCheckouts(now)
	}
	idle = min(idle, owned)

	reserved := min(activeHolds, idle)
	available := idle - reserved

	changed := p.LicensesOwned != owned ||
		p.LicensesAvailable != available ||
		p.LicensesReserved != reserved ||
		p.PatronsInHoldQueue != activeHolds

	p.LicensesOwned = owned
	p.LicensesAvailable = available
	p.LicensesReserved = reserved
	p.PatronsInHoldQueue = activeHolds
	return changed
}
