// Package odltest seeds the in-memory store with collections, pools and holds
// for tests of the reconciliation core.
package odltest

import (
	"time"

	"circulation/internal/odl/models"
	"circulation/internal/odl/store"
)

// Fixture owns an in-memory store seeded with one library and one collection.
type Fixture struct {
	Store      *store.InMemoryStore
	Library    models.Library
	Collection models.Collection
	Now        time.Time

	holds int
}

// New seeds a library and an ODL 2.0 collection. periodDays <= 0 leaves the
// reservation period unset.
func New(now time.Time, periodDays int) *Fixture {
	s := store.NewInMemory()
	coll := models.Collection{Name: "ODL test collection", Protocol: models.ProtocolODL2}
	if periodDays > 0 {
		coll.DefaultReservationPeriod = &periodDays
	}
	return &Fixture{
		Store:      s,
		Library:    s.AddLibrary(models.Library{ShortName: "main", Name: "Main Library"}),
		Collection: s.AddCollection(coll),
		Now:        now.UTC(),
	}
}

// Pool creates a pool in the fixture collection backed by one license with
// the given number of idle concurrent checkouts.
func (f *Fixture) Pool(idle int) models.LicensePool {
	pool := f.Store.AddLicensePool(models.LicensePool{
		CollectionID: f.Collection.ID,
		Identifier:   "urn:uuid:pool",
	})
	f.License(pool.ID, idle, idle)
	return pool
}

// License adds an available license with the given concurrency and idle checkouts.
func (f *Fixture) License(poolID int64, concurrency, idle int) models.License {
	return f.Store.AddLicense(models.License{
		Identifier:         "urn:uuid:license",
		LicensePoolID:      poolID,
		Status:             models.LicenseStatusAvailable,
		CheckoutsAvailable: idle,
		TermsConcurrency:   concurrency,
	})
}

// Hold places a hold for a new patron. Holds are created in call order: each
// one starts a second after the previous.
func (f *Fixture) Hold(poolID int64, position int, end *time.Time) models.Hold {
	f.holds++
	patron := f.Store.AddPatron(models.Patron{LibraryID: f.Library.ID})
	return f.Store.AddHold(models.Hold{
		PatronID:      patron.ID,
		LibraryID:     f.Library.ID,
		LicensePoolID: poolID,
		Position:      position,
		Start:         f.Now.Add(-24 * time.Hour).Add(time.Duration(f.holds) * time.Second),
		End:           end,
	})
}

// At returns a pointer to now shifted by d.
func (f *Fixture) At(d time.Duration) *time.Time {
	t := f.Now.Add(d)
	return &t
}
