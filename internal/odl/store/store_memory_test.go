package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"circulation/internal/odl/models"
	"circulation/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
	pool  models.LicensePool
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	period := 3
	lib := s.store.AddLibrary(models.Library{ShortName: "main"})
	coll := s.store.AddCollection(models.Collection{Name: "odl", Protocol: models.ProtocolODL2, DefaultReservationPeriod: &period})
	s.pool = s.store.AddLicensePool(models.LicensePool{CollectionID: coll.ID, Identifier: "urn:isbn:1"})
	patron := s.store.AddPatron(models.Patron{LibraryID: lib.ID})
	s.store.AddLicense(models.License{LicensePoolID: s.pool.ID, Status: models.LicenseStatusAvailable, CheckoutsAvailable: 1, TermsConcurrency: 1})

	expired := s.now.Add(-time.Hour)
	s.store.AddHold(models.Hold{PatronID: patron.ID, LicensePoolID: s.pool.ID, Position: 0, Start: s.now.Add(-48 * time.Hour), End: &expired})
	s.store.AddHold(models.Hold{PatronID: patron.ID, LicensePoolID: s.pool.ID, Position: 1, Start: s.now.Add(-24 * time.Hour)})
}

func (s *InMemoryStoreSuite) TestLockingReadsRequireTransaction() {
	_, err := s.store.LockLicenses(s.ctx, s.pool.ID)
	s.ErrorIs(err, sentinel.ErrNoTransaction)

	_, err = s.store.ActiveHoldsForUpdate(s.ctx, s.pool.ID, s.now)
	s.ErrorIs(err, sentinel.ErrNoTransaction)

	err = s.store.UpdateHold(s.ctx, models.Hold{ID: 1})
	s.ErrorIs(err, sentinel.ErrNoTransaction)
}

func (s *InMemoryStoreSuite) TestRunInTx() {
	s.Run("commit publishes writes", func() {
		holds := s.store.HoldsForPool(s.pool.ID)
		s.Require().Len(holds, 2)
		waiting := holds[1]

		err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
			waiting.Position = 7
			return s.store.UpdateHold(ctx, waiting)
		})
		s.Require().NoError(err)

		got, ok := s.store.Hold(waiting.ID)
		s.Require().True(ok)
		s.Equal(7, got.Position)
		s.Equal(1, s.store.Writes())
	})

	s.Run("error discards writes", func() {
		holds := s.store.HoldsForPool(s.pool.ID)
		boom := errors.New("boom")
		writesBefore := s.store.Writes()

		err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
			if err := s.store.DeleteHold(ctx, holds[0].ID); err != nil {
				return err
			}
			return boom
		})
		s.ErrorIs(err, boom)
		s.Len(s.store.HoldsForPool(s.pool.ID), 2)
		s.Equal(writesBefore, s.store.Writes())
	})

	s.Run("nested call joins the outer transaction", func() {
		err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
			return s.store.RunInTx(ctx, func(inner context.Context) error {
				_, err := s.store.LockLicenses(inner, s.pool.ID)
				return err
			})
		})
		s.NoError(err)
	})
}

func (s *InMemoryStoreSuite) TestHoldQueries() {
	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		active, err := s.store.ActiveHoldsForUpdate(ctx, s.pool.ID, s.now)
		s.Require().NoError(err)
		s.Len(active, 1, "expired ready hold is not active")
		s.Equal(1, active[0].Position)

		expired, err := s.store.ExpiredHoldsForUpdate(ctx, s.pool.CollectionID, s.now, 10)
		s.Require().NoError(err)
		s.Len(expired, 1)
		s.Equal(0, expired[0].Position)

		inPool, err := s.store.ExpiredPoolHoldsForUpdate(ctx, s.pool.ID, s.now)
		s.Require().NoError(err)
		s.Equal(expired, inPool)
		return nil
	})
	s.NoError(err)
}

func (s *InMemoryStoreSuite) TestExpiredHoldsHonourLimit() {
	patron := s.store.AddPatron(models.Patron{LibraryID: s.store.HoldsForPool(s.pool.ID)[0].LibraryID})
	other := s.store.AddLicensePool(models.LicensePool{CollectionID: s.pool.CollectionID})
	end := s.now.Add(-time.Minute)
	extra := s.store.AddHold(models.Hold{PatronID: patron.ID, LicensePoolID: other.ID, Position: 0, Start: s.now, End: &end})

	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		first, err := s.store.ExpiredHoldsForUpdate(ctx, s.pool.CollectionID, s.now, 1)
		s.Require().NoError(err)
		s.Require().Len(first, 1)
		s.NotEqual(extra.ID, first[0].ID, "lowest id first")

		all, err := s.store.ExpiredHoldsForUpdate(ctx, s.pool.CollectionID, s.now, 0)
		s.Require().NoError(err)
		s.Len(all, 2)

		inPool, err := s.store.ExpiredPoolHoldsForUpdate(ctx, other.ID, s.now)
		s.Require().NoError(err)
		s.Require().Len(inPool, 1)
		s.Equal(extra.ID, inPool[0].ID)
		return nil
	})
	s.NoError(err)
}

func (s *InMemoryStoreSuite) TestLicensePoolIDsWithHolds() {
	other := s.store.AddLicensePool(models.LicensePool{CollectionID: s.pool.CollectionID})
	s.store.AddLicensePool(models.LicensePool{CollectionID: s.pool.CollectionID})
	s.store.AddHold(models.Hold{LicensePoolID: other.ID, Position: 1, Start: s.now})

	ids, err := s.store.LicensePoolIDsWithHolds(s.ctx, s.pool.CollectionID, 0, 10)
	s.Require().NoError(err)
	s.Equal([]int64{s.pool.ID, other.ID}, ids)

	ids, err = s.store.LicensePoolIDsWithHolds(s.ctx, s.pool.CollectionID, s.pool.ID, 10)
	s.Require().NoError(err)
	s.Equal([]int64{other.ID}, ids)

	ids, err = s.store.LicensePoolIDsWithHolds(s.ctx, s.pool.CollectionID, 0, 1)
	s.Require().NoError(err)
	s.Equal([]int64{s.pool.ID}, ids)
}

func (s *InMemoryStoreSuite) TestResolveEvent() {
	hold := s.store.HoldsForPool(s.pool.ID)[1]
	event := models.NewHoldEvent(models.EventHoldReady, hold, s.now)

	s.Run("resolves library pool and patron", func() {
		resolved, err := s.store.ResolveEvent(s.ctx, event)
		s.Require().NoError(err)
		s.Equal(hold.LibraryID, resolved.Library.ID)
		s.Equal(s.pool.ID, resolved.LicensePool.ID)
		s.Require().NotNil(resolved.Patron)
		s.Equal(hold.PatronID, resolved.Patron.ID)
	})

	s.Run("missing patron resolves to nil", func() {
		orphan := event
		orphan.PatronID = 9999
		resolved, err := s.store.ResolveEvent(s.ctx, orphan)
		s.Require().NoError(err)
		s.Nil(resolved.Patron)
	})

	s.Run("missing pool is not found", func() {
		orphan := event
		orphan.LicensePoolID = 9999
		_, err := s.store.ResolveEvent(s.ctx, orphan)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestInjectFault() {
	boom := errors.New("disk on fire")
	s.store.InjectFault(func(op string, id int64) error {
		if op == "UpdateHold" {
			return boom
		}
		return nil
	})
	hold := s.store.HoldsForPool(s.pool.ID)[1]

	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		return s.store.UpdateHold(ctx, hold)
	})
	s.ErrorIs(err, boom)
	s.Zero(s.store.Commits())
}

func (s *InMemoryStoreSuite) TestInjectFaultWhileReading() {
	hold := s.store.HoldsForPool(s.pool.ID)[1]
	event := models.NewHoldEvent(models.EventHoldReady, hold, s.now)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.store.InjectFault(func(string, int64) error { return nil })
		}()
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = s.store.ResolveEvent(s.ctx, event)
				return
			}
			_, _ = s.store.LicensePoolIDsWithHolds(s.ctx, s.pool.CollectionID, 0, 10)
		}()
	}
	wg.Wait()

	boom := errors.New("read replica down")
	s.store.InjectFault(func(op string, _ int64) error {
		if op == "ResolveEvent" {
			return boom
		}
		return nil
	})
	_, err := s.store.ResolveEvent(s.ctx, event)
	s.ErrorIs(err, boom)
}
