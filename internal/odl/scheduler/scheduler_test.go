package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"circulation/internal/odl/events"
	"circulation/internal/odl/metrics"
	"circulation/internal/odl/models"
	"circulation/internal/odl/mutex"
	"circulation/internal/odl/odltest"
	"circulation/internal/odl/ports/mocks"
	"circulation/internal/odl/reconciler"
	"circulation/internal/odl/scheduler"
	"circulation/pkg/platform/clock"
)

type SchedulerSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	fx        *odltest.Fixture
	sink      *mocks.MockAnalyticsSink
	lockers   *mutex.LocalFactory
	metrics   *metrics.Metrics
	scheduler *scheduler.Scheduler
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.fx = odltest.New(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), 3)
	s.sink = mocks.NewMockAnalyticsSink(s.ctrl)
	s.sink.EXPECT().CollectEvent(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	s.metrics = metrics.New(prometheus.NewRegistry())

	clk := clock.NewFixed(s.fx.Now)
	s.lockers = mutex.NewLocalFactory("test", time.Minute, clk)
	rec, err := reconciler.New(s.fx.Store, reconciler.WithClock(clk))
	s.Require().NoError(err)
	collector, err := events.New(s.fx.Store, s.sink)
	s.Require().NoError(err)
	s.scheduler, err = scheduler.New(s.fx.Store, s.lockers, rec, collector, scheduler.WithMetrics(s.metrics))
	s.Require().NoError(err)
}

// poolsWithWaitingHold creates n pools, each with one idle copy and one
// waiting hold.
func (s *SchedulerSuite) poolsWithWaitingHold(n int) []int64 {
	ids := make([]int64, 0, n)
	for range n {
		pool := s.fx.Pool(1)
		s.fx.Hold(pool.ID, 1, nil)
		ids = append(ids, pool.ID)
	}
	return ids
}

// =============================================================================
// Pagination
// =============================================================================

func (s *SchedulerSuite) TestFullBatchRequestsContinuation() {
	ids := s.poolsWithWaitingHold(5)

	res, err := s.scheduler.RecalculateBatch(s.ctx, scheduler.BatchRequest{
		CollectionID: s.fx.Collection.ID,
		BatchSize:    2,
	})
	s.Require().NoError(err)
	s.Equal(ids[:2], res.Processed)
	s.Equal(2, res.Updated)
	s.Equal(2, res.Events.Delivered)
	s.Require().NotNil(res.Next)
	s.Equal(ids[1], res.Next.AfterID)
	s.Equal(2, res.Next.BatchSize)
	s.Equal(s.fx.Collection.ID, res.Next.CollectionID)
}

func (s *SchedulerSuite) TestContinuationsCoverEveryPoolOnce() {
	ids := s.poolsWithWaitingHold(5)

	var processed []int64
	req := scheduler.BatchRequest{CollectionID: s.fx.Collection.ID, BatchSize: 2}
	for runs := 0; ; runs++ {
		s.Require().Less(runs, 10, "pagination must terminate")
		res, err := s.scheduler.RecalculateBatch(s.ctx, req)
		s.Require().NoError(err)
		processed = append(processed, res.Processed...)
		if res.Next == nil {
			break
		}
		req = res.Next.Request()
	}
	s.Equal(ids, processed)
	for _, id := range ids {
		p, _ := s.fx.Store.LicensePool(id)
		s.Equal(1, p.LicensesReserved)
	}
}

func (s *SchedulerSuite) TestExactMultipleEndsWithEmptyBatch() {
	s.poolsWithWaitingHold(2)

	res, err := s.scheduler.RecalculateBatch(s.ctx, scheduler.BatchRequest{CollectionID: s.fx.Collection.ID, BatchSize: 2})
	s.Require().NoError(err)
	s.Require().NotNil(res.Next)

	res, err = s.scheduler.RecalculateBatch(s.ctx, res.Next.Request())
	s.Require().NoError(err)
	s.Empty(res.Processed)
	s.Nil(res.Next)
}

func (s *SchedulerSuite) TestPartialBatchTerminates() {
	s.poolsWithWaitingHold(3)

	res, err := s.scheduler.RecalculateBatch(s.ctx, scheduler.BatchRequest{CollectionID: s.fx.Collection.ID, BatchSize: 10})
	s.Require().NoError(err)
	s.Len(res.Processed, 3)
	s.Nil(res.Next)
}

func (s *SchedulerSuite) TestZeroBatchSizeUsesDefault() {
	s.poolsWithWaitingHold(1)

	res, err := s.scheduler.RecalculateBatch(s.ctx, scheduler.BatchRequest{CollectionID: s.fx.Collection.ID})
	s.Require().NoError(err)
	s.Len(res.Processed, 1)
	s.Nil(res.Next)
}

func (s *SchedulerSuite) TestSecondRunIsNoop() {
	s.poolsWithWaitingHold(2)
	req := scheduler.BatchRequest{CollectionID: s.fx.Collection.ID, BatchSize: 10}

	_, err := s.scheduler.RecalculateBatch(s.ctx, req)
	s.Require().NoError(err)
	writes := s.fx.Store.Writes()

	res, err := s.scheduler.RecalculateBatch(s.ctx, req)
	s.Require().NoError(err)
	s.Zero(res.Updated)
	s.Zero(res.Events.Delivered)
	s.Equal(writes, s.fx.Store.Writes())
}

// =============================================================================
// Failure isolation
// =============================================================================

func (s *SchedulerSuite) TestFailingPoolDoesNotAffectOthers() {
	ids := s.poolsWithWaitingHold(3)
	s.fx.Store.InjectFault(func(op string, id int64) error {
		if op == "LockLicenses" && id == ids[1] {
			return errors.New("disk full")
		}
		return nil
	})

	res, err := s.scheduler.RecalculateBatch(s.ctx, scheduler.BatchRequest{CollectionID: s.fx.Collection.ID, BatchSize: 10})
	s.Require().NoError(err)
	s.Equal([]int64{ids[0], ids[2]}, res.Processed)
	s.Equal([]int64{ids[1]}, res.Failed)

	failed, _ := s.fx.Store.LicensePool(ids[1])
	s.Zero(failed.LicensesReserved)
	for _, h := range s.fx.Store.HoldsForPool(ids[1]) {
		s.Equal(1, h.Position)
	}
}

func (s *SchedulerSuite) TestMissingReservationPeriodIsFatal() {
	fx := odltest.New(s.fx.Now, 0)
	pool := fx.Pool(1)
	fx.Hold(pool.ID, 1, nil)
	rec, err := reconciler.New(fx.Store)
	s.Require().NoError(err)
	collector, err := events.New(fx.Store, s.sink)
	s.Require().NoError(err)
	sched, err := scheduler.New(fx.Store, s.lockers, rec, collector)
	s.Require().NoError(err)

	_, err = sched.RecalculateBatch(s.ctx, scheduler.BatchRequest{CollectionID: fx.Collection.ID, BatchSize: 10})
	s.ErrorIs(err, models.ErrReservationPeriodNotConfigured)
	s.Zero(fx.Store.Writes())
}

// =============================================================================
// Collection mutex
// =============================================================================

func (s *SchedulerSuite) TestMutexHeldSkipsWithoutWrites() {
	s.poolsWithWaitingHold(2)
	holder := s.lockers.ForCollection(scheduler.TaskName, s.fx.Collection.ID)
	ok, err := holder.Acquire(s.ctx)
	s.Require().NoError(err)
	s.Require().True(ok)

	res, err := s.scheduler.RecalculateBatch(s.ctx, scheduler.BatchRequest{CollectionID: s.fx.Collection.ID, BatchSize: 10})
	s.Require().NoError(err)
	s.True(res.Skipped)
	s.Nil(res.Next)
	s.Zero(s.fx.Store.Writes())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.LockContended.WithLabelValues(scheduler.TaskName)))
}

func (s *SchedulerSuite) TestMutexReleasedAfterBatch() {
	s.poolsWithWaitingHold(1)

	_, err := s.scheduler.RecalculateBatch(s.ctx, scheduler.BatchRequest{CollectionID: s.fx.Collection.ID, BatchSize: 10})
	s.Require().NoError(err)
	s.False(s.lockers.Held(mutex.Key("test", scheduler.TaskName, s.fx.Collection.ID)))
}

// TestConcurrentInvocationTouchesNothing runs against a mock store so any
// call besides the collection read fails the test.
func TestConcurrentInvocationTouchesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	const collectionID = 42
	period := 2

	store := mocks.NewMockStore(ctrl)
	store.EXPECT().GetCollection(gomock.Any(), int64(collectionID)).
		Return(&models.Collection{ID: collectionID, DefaultReservationPeriod: &period}, nil)

	locker := mocks.NewMockLocker(ctrl)
	locker.EXPECT().Acquire(gomock.Any()).Return(false, nil)
	lockers := mocks.NewMockLockerFactory(ctrl)
	lockers.EXPECT().ForCollection(scheduler.TaskName, int64(collectionID)).Return(locker)

	rec, err := reconciler.New(store)
	if err != nil {
		t.Fatal(err)
	}
	collector, err := events.New(store, mocks.NewMockAnalyticsSink(ctrl))
	if err != nil {
		t.Fatal(err)
	}
	notifier := mocks.NewMockHoldNotifier(ctrl)
	sched, err := scheduler.New(store, lockers, rec, collector, scheduler.WithNotifier(notifier))
	if err != nil {
		t.Fatal(err)
	}

	res, err := sched.RecalculateBatch(ctx, scheduler.BatchRequest{CollectionID: collectionID, BatchSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Fatal("expected the batch to be skipped")
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := scheduler.New(nil, mocks.NewMockLockerFactory(ctrl), nil, nil)
	if err == nil {
		t.Fatal("expected error for missing store")
	}
}
