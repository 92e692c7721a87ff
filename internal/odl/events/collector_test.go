package events_test

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
	"circulation/internal/odl/odltest"
	"circulation/internal/odl/ports/mocks"
)

type CollectorSuite struct {
	suite.Suite
	ctx     context.Context
	ctrl    *gomock.Controller
	sink    *mocks.MockAnalyticsSink
	fx      *odltest.Fixture
	metrics *metrics.Metrics
	pool    models.LicensePool
	holds   []models.Hold
}

func TestCollectorSuite(t *testing.T) {
	suite.Run(t, new(CollectorSuite))
}

func (s *CollectorSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.sink = mocks.NewMockAnalyticsSink(s.ctrl)
	s.fx = odltest.New(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), 3)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.pool = s.fx.Pool(2)
	s.holds = []models.Hold{
		s.fx.Hold(s.pool.ID, 1, nil),
		s.fx.Hold(s.pool.ID, 2, nil),
		s.fx.Hold(s.pool.ID, 3, nil),
	}
}

func (s *CollectorSuite) newCollector(opts ...events.Option) *events.Collector {
	opts = append(opts, events.WithMetrics(s.metrics))
	c, err := events.New(s.fx.Store, s.sink, opts...)
	s.Require().NoError(err)
	return c
}

func (s *CollectorSuite) readyEvents() []models.CirculationEvent {
	out := make([]models.CirculationEvent, 0, len(s.holds))
	for _, h := range s.holds {
		out = append(out, models.NewHoldEvent(models.EventHoldReady, h, s.fx.Now))
	}
	return out
}

func patronIs(id int64) gomock.Matcher {
	return gomock.Cond(func(e models.ResolvedEvent) bool {
		return e.Patron != nil && e.Patron.ID == id
	})
}

func (s *CollectorSuite) TestDeliversInOrderWithResolvedEntities() {
	var calls []*gomock.Call
	for _, h := range s.holds {
		calls = append(calls, s.sink.EXPECT().
			CollectEvent(gomock.Any(), patronIs(h.PatronID)).
			DoAndReturn(func(_ context.Context, e models.ResolvedEvent) error {
				s.Equal(s.fx.Library.ID, e.Library.ID)
				s.Equal(s.pool.ID, e.LicensePool.ID)
				s.Equal(models.EventHoldReady, e.Type)
				return nil
			}))
	}
	gomock.InOrder(calls...)

	report := s.newCollector().Collect(s.ctx, s.readyEvents())
	s.Equal(events.Report{Delivered: 3}, report)
	s.Equal(3.0, testutil.ToFloat64(s.metrics.EventsDelivered.WithLabelValues(string(models.EventHoldReady))))
}

func (s *CollectorSuite) TestFailureIsIsolated() {
	s.sink.EXPECT().CollectEvent(gomock.Any(), patronIs(s.holds[0].PatronID)).Return(errors.New("webhook down"))
	s.sink.EXPECT().CollectEvent(gomock.Any(), patronIs(s.holds[1].PatronID)).Return(nil)
	s.sink.EXPECT().CollectEvent(gomock.Any(), patronIs(s.holds[2].PatronID)).Return(nil)

	report := s.newCollector().Collect(s.ctx, s.readyEvents())
	s.Equal(events.Report{Delivered: 2, Failed: 1}, report)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.EventFailures.WithLabelValues(string(models.EventHoldReady))))
}

func (s *CollectorSuite) TestUnresolvableEventSkipsSink() {
	evts := s.readyEvents()[:1]
	evts[0].LicensePoolID = 999999

	report := s.newCollector().Collect(s.ctx, evts)
	s.Equal(events.Report{Failed: 1}, report)
}

func (s *CollectorSuite) TestDeletedPatronStillDelivered() {
	evts := s.readyEvents()[:1]
	evts[0].PatronID = 999999
	evts[0].Type = models.EventHoldExpired
	s.sink.EXPECT().CollectEvent(gomock.Any(), gomock.Cond(func(e models.ResolvedEvent) bool {
		return e.Patron == nil && e.Type == models.EventHoldExpired
	})).Return(nil)

	report := s.newCollector().Collect(s.ctx, evts)
	s.Equal(1, report.Delivered)
}

func (s *CollectorSuite) TestBoundedConcurrency() {
	s.sink.EXPECT().CollectEvent(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	report := s.newCollector(events.WithConcurrency(4)).Collect(s.ctx, s.readyEvents())
	s.Equal(3, report.Delivered)
}

func (s *CollectorSuite) TestEmpty() {
	s.Equal(events.Report{}, s.newCollector().Collect(s.ctx, nil))
}

func TestNewValidatesDependencies(t *testing.T) {
	fx := odltest.New(time.Now(), 1)
	ctrl := gomock.NewController(t)

	_, err := events.New(nil, mocks.NewMockAnalyticsSink(ctrl))
	if err == nil {
		t.Fatal("expected error for nil store")
	}
	_, err = events.New(fx.Store, nil)
	if err == nil {
		t.Fatal("expected error for nil sink")
	}
}
