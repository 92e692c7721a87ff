package analytics_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"circulation/internal/analytics"
	"circulation/internal/odl/models"
	"circulation/internal/odl/ports/mocks"
	"circulation/internal/platform/config"
	"circulation/internal/platform/kafka"
	"circulation/pkg/platform/sentinel"
)

type capturePublisher struct {
	msgs []kafka.Message
	fail func(n int) error
}

func (c *capturePublisher) Publish(_ context.Context, msg kafka.Message) error {
	if c.fail != nil {
		if err := c.fail(len(c.msgs)); err != nil {
			return err
		}
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func resolvedEvent() models.ResolvedEvent {
	return models.ResolvedEvent{
		Type:    models.EventHoldReady,
		Library: models.Library{ID: 3, ShortName: "main"},
		LicensePool: models.LicensePool{
			ID:                 12,
			CollectionID:       4,
			Identifier:         "urn:isbn:9780000000001",
			LicensesOwned:      2,
			LicensesReserved:   1,
			PatronsInHoldQueue: 3,
		},
		Patron:     &models.Patron{ID: 99, LibraryID: 3},
		OccurredAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestKafkaSinkPublishesPayload(t *testing.T) {
	pub := &capturePublisher{}
	sink := analytics.NewKafkaSink(pub, "analytics")

	require.NoError(t, sink.CollectEvent(context.Background(), resolvedEvent()))
	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, "analytics", msg.Topic)
	assert.Equal(t, "12", msg.Key)
	assert.Equal(t, string(models.EventHoldReady), msg.Headers["event_type"])

	var p analytics.Payload
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal(msg.Value, &p))
	assert.Equal(t, msg.Headers["event_id"], p.ID)
	assert.Equal(t, int64(4), p.CollectionID)
	require.NotNil(t, p.PatronID)
	assert.Equal(t, int64(99), *p.PatronID)
}

func TestPayloadWithoutPatron(t *testing.T) {
	e := resolvedEvent()
	e.Patron = nil
	raw, err := analytics.NewPayload(e).Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "patron_id")
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := analytics.NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sink.CollectEvent(context.Background(), resolvedEvent()))
	assert.Contains(t, buf.String(), `"event_type":"circulation_manager_hold_ready"`)
	assert.Contains(t, buf.String(), `"patron_id":99`)
}

func TestBreakerSinkOpensAfterConsecutiveFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockAnalyticsSink(ctrl)
	boom := errors.New("broker down")
	next.EXPECT().CollectEvent(gomock.Any(), gomock.Any()).Return(boom).Times(2)

	m := analytics.NewMetrics(prometheus.NewRegistry())
	sink := analytics.NewBreakerSink("kafka", next, analytics.BreakerConfig{MaxFailures: 2, Timeout: time.Hour}, nil, m)
	ctx := context.Background()

	assert.ErrorIs(t, sink.CollectEvent(ctx, resolvedEvent()), boom)
	assert.ErrorIs(t, sink.CollectEvent(ctx, resolvedEvent()), boom)
	assert.Equal(t, gobreaker.StateOpen, sink.State())

	err := sink.CollectEvent(ctx, resolvedEvent())
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerRejected.WithLabelValues("kafka")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SinkFailures.WithLabelValues("kafka")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("kafka")))
}

func TestFanoutCallsEverySink(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockAnalyticsSink(ctrl)
	second := mocks.NewMockAnalyticsSink(ctrl)
	boom := errors.New("rejected")
	first.EXPECT().CollectEvent(gomock.Any(), gomock.Any()).Return(boom)
	second.EXPECT().CollectEvent(gomock.Any(), gomock.Any()).Return(nil)

	f := analytics.NewFanout(
		analytics.NamedSink{Name: "first", Sink: first},
		analytics.NamedSink{Name: "second", Sink: second},
	)
	err := f.CollectEvent(context.Background(), resolvedEvent())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "first")
}

func TestOutboxSinkAndRelay(t *testing.T) {
	ctx := context.Background()
	outbox := analytics.NewInMemoryOutbox()
	sink := analytics.NewOutboxSink(outbox)
	for range 3 {
		require.NoError(t, sink.CollectEvent(ctx, resolvedEvent()))
	}
	require.Equal(t, 3, outbox.Pending())

	pub := &capturePublisher{fail: func(n int) error {
		if n == 2 {
			return errors.New("leader not available")
		}
		return nil
	}}
	m := analytics.NewMetrics(prometheus.NewRegistry())
	relay, err := analytics.NewRelay(outbox, pub, "analytics", analytics.WithRelayMetrics(m), analytics.WithRelayBatchSize(10))
	require.NoError(t, err)

	n, err := relay.RelayOnce(ctx)
	assert.Error(t, err)
	assert.Equal(t, 2, n, "entries published before the failure are kept")
	assert.Equal(t, 1, outbox.Pending())

	pub.fail = nil
	n, err = relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, outbox.Pending())
	assert.Len(t, pub.msgs, 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RelayPublished))
}

func TestRelayServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	outbox := analytics.NewInMemoryOutbox()
	require.NoError(t, analytics.NewOutboxSink(outbox).CollectEvent(ctx, resolvedEvent()))
	pub := &capturePublisher{}
	relay, err := analytics.NewRelay(outbox, pub, "analytics", analytics.WithRelayInterval(time.Millisecond))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- relay.Serve(ctx) }()
	require.Eventually(t, func() bool { return outbox.Pending() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNewSink(t *testing.T) {
	cfg := config.Default().Analytics

	t.Run("single log sink", func(t *testing.T) {
		cfg.Sinks = []string{"log"}
		sink, err := analytics.NewSink(cfg, analytics.Backends{})
		require.NoError(t, err)
		assert.IsType(t, &analytics.LogSink{}, sink)
	})

	t.Run("kafka without publisher", func(t *testing.T) {
		cfg.Sinks = []string{"kafka"}
		_, err := analytics.NewSink(cfg, analytics.Backends{})
		assert.Error(t, err)
	})

	t.Run("fan out", func(t *testing.T) {
		cfg.Sinks = []string{"log", "kafka", "outbox"}
		sink, err := analytics.NewSink(cfg, analytics.Backends{
			Publisher: &capturePublisher{},
			Outbox:    analytics.NewInMemoryOutbox(),
		})
		require.NoError(t, err)
		fanout, ok := sink.(*analytics.Fanout)
		require.True(t, ok)
		assert.Equal(t, 3, fanout.Len())
	})
}
