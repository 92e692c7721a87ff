package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"circulation/internal/odl/models"
	"circulation/internal/odl/ports"
	"circulation/pkg/platform/sentinel"
)

// BreakerConfig tunes a BreakerSink.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// Timeout is how long the breaker stays open before letting a probe through.
	Timeout time.Duration
}

// BreakerSink stops calling a failing sink for a while so event delivery
// does not stall every collector transaction on a dead backend.
type BreakerSink struct {
	name    string
	next    ports.AnalyticsSink
	breaker *gobreaker.CircuitBreaker[struct{}]
	metrics *Metrics
}

func NewBreakerSink(name string, next ports.AnalyticsSink, cfg BreakerConfig, logger *slog.Logger, m *Metrics) *BreakerSink {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &BreakerSink{name: name, next: next, metrics: m}
	s.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("analytics sink breaker state changed",
				"sink", name,
				"from", from.String(),
				"to", to.String(),
			)
			m.setBreakerState(name, float64(to))
		},
	})
	m.setBreakerState(name, float64(gobreaker.StateClosed))
	return s
}

func (s *BreakerSink) CollectEvent(ctx context.Context, e models.ResolvedEvent) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.next.CollectEvent(ctx, e)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		s.metrics.incRejected(s.name)
		return fmt.Errorf("%s sink: %w", s.name, sentinel.ErrUnavailable)
	default:
		s.metrics.incSinkFailure(s.name)
		return err
	}
}

// State reports the breaker state.
func (s *BreakerSink) State() gobreaker.State {
	return s.breaker.State()
}
