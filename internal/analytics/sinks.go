package analytics

import (
	"fmt"
	"log/slog"

	"circulation/internal/odl/ports"
	"circulation/internal/platform/config"
)

// Sink names accepted in analytics.sinks.
const (
	SinkLog    = "log"
	SinkKafka  = "kafka"
	SinkOutbox = "outbox"
)

// Backends are the transports sinks may need. Publisher and Outbox are nil
// when Kafka or Postgres are not configured.
type Backends struct {
	Logger    *slog.Logger
	Publisher Publisher
	Topic     string
	Outbox    OutboxRepository
	Metrics   *Metrics
}

// NewSink builds the configured sink chain. Direct Kafka delivery sits behind
// a circuit breaker; the outbox writes inside the collector's transaction.
func NewSink(cfg config.Analytics, b Backends) (ports.AnalyticsSink, error) {
	if b.Logger == nil {
		b.Logger = slog.Default()
	}
	var sinks []NamedSink
	for _, name := range cfg.Sinks {
		switch name {
		case SinkLog:
			sinks = append(sinks, NamedSink{Name: name, Sink: NewLogSink(b.Logger)})
		case SinkKafka:
			if b.Publisher == nil {
				return nil, fmt.Errorf("analytics sink %q requires a kafka publisher", name)
			}
			breaker := NewBreakerSink(name, NewKafkaSink(b.Publisher, b.Topic), BreakerConfig{
				MaxFailures: cfg.BreakerMaxFailures,
				Timeout:     cfg.BreakerTimeout,
			}, b.Logger, b.Metrics)
			sinks = append(sinks, NamedSink{Name: name, Sink: breaker})
		case SinkOutbox:
			if b.Outbox == nil {
				return nil, fmt.Errorf("analytics sink %q requires an outbox", name)
			}
			sinks = append(sinks, NamedSink{Name: name, Sink: NewOutboxSink(b.Outbox)})
		default:
			return nil, fmt.Errorf("unknown analytics sink %q", name)
		}
	}
	switch len(sinks) {
	case 0:
		return NewLogSink(b.Logger), nil
	case 1:
		return sinks[0].Sink, nil
	default:
		return NewFanout(sinks...), nil
	}
}
