package analytics

import (
	"context"
	"errors"
	"fmt"

	"circulation/internal/odl/models"
	"circulation/internal/odl/ports"
)

// NamedSink labels a sink in fan-out errors.
type NamedSink struct {
	Name string
	Sink ports.AnalyticsSink
}

// Fanout delivers every event to each sink in order. All sinks are called
// even when one fails; the failures are joined.
type Fanout struct {
	sinks []NamedSink
}

func NewFanout(sinks ...NamedSink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) CollectEvent(ctx context.Context, e models.ResolvedEvent) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Sink.CollectEvent(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Len reports the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}
