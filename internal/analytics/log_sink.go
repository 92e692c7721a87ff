package analytics

import (
	"context"
	"log/slog"

	"circulation/internal/odl/models"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) CollectEvent(ctx context.Context, e models.ResolvedEvent) error {
	attrs := []any{
		"event_type", string(e.Type),
		"library", e.Library.ShortName,
		"license_pool_id", e.LicensePool.ID,
		"licenses_available", e.LicensePool.LicensesAvailable,
		"licenses_reserved", e.LicensePool.LicensesReserved,
		"occurred_at", e.OccurredAt,
	}
	if e.Patron != nil {
		attrs = append(attrs, "patron_id", e.Patron.ID)
	}
	s.logger.InfoContext(ctx, "circulation event", attrs...)
	return nil
}
