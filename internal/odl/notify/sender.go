package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"circulation/internal/platform/kafka"
)

// LogSender writes notices to the process log.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, n Notice) error {
	s.logger.InfoContext(ctx, "hold ready for checkout",
		"hold_id", n.HoldID,
		"patron_id", n.PatronID,
		"library_id", n.LibraryID,
		"license_pool_id", n.LicensePoolID,
		"ready_until", n.ReadyUntil,
	)
	return nil
}

// Publisher writes a record to a topic.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaSender publishes notices for the patron messaging service, keyed by
// patron so one patron's notices stay ordered.
type KafkaSender struct {
	publisher Publisher
	topic     string
}

func NewKafkaSender(publisher Publisher, topic string) *KafkaSender {
	return &KafkaSender{publisher: publisher, topic: topic}
}

func (s *KafkaSender) Send(ctx context.Context, n Notice) error {
	payload, err := jsoniter.ConfigFastest.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	return s.publisher.Publish(ctx, kafka.Message{
		Topic:   s.topic,
		Key:     strconv.FormatInt(n.PatronID, 10),
		Value:   payload,
		Headers: map[string]string{"notice_type": "hold_ready"},
	})
}
