package analytics

import (
	"context"
	"fmt"

	"circulation/internal/odl/models"
	"circulation/internal/platform/kafka"
)

// Publisher writes a record to a topic.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaSink publishes each event directly to the analytics topic.
type KafkaSink struct {
	publisher Publisher
	topic     string
}

func NewKafkaSink(publisher Publisher, topic string) *KafkaSink {
	return &KafkaSink{publisher: publisher, topic: topic}
}

func (s *KafkaSink) CollectEvent(ctx context.Context, e models.ResolvedEvent) error {
	payload := NewPayload(e)
	value, err := payload.Marshal()
	if err != nil {
		return fmt.Errorf("marshal analytics payload: %w", err)
	}
	return s.publisher.Publish(ctx, payloadMessage(s.topic, payload.ID, payload.Type, payload.Key(), value))
}

func payloadMessage(topic, id, eventType, key string, value []byte) kafka.Message {
	return kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Headers: map[string]string{
			"event_id":   id,
			"event_type": eventType,
		},
	}
}
