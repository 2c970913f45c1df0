package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"livemarket/internal/observability"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

// KafkaPublisher maps room channels onto two topics: one for the global
// feed and one for per-room traffic keyed by room id, so a room's events
// stay ordered within its partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	prefix   string
	doneCh   chan struct{}
}

// NewKafkaPublisher creates a producer and starts draining its delivery reports.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kp := &KafkaPublisher{
		producer: p,
		prefix:   cfg.TopicPrefix,
		doneCh:   make(chan struct{}),
	}
	go kp.deliveryReportHandler()
	return kp, nil
}

// channelToTopicAndKey converts a room channel to a Kafka topic and message key.
//
//	"live:rooms"      → topic: "<prefix>-rooms",       key: ""
//	"live:room:abc-1" → topic: "<prefix>-room-events", key: "abc-1"
func channelToTopicAndKey(prefix, channel string) (topic, key string, err error) {
	if prefix == "" {
		prefix = "livemarket"
	}
	if channel == GlobalChannel {
		return prefix + "-rooms", "", nil
	}
	if roomID, ok := RoomIDFromChannel(channel); ok {
		return prefix + "-room-events", roomID, nil
	}
	return "", "", fmt.Errorf("invalid channel format: %s", channel)
}

func (k *KafkaPublisher) deliveryReportHandler() {
	for e := range k.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				observability.GlobalLogger.Warn("kafka delivery failed",
					slog.String("topic", deref(ev.TopicPartition.Topic)),
					slog.String("key", string(ev.Key)),
					slog.String("error", ev.TopicPartition.Error.Error()),
				)
			}
		case kafka.Error:
			observability.GlobalLogger.Warn("kafka producer error",
				slog.String("error", ev.Error()),
				slog.Bool("fatal", ev.IsFatal()),
			)
		}
	}
	close(k.doneCh)
}

// Publish enqueues env on the producer. Delivery is reported asynchronously.
func (k *KafkaPublisher) Publish(ctx context.Context, channel string, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	topic, key, err := channelToTopicAndKey(k.prefix, channel)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Value: data,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(env.Event)},
			{Key: "channel", Value: []byte(channel)},
		},
	}
	if key != "" {
		msg.Key = []byte(key)
	}
	if err := k.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// Close flushes outstanding messages and stops the producer.
func (k *KafkaPublisher) Close() error {
	k.producer.Flush(5000)
	k.producer.Close()
	<-k.doneCh
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
