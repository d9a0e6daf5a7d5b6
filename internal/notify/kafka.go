package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher writes notifications as JSON messages to one topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data, Time: time.Now().UTC()})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher is used when no brokers are configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, key string, n Notification) error {
	p.logger.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.String("key", key),
		zap.String("recipient", n.Recipient),
		zap.Int("orders", len(n.Orders)),
	)
	return nil
}

// NewPublisher picks Kafka when brokers are configured and the log
// publisher otherwise. The returned close func is always non-nil.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) (Publisher, func() error) {
	if len(brokers) == 0 {
		return NewLogPublisher(logger), func() error { return nil }
	}
	kp := NewKafkaPublisher(brokers, topic)
	return kp, kp.Close
}
