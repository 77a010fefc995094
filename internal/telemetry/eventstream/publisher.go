package eventstream

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"bikecare/backend/internal/telemetry/domain"
)

const writeTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes auth events to a Kafka topic. It satisfies telemetry.EventEmitter.
type Publisher struct {
	writer messageWriter
}

// NewPublisher returns nil when brokers or topic are empty; callers treat that as the stream
// being disabled.
func NewPublisher(brokers []string, topic string) *Publisher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &Publisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

// Emit publishes event. A nil Publisher or event is a no-op.
func (p *Publisher) Emit(ctx context.Context, event *domain.AuthEvent) error {
	if p == nil || event == nil {
		return nil
	}
	msg, err := Encode(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
