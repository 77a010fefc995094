package eventstream

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bikecare/backend/internal/telemetry/domain"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one decoded event. A returned error leaves the offset uncommitted.
type Handler func(ctx context.Context, event *domain.AuthEvent) error

// Consumer reads the auth event topic as part of a consumer group.
type Consumer struct {
	reader  messageReader
	logger  *zap.Logger
	backoff time.Duration
}

// NewConsumer joins group on topic.
func NewConsumer(brokers []string, topic, group string, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  group,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  time.Second,
		}),
		logger:  logger,
		backoff: time.Second,
	}
}

// Run feeds events to handle until ctx ends or the reader is closed. Undecodable messages are
// logged and committed so they do not block the partition; a failing handler is retried on the
// same message after a pause.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	defer func() { _ = c.reader.Close() }()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Warn("eventstream: fetch", zap.Error(err))
			if !c.pause(ctx) {
				return nil
			}
			continue
		}
		ev, err := Decode(msg)
		if err != nil {
			c.logger.Warn("eventstream: skipping message", zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
		} else if !c.deliver(ctx, handle, ev, msg.Offset) {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Warn("eventstream: commit", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// deliver retries handle until it succeeds. It reports false when ctx ends first.
func (c *Consumer) deliver(ctx context.Context, handle Handler, ev *domain.AuthEvent, offset int64) bool {
	for {
		err := handle(ctx, ev)
		if err == nil {
			return true
		}
		c.logger.Warn("eventstream: handler failed", zap.String("event_type", ev.Type), zap.Int64("offset", offset), zap.Error(err))
		if !c.pause(ctx) {
			return false
		}
	}
}

func (c *Consumer) pause(ctx context.Context) bool {
	t := time.NewTimer(c.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
