// Package eventstream carries auth events over Kafka. The server publishes every event it records;
// the worker consumes the topic.
package eventstream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"bikecare/backend/internal/telemetry/domain"
)

const (
	headerEventType = "event_type"
	headerSchema    = "schema"
	schemaV1        = "auth-event.v1"
)

// ErrUnknownSchema is returned by Decode for messages written with an unsupported schema header.
var ErrUnknownSchema = errors.New("eventstream: unknown schema")

// Encode builds the Kafka message for event. Messages are keyed by user id so one user's events
// land on one partition in order; anonymous events are unkeyed.
func Encode(event *domain.AuthEvent) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	msg := kafka.Message{
		Value: payload,
		Headers: []kafka.Header{
			{Key: headerSchema, Value: []byte(schemaV1)},
			{Key: headerEventType, Value: []byte(event.Type)},
		},
	}
	if event.UserID != "" {
		msg.Key = []byte(event.UserID)
	}
	return msg, nil
}

// Decode parses a message written by Encode. Messages without a schema header are read as v1.
func Decode(msg kafka.Message) (*domain.AuthEvent, error) {
	for _, h := range msg.Headers {
		if h.Key == headerSchema && string(h.Value) != schemaV1 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, h.Value)
		}
	}
	var ev domain.AuthEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return nil, fmt.Errorf("eventstream: decode offset %d: %w", msg.Offset, err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("eventstream: offset %d has no event type", msg.Offset)
	}
	return &ev, nil
}
