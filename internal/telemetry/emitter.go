package telemetry

import (
	"context"
	"errors"

	"bikecare/backend/internal/telemetry/domain"
)

// EventEmitter emits auth events (e.g. to OTel Logs or Kafka). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.AuthEvent) error
}

// Fanout returns an emitter that forwards each event to every non-nil emitter.
func Fanout(emitters ...EventEmitter) EventEmitter {
	var live []EventEmitter
	for _, e := range emitters {
		if e != nil {
			live = append(live, e)
		}
	}
	return fanout(live)
}

type fanout []EventEmitter

func (f fanout) Emit(ctx context.Context, event *domain.AuthEvent) error {
	var errs []error
	for _, e := range f {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
