package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"bikecare/backend/internal/telemetry/domain"
)

const (
	emitTimeout        = 5 * time.Second
	defaultMaxInFlight = 64
)

// Dispatcher emits auth events off the request path. At most maxInFlight emits run at once;
// events arriving while the limit is reached are dropped and counted.
type Dispatcher struct {
	emitter EventEmitter
	logger  *zap.Logger
	slots   chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Int64
	nowF    func() time.Time
}

// NewDispatcher returns a Dispatcher over emitter. maxInFlight <= 0 selects the default.
func NewDispatcher(emitter EventEmitter, maxInFlight int, logger *zap.Logger) *Dispatcher {
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		emitter: emitter,
		logger:  logger,
		slots:   make(chan struct{}, maxInFlight),
		nowF:    time.Now,
	}
}

// Dispatch stamps CreatedAt when unset and emits event in the background under its own timeout,
// so a cancelled request does not abort the emit. A nil Dispatcher, emitter or event is a no-op.
func (d *Dispatcher) Dispatch(event *domain.AuthEvent) {
	if d == nil || d.emitter == nil || event == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = d.nowF().UTC()
	}
	select {
	case d.slots <- struct{}{}:
	default:
		d.dropped.Add(1)
		d.logger.Warn("telemetry: dispatcher saturated, event dropped", zap.String("event_type", event.Type))
		return
	}
	d.wg.Add(1)
	go func() {
		defer func() {
			<-d.slots
			d.wg.Done()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := d.emitter.Emit(ctx, event); err != nil {
			d.logger.Warn("telemetry: emit failed", zap.String("event_type", event.Type), zap.Error(err))
		}
	}()
}

// Dropped reports how many events were discarded because the dispatcher was saturated.
func (d *Dispatcher) Dropped() int64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Drain waits for in-flight emits to finish or ctx to end. Call it after the HTTP server stops
// and before the exporters shut down.
func (d *Dispatcher) Drain(ctx context.Context) error {
	if d == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
