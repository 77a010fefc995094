package otel

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"bikecare/backend/internal/telemetry"
	"bikecare/backend/internal/telemetry/domain"
)

const instrumentationName = "bikecare.auth"

type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter ships auth events as OTel log records through provider. A nil provider yields
// an emitter that drops everything.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return telemetry.Fanout()
	}
	return newEmitter(provider.Logger(instrumentationName))
}

func newEmitter(l recordEmitter) *logEmitter {
	return &logEmitter{logger: l, nowF: time.Now}
}

type logEmitter struct {
	logger recordEmitter
	nowF   func() time.Time
}

func (e *logEmitter) Emit(ctx context.Context, event *domain.AuthEvent) error {
	if event == nil {
		return nil
	}
	var rec otellog.Record
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = e.nowF().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(e.nowF().UTC())
	sev, text := severity(event.Outcome)
	rec.SetSeverity(sev)
	rec.SetSeverityText(text)
	rec.SetEventName(event.Type)
	if len(event.Metadata) > 0 {
		rec.SetBody(metadataBody(event.Metadata))
	}
	for _, kv := range [][2]string{
		{"auth.event_type", event.Type},
		{"auth.user_id", event.UserID},
		{"auth.source", event.Source},
		{"auth.outcome", event.Outcome},
		{"client.address", event.ClientIP},
	} {
		if kv[1] != "" {
			rec.AddAttributes(otellog.String(kv[0], kv[1]))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}

// severity maps an outcome to a log level: success is INFO, internal errors are ERROR and every
// other outcome (denials, bad codes) is WARN.
func severity(outcome string) (otellog.Severity, string) {
	switch outcome {
	case "", "success":
		return otellog.SeverityInfo, "INFO"
	case "error":
		return otellog.SeverityError, "ERROR"
	default:
		return otellog.SeverityWarn, "WARN"
	}
}

// metadataBody turns a JSON object into a map body so backends can index its fields. Anything
// that is not an object is kept as raw bytes.
func metadataBody(raw json.RawMessage) otellog.Value {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return otellog.BytesValue(raw)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kvs := make([]otellog.KeyValue, 0, len(keys))
	for _, k := range keys {
		kvs = append(kvs, otellog.KeyValue{Key: k, Value: toValue(obj[k])})
	}
	return otellog.MapValue(kvs...)
}

func toValue(v interface{}) otellog.Value {
	switch t := v.(type) {
	case string:
		return otellog.StringValue(t)
	case bool:
		return otellog.BoolValue(t)
	case float64:
		return otellog.Float64Value(t)
	case nil:
		return otellog.Value{}
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return otellog.StringValue(fmt.Sprint(t))
		}
		return otellog.StringValue(string(b))
	}
}
