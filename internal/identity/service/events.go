package service

import (
	"context"
	"encoding/json"

	"bikecare/backend/internal/audit"
	"bikecare/backend/internal/telemetry"
	telemetrydomain "bikecare/backend/internal/telemetry/domain"
)

// Recorder fans an auth event out to the audit log and the telemetry pipeline. Both are
// best-effort and either may be nil.
type Recorder struct {
	Audit  audit.Trail
	Events *telemetry.Dispatcher
	// ClientIP extracts the caller IP for telemetry; may be nil.
	ClientIP func(context.Context) string
}

// Record writes the event. Credential-like metadata values are redacted before either sink sees them.
func (r *Recorder) Record(ctx context.Context, eventType, userID, source, outcome, resource string, metadata map[string]interface{}) {
	if r == nil {
		return
	}
	metadata = audit.Redact(metadata)
	if r.Audit != nil {
		r.Audit.Record(ctx, audit.Entry{UserID: userID, Action: eventType, Resource: resource, Metadata: metadata})
	}
	if r.Events != nil {
		var raw []byte
		if metadata != nil {
			raw, _ = json.Marshal(metadata)
		}
		ev := &telemetrydomain.AuthEvent{
			Type:     eventType,
			UserID:   userID,
			Source:   source,
			Outcome:  outcome,
			Metadata: raw,
		}
		if r.ClientIP != nil {
			ev.ClientIP = r.ClientIP(ctx)
		}
		r.Events.Dispatch(ev)
	}
}
