package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bikecare/backend/internal/audit/domain"
	auditrepo "bikecare/backend/internal/audit/repository"
)

// Entry is one auditable action before it is stamped and stored.
type Entry struct {
	UserID   string
	Action   string
	Resource string
	Metadata map[string]interface{}
}

// Trail accepts audit entries. Record is best-effort and never fails the caller.
type Trail interface {
	Record(ctx context.Context, e Entry)
}

const redacted = "[redacted]"

var sensitiveKeys = []string{"code", "password", "token", "secret"}

// Redact returns a copy of metadata with credential-like values replaced. Keys are matched
// case-insensitively by substring, so "id_token" and "otp_code" are both covered.
func Redact(metadata map[string]interface{}) map[string]interface{} {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = v
		lower := strings.ToLower(k)
		for _, s := range sensitiveKeys {
			if strings.Contains(lower, s) {
				out[k] = redacted
				break
			}
		}
	}
	return out
}

// Writer persists entries to the audit repository, stamping id, time and client IP.
type Writer struct {
	repo     auditrepo.Repository
	clientIP func(context.Context) string
	log      *zap.Logger
	nowF     func() time.Time
}

// NewWriter returns a Writer. clientIP may be nil, in which case IP is recorded as "unknown".
func NewWriter(repo auditrepo.Repository, clientIP func(context.Context) string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{repo: repo, clientIP: clientIP, log: logger, nowF: time.Now}
}

// Record stores e with its metadata redacted and JSON encoded.
func (w *Writer) Record(ctx context.Context, e Entry) {
	if w == nil || w.repo == nil {
		return
	}
	row := &domain.AuditLog{
		ID:        uuid.NewString(),
		UserID:    e.UserID,
		Action:    e.Action,
		Resource:  e.Resource,
		IP:        "unknown",
		CreatedAt: w.nowF().UTC(),
	}
	if w.clientIP != nil {
		if ip := w.clientIP(ctx); ip != "" {
			row.IP = ip
		}
	}
	if meta := Redact(e.Metadata); meta != nil {
		raw, err := json.Marshal(meta)
		if err != nil {
			w.log.Warn("audit: metadata not encodable", zap.String("action", e.Action), zap.Error(err))
		} else {
			row.Metadata = string(raw)
		}
	}
	if err := w.repo.Create(ctx, row); err != nil {
		w.log.Warn("audit: write failed", zap.String("action", e.Action), zap.String("resource", e.Resource), zap.Error(err))
	}
}
