package repository

import (
	"context"
	"testing"
	"time"

	"bikecare/backend/internal/audit/domain"
	"bikecare/backend/internal/db/dbtest"
)

func TestPostgresRepository_CreateListGet(t *testing.T) {
	db := dbtest.Postgres(t)
	r := NewPostgresRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := &domain.AuditLog{ID: "audit-1", UserID: "phone_966512345678", Action: "otp_verified", Resource: "session", IP: "10.0.0.1", CreatedAt: now.Add(-time.Minute)}
	second := &domain.AuditLog{ID: "audit-2", Action: "admin_denied", Metadata: `{"path":"/api/admin/me"}`, CreatedAt: now}
	for _, a := range []*domain.AuditLog{first, second} {
		if err := r.Create(ctx, a); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	list, err := r.List(ctx, Filter{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "audit-2" {
		t.Fatalf("List = %v", ids(list))
	}
	list, err = r.List(ctx, Filter{UserID: "phone_966512345678", Action: "otp_verified"})
	if err != nil || len(list) != 1 || list[0].ID != "audit-1" {
		t.Fatalf("List filtered = %v, %v", ids(list), err)
	}
	if list, _ := r.List(ctx, Filter{Limit: 1, Offset: 1}); len(list) != 1 || list[0].ID != "audit-1" {
		t.Errorf("List paged = %v", ids(list))
	}
	got, err := r.GetByID(ctx, "audit-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.UserID != first.UserID || got.IP != first.IP || !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("GetByID = %+v", got)
	}
	if got, err := r.GetByID(ctx, "missing"); err != nil || got != nil {
		t.Errorf("GetByID missing = %v, %v", got, err)
	}
}
