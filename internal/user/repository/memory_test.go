package repository

import (
	"context"
	"testing"

	"bikecare/backend/internal/user/domain"
)

func TestMemoryRepository_UpsertKeepsAdminAndPassword(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	if err := repo.Upsert(ctx, &domain.User{ID: "oauth|1", Email: "Rider@Example.com", FirstName: "Lina"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.SetAdmin(ctx, "oauth|1", true); err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}
	if err := repo.SetPasswordHash(ctx, "oauth|1", "hash"); err != nil {
		t.Fatalf("SetPasswordHash: %v", err)
	}
	if err := repo.Upsert(ctx, &domain.User{ID: "oauth|1", Email: "rider@example.com", LastName: "Haddad", IsAdmin: domain.Bool(false)}); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}

	u, err := repo.GetByEmail(ctx, "RIDER@example.com")
	if err != nil || u == nil {
		t.Fatalf("GetByEmail = %v, %v", u, err)
	}
	if u.FirstName != "Lina" || u.LastName != "Haddad" {
		t.Errorf("profile = %q %q, want merged", u.FirstName, u.LastName)
	}
	if v, set := u.AdminFlag(); !set || !v {
		t.Error("Upsert must not change the persisted admin flag")
	}
	if u.PasswordHash != "hash" {
		t.Error("Upsert must not change the password hash")
	}
}

func TestMemoryRepository_EmailUniqueAcrossIDs(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	if err := repo.Upsert(ctx, &domain.User{ID: "seed-1", Email: "ops@bikecare.io"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Upsert(ctx, &domain.User{ID: "oauth|2", Email: "OPS@bikecare.io"}); err != domain.ErrEmailTaken {
		t.Errorf("Upsert duplicate email: err = %v, want ErrEmailTaken", err)
	}
	if err := repo.Upsert(ctx, &domain.User{ID: "seed-1", Email: "Ops@BikeCare.io", FirstName: "Nora"}); err != nil {
		t.Errorf("Upsert same id: %v", err)
	}
	if u, _ := repo.GetByID(ctx, "oauth|2"); u != nil {
		t.Errorf("rejected Upsert stored %+v", u)
	}
}

func TestMemoryRepository_Missing(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	u, err := repo.GetByID(ctx, "nobody")
	if u != nil || err != nil {
		t.Errorf("GetByID missing = %v, %v; want nil, nil", u, err)
	}
	if err := repo.SetAdmin(ctx, "nobody", true); err != domain.ErrNotFound {
		t.Errorf("SetAdmin missing: err = %v, want ErrNotFound", err)
	}
	if repo.Lookups() != 1 {
		t.Errorf("Lookups = %d, want 1", repo.Lookups())
	}
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.Upsert(ctx, &domain.User{ID: "u1", Phone: "966512345678", IsAdmin: domain.Bool(false)})
	u, _ := repo.GetByID(ctx, "u1")
	*u.IsAdmin = true
	again, _ := repo.GetByID(ctx, "u1")
	if v, _ := again.AdminFlag(); v {
		t.Error("mutating a returned user must not change the repository")
	}
}
