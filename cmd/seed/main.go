// seed creates or updates a back-office admin who signs in with POST /api/login. Idempotent: an
// existing user with the email keeps its id and gets the new password and the admin flag.
//
//	go run ./cmd/seed -email ops@bikecare.example -password '...'
//
// The password may also come from SEED_ADMIN_PASSWORD.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"bikecare/backend/internal/config"
	"bikecare/backend/internal/db"
	"bikecare/backend/internal/identity/service"
	"bikecare/backend/internal/security"
	userdomain "bikecare/backend/internal/user/domain"
	userrepo "bikecare/backend/internal/user/repository"
)

func main() {
	email := flag.String("email", "", "admin email")
	password := flag.String("password", os.Getenv("SEED_ADMIN_PASSWORD"), "admin password")
	firstName := flag.String("first-name", "", "optional first name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	if err := service.ValidateEmail(*email); err != nil {
		log.Fatalf("email: %v", err)
	}
	if err := service.ValidatePassword(*password); err != nil {
		log.Fatalf("password: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	if err := seedAdmin(context.Background(), userrepo.NewPostgresRepository(conn), security.NewHasher(cfg.BcryptCost), *email, *password, *firstName); err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Printf("Admin login: %s\n", *email)
}

func seedAdmin(ctx context.Context, users userrepo.Repository, hasher *security.Hasher, email, password, firstName string) error {
	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	id := uuid.NewString()
	if existing != nil {
		id = existing.ID
	}
	if err := users.Upsert(ctx, &userdomain.User{ID: id, Email: email, FirstName: firstName}); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := users.SetPasswordHash(ctx, id, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if err := users.SetAdmin(ctx, id, true); err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	return nil
}
