package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"bikecare/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	uniqueViolation = "23505"
	emailIndex      = "users_email_key"
)

const userColumns = `id, COALESCE(email, ''), COALESCE(phone, ''), first_name, last_name, avatar_url, is_admin, password_hash, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email (case-insensitive), or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, strings.ToLower(email))
	return scanUser(row)
}

// Upsert inserts u, or refreshes the profile of the existing row with the same id. Empty profile
// values never overwrite stored ones. An email held by another row yields domain.ErrEmailTaken.
func (r *PostgresRepository) Upsert(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	var isAdmin sql.NullBool
	if u.IsAdmin != nil {
		isAdmin = sql.NullBool{Bool: *u.IsAdmin, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, email, phone, first_name, last_name, avatar_url, is_admin, password_hash, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    email      = COALESCE(EXCLUDED.email, users.email),
    phone      = COALESCE(EXCLUDED.phone, users.phone),
    first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), users.first_name),
    last_name  = COALESCE(NULLIF(EXCLUDED.last_name, ''), users.last_name),
    avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), users.avatar_url),
    updated_at = EXCLUDED.updated_at`,
		u.ID, strings.ToLower(u.Email), u.Phone, u.FirstName, u.LastName, u.AvatarURL,
		isAdmin, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == emailIndex {
		return domain.ErrEmailTaken
	}
	return err
}

// SetAdmin sets the persisted admin flag for id.
func (r *PostgresRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	return r.execOne(ctx, `UPDATE users SET is_admin = $2, updated_at = now() WHERE id = $1`, id, isAdmin)
}

// SetPasswordHash replaces the bcrypt hash used for back-office password login.
func (r *PostgresRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	return r.execOne(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var isAdmin sql.NullBool
	err := row.Scan(&u.ID, &u.Email, &u.Phone, &u.FirstName, &u.LastName, &u.AvatarURL,
		&isAdmin, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if isAdmin.Valid {
		u.IsAdmin = domain.Bool(isAdmin.Bool)
	}
	return &u, nil
}
