package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/MushhX/RavixPteroX/internal/config"
	"github.com/MushhX/RavixPteroX/internal/ids"
	"github.com/MushhX/RavixPteroX/internal/models"
	"github.com/MushhX/RavixPteroX/internal/security"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash BYTEA NOT NULL,
		role TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		refresh_token_hash TEXT NOT NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_used_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		revoked_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_user_id_idx ON sessions (user_id)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		actor_user_id TEXT,
		action TEXT NOT NULL,
		target TEXT,
		meta_json JSONB,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_created_at_idx ON audit_logs (created_at DESC)`,
}

// Migrate applies the embedded schema. Statements are idempotent so startup
// can run them unconditionally.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// seedConn is the slice of the pool SeedAdmin needs; *pgxpool.Pool
// satisfies it.
type seedConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SeedAdmin guarantees the bootstrap admin record exists so a fresh
// deployment can always be logged into.
func SeedAdmin(ctx context.Context, db seedConn, cfg config.AuthConfig, log zerolog.Logger) error {
	var existing string
	err := db.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&existing)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		// No admin yet, seed one below.
	default:
		return fmt.Errorf("check admin: %w", err)
	}

	passwordHash, err := security.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	id := ids.New()
	_, err = db.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, role) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO NOTHING`,
		id, cfg.AdminEmail, passwordHash, models.UserRoleAdmin)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	log.Info().Str("email", cfg.AdminEmail).Msg("bootstrap admin created")
	return nil
}
