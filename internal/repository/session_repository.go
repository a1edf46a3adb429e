package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MushhX/RavixPteroX/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO sessions (id, user_id, refresh_token_hash, ip_address, user_agent, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.RefreshTokenHash,
		session.IPAddress,
		session.UserAgent,
	)
	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (models.Session, error) {
	const query = `
		SELECT id, user_id, refresh_token_hash, ip_address, user_agent, created_at, last_used_at, revoked_at
		FROM sessions WHERE id = $1
	`
	return r.scanSession(r.pool.QueryRow(ctx, query, id))
}

// RotateFingerprint atomically replaces the stored fingerprint, but only if
// the session still holds priorHash and is not revoked. The conditional
// UPDATE is what serializes two concurrent rotations racing on the same
// refresh token: exactly one of them observes priorHash and wins.
func (r *SessionRepository) RotateFingerprint(ctx context.Context, sessionID, priorHash, newHash string) (bool, error) {
	const query = `
		UPDATE sessions
		SET refresh_token_hash = $3, last_used_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2 AND revoked_at IS NULL
	`

	cmd, err := r.pool.Exec(ctx, query, sessionID, priorHash, newHash)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// Revoke marks the session terminal. Idempotent: revoking an already revoked
// session keeps the original revocation time.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID string) error {
	const query = `
		UPDATE sessions SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL
	`
	_, err := r.pool.Exec(ctx, query, sessionID)
	return err
}

func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	const query = `
		UPDATE sessions SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	const query = `
		SELECT id, user_id, refresh_token_hash, ip_address, user_agent, created_at, last_used_at, revoked_at
		FROM sessions
		WHERE user_id = $1 AND revoked_at IS NULL
		ORDER BY last_used_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.RefreshTokenHash,
			&session.IPAddress,
			&session.UserAgent,
			&session.CreatedAt,
			&session.LastUsedAt,
			&session.RevokedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Touch updates the advisory last-seen metadata. Failures are ignorable.
func (r *SessionRepository) Touch(ctx context.Context, sessionID, ip, userAgent string) error {
	const query = `
		UPDATE sessions
		SET last_used_at = NOW(),
		    ip_address = COALESCE(NULLIF($2, ''), ip_address),
		    user_agent = COALESCE(NULLIF($3, ''), user_agent)
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, sessionID, ip, userAgent)
	return err
}

// PurgeStale drops rows that can no longer affect auth decisions: sessions
// revoked before revokedBefore and sessions idle since idleBefore.
func (r *SessionRepository) PurgeStale(ctx context.Context, revokedBefore, idleBefore time.Time) (int64, error) {
	const query = `
		DELETE FROM sessions
		WHERE (revoked_at IS NOT NULL AND revoked_at < $1)
		   OR last_used_at < $2
	`
	cmd, err := r.pool.Exec(ctx, query, revokedBefore, idleBefore)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *SessionRepository) scanSession(row pgx.Row) (models.Session, error) {
	var session models.Session
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.RefreshTokenHash,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
		&session.LastUsedAt,
		&session.RevokedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return session, nil
}
