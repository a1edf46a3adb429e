package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MushhX/RavixPteroX/internal/models"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Write(ctx context.Context, event models.AuditEvent) error {
	var metaJSON []byte
	if event.Meta != nil {
		var err error
		metaJSON, err = json.Marshal(event.Meta)
		if err != nil {
			return err
		}
	}

	const query = `
		INSERT INTO audit_logs (id, actor_user_id, action, target, meta_json, ip_address, user_agent, created_at)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, $6, $7, NOW())
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.ActorUserID,
		event.Action,
		event.Target,
		metaJSON,
		event.IPAddress,
		event.UserAgent,
	)
	return err
}

// List returns events newest first. A zero before means no upper bound.
func (r *AuditRepository) List(ctx context.Context, limit int, before time.Time) ([]models.AuditEvent, error) {
	const query = `
		SELECT id, COALESCE(actor_user_id, ''), action, COALESCE(target, ''), meta_json,
		       ip_address, user_agent, created_at
		FROM audit_logs
		WHERE $2::timestamptz IS NULL OR created_at < $2
		ORDER BY created_at DESC
		LIMIT $1
	`

	var beforeArg any
	if !before.IsZero() {
		beforeArg = before
	}

	rows, err := r.pool.Query(ctx, query, limit, beforeArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var (
			event    models.AuditEvent
			metaJSON []byte
		)
		if err := rows.Scan(
			&event.ID,
			&event.ActorUserID,
			&event.Action,
			&event.Target,
			&metaJSON,
			&event.IPAddress,
			&event.UserAgent,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &event.Meta); err != nil {
				return nil, err
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// TrimOlderThan drops audit rows past the retention horizon.
func (r *AuditRepository) TrimOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM audit_logs WHERE created_at < $1`
	cmd, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
