package repository

import (
	"context"
	"fmt"
	"time"

	"marketplace_backend/internal/engagements/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// HistoryEntry is one audit record of an engagement's status trail.
// ActorID is nil for system-driven transitions.
type HistoryEntry struct {
	ID           uuid.UUID     `db:"id"`
	EngagementID uuid.UUID     `db:"engagement_id"`
	Kind         domain.Kind   `db:"kind"`
	Status       domain.Status `db:"status"`
	ActorID      *uuid.UUID    `db:"actor_id"`
	ActorRole    domain.Role   `db:"actor_role"`
	Reason       *string       `db:"reason"`
	CreatedAt    time.Time     `db:"created_at"`
}

func appendHistory(ctx context.Context, tx pgx.Tx, entry HistoryEntry) error {
	query := `
		INSERT INTO engagement_history (
			id, engagement_id, kind, status, actor_id, actor_role, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		entry.ID, entry.EngagementID, string(entry.Kind), string(entry.Status),
		entry.ActorID, string(entry.ActorRole), entry.Reason, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append engagement history: %w", err)
	}

	return nil
}

// ListHistory returns the full status trail for an engagement, oldest first.
func (r *Repository) ListHistory(ctx context.Context, engagementID uuid.UUID) ([]HistoryEntry, error) {
	query := `
		SELECT id, engagement_id, kind, status, actor_id, actor_role, reason, created_at
		FROM engagement_history
		WHERE engagement_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, engagementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list engagement history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.EngagementID, &e.Kind, &e.Status, &e.ActorID, &e.ActorRole, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate engagement history: %w", err)
	}

	return entries, nil
}
