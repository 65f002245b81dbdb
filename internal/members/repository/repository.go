// Package repository provides the read-side lookup for building memberships.
// Identity, signup, and verification workflows live elsewhere; the
// engagement engine only needs the verified scopes a user belongs to.
package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides database operations for building members
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new members repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetVerifiedBuildingIDs returns the buildings where the user holds a
// verified membership. An empty slice means the user may not transact.
func (r *Repository) GetVerifiedBuildingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT building_id FROM building_members
		WHERE user_id = $1 AND verified_at IS NOT NULL`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list building memberships: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan building membership: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate building memberships: %w", err)
	}

	return ids, nil
}
