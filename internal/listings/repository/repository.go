// Package repository provides the read-side lookup for listed resources.
// Catalog management (publishing, search, moderation) lives elsewhere; the
// engagement engine only needs to resolve a listing at purchase time.
package repository

import (
	"context"
	"errors"
	"fmt"

	"marketplace_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Listing kinds and statuses as stored.
const (
	KindProduct = "product"
	KindService = "service"

	StatusActive = "active"
)

// Listing is the resource being transacted: a product for sale or a
// bookable service, offered by a seller within one building.
type Listing struct {
	ID         uuid.UUID       `db:"id"`
	BuildingID uuid.UUID       `db:"building_id"`
	SellerID   uuid.UUID       `db:"seller_id"`
	Kind       string          `db:"kind"`
	Status     string          `db:"status"`
	Title      string          `db:"title"`
	UnitPrice  decimal.Decimal `db:"unit_price"`
	Currency   string          `db:"currency"`
}

// Repository provides database operations for listings
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new listings repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID retrieves a listing by its ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Listing, error) {
	var l Listing
	query := `SELECT id, building_id, seller_id, kind, status, title, unit_price, currency
		FROM listings WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.BuildingID, &l.SellerID, &l.Kind, &l.Status, &l.Title, &l.UnitPrice, &l.Currency,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("listing not found")
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	return &l, nil
}
