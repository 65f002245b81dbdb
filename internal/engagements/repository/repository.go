// Package repository provides database operations for engagements.
// Creation and status changes run inside transactions so conflict checks,
// status guards, and history appends commit or roll back as one unit.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace_backend/internal/engagements/domain"
	"marketplace_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	orderNotFoundMsg   = "order not found"
	bookingNotFoundMsg = "booking not found"

	// Postgres exclusion_violation, raised by the bookings no-overlap constraint.
	pgExclusionViolation = "23P01"
)

// Order represents the order database model
type Order struct {
	ID                 uuid.UUID       `db:"id"`
	ListingID          uuid.UUID       `db:"listing_id"`
	BuyerID            uuid.UUID       `db:"buyer_id"`
	SellerID           uuid.UUID       `db:"seller_id"`
	BuildingID         uuid.UUID       `db:"building_id"`
	Quantity           int             `db:"quantity"`
	DeliveryMethod     string          `db:"delivery_method"`
	PickupLocation     *string         `db:"pickup_location"`
	DeliveryAddress    *string         `db:"delivery_address"`
	ScheduledFor       *time.Time      `db:"scheduled_for"`
	TotalPrice         decimal.Decimal `db:"total_price"`
	Currency           string          `db:"currency"`
	Status             domain.Status   `db:"status"`
	CancellationReason *string         `db:"cancellation_reason"`
	CreatedAt          time.Time       `db:"created_at"`
	ConfirmedAt        *time.Time      `db:"confirmed_at"`
	CompletedAt        *time.Time      `db:"completed_at"`
	CancelledAt        *time.Time      `db:"cancelled_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// Booking represents the booking database model
type Booking struct {
	ID                 uuid.UUID       `db:"id"`
	ListingID          uuid.UUID       `db:"listing_id"`
	BuyerID            uuid.UUID       `db:"buyer_id"`
	SellerID           uuid.UUID       `db:"seller_id"`
	BuildingID         uuid.UUID       `db:"building_id"`
	StartTime          time.Time       `db:"start_time"`
	EndTime            time.Time       `db:"end_time"`
	DurationMinutes    int             `db:"duration_minutes"`
	Location           *string         `db:"location"`
	BuyerNotes         *string         `db:"buyer_notes"`
	TotalPrice         decimal.Decimal `db:"total_price"`
	Currency           string          `db:"currency"`
	Status             domain.Status   `db:"status"`
	CancellationReason *string         `db:"cancellation_reason"`
	CreatedAt          time.Time       `db:"created_at"`
	ConfirmedAt        *time.Time      `db:"confirmed_at"`
	CompletedAt        *time.Time      `db:"completed_at"`
	CancelledAt        *time.Time      `db:"cancelled_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// Repository provides database operations for engagements
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new engagements repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateOrder inserts a new order and its initial history entry in one transaction.
func (r *Repository) CreateOrder(ctx context.Context, order *Order, history HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (
			id, listing_id, buyer_id, seller_id, building_id, quantity, delivery_method,
			pickup_location, delivery_address, scheduled_for, total_price, currency,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	_, err = tx.Exec(ctx, query,
		order.ID, order.ListingID, order.BuyerID, order.SellerID, order.BuildingID,
		order.Quantity, order.DeliveryMethod, order.PickupLocation, order.DeliveryAddress,
		order.ScheduledFor, order.TotalPrice, order.Currency, order.Status,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	if err := appendHistory(ctx, tx, history); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order creation: %w", err)
	}

	return nil
}

const orderColumns = `id, listing_id, buyer_id, seller_id, building_id, quantity, delivery_method,
	pickup_location, delivery_address, scheduled_for, total_price, currency, status,
	cancellation_reason, created_at, confirmed_at, completed_at, cancelled_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.ListingID, &o.BuyerID, &o.SellerID, &o.BuildingID, &o.Quantity,
		&o.DeliveryMethod, &o.PickupLocation, &o.DeliveryAddress, &o.ScheduledFor,
		&o.TotalPrice, &o.Currency, &o.Status, &o.CancellationReason,
		&o.CreatedAt, &o.ConfirmedAt, &o.CompletedAt, &o.CancelledAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderByID retrieves an order by its ID
func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(orderNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

// ListParams contains parameters for listing a user's engagements
type ListParams struct {
	UserID   uuid.UUID
	Role     string // "buyer", "seller", or "" for both
	Status   *domain.Status
	Page     int
	PageSize int
}

// ListResult contains pagination metadata shared by both engagement kinds
type ListResult struct {
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

func partyFilter(role string, argIndex int) string {
	switch role {
	case "buyer":
		return fmt.Sprintf("buyer_id = $%d", argIndex)
	case "seller":
		return fmt.Sprintf("seller_id = $%d", argIndex)
	default:
		return fmt.Sprintf("(buyer_id = $%d OR seller_id = $%d)", argIndex, argIndex)
	}
}

// ListOrdersForUser retrieves orders where the user is a party, newest first.
func (r *Repository) ListOrdersForUser(ctx context.Context, params ListParams) ([]Order, *ListResult, error) {
	baseQuery := `FROM orders WHERE ` + partyFilter(params.Role, 1)
	args := []interface{}{params.UserID}
	if params.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, string(*params.Status))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, nil, fmt.Errorf("failed to count orders: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	selectQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		orderColumns, baseQuery, len(args)+1, len(args)+2)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var items []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan order: %w", err)
		}
		items = append(items, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return items, &ListResult{
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

// StatusUpdate describes one validated transition to persist. FromStatus is
// the status the caller observed; the update is guarded on it so a stale
// read cannot clobber a concurrent transition.
type StatusUpdate struct {
	ID         uuid.UUID
	FromStatus domain.Status
	ToStatus   domain.Status
	Reason     *string
	ActorID    *uuid.UUID
	ActorRole  domain.Role
	Now        time.Time
}

// UpdateOrderStatus applies a transition with an optimistic status guard and
// appends the history entry in the same transaction. Returns a conflict error
// when the row's status no longer matches FromStatus.
func (r *Repository) UpdateOrderStatus(ctx context.Context, update StatusUpdate) error {
	return r.updateStatus(ctx, "orders", domain.KindOrder, update)
}

// UpdateBookingStatus is the booking counterpart of UpdateOrderStatus.
func (r *Repository) UpdateBookingStatus(ctx context.Context, update StatusUpdate) error {
	return r.updateStatus(ctx, "bookings", domain.KindBooking, update)
}

func (r *Repository) updateStatus(ctx context.Context, table string, kind domain.Kind, update StatusUpdate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = $2`, table)
	args := []interface{}{string(update.ToStatus), update.Now}

	switch update.ToStatus {
	case domain.StatusConfirmed:
		query += fmt.Sprintf(", confirmed_at = $%d", len(args)+1)
		args = append(args, update.Now)
	case domain.StatusCompleted:
		query += fmt.Sprintf(", completed_at = $%d", len(args)+1)
		args = append(args, update.Now)
	case domain.StatusCancelled, domain.StatusExpired, domain.StatusNoShow:
		query += fmt.Sprintf(", cancelled_at = $%d, cancellation_reason = $%d", len(args)+1, len(args)+2)
		args = append(args, update.Now, update.Reason)
	}

	query += fmt.Sprintf(" WHERE id = $%d AND status = $%d", len(args)+1, len(args)+2)
	args = append(args, update.ID, string(update.FromStatus))

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s status: %w", table, err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("engagement status changed concurrently, retry with current state")
	}

	entry := HistoryEntry{
		ID:           uuid.New(),
		EngagementID: update.ID,
		Kind:         kind,
		Status:       update.ToStatus,
		ActorID:      update.ActorID,
		ActorRole:    update.ActorRole,
		Reason:       update.Reason,
		CreatedAt:    update.Now,
	}
	if err := appendHistory(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit status update: %w", err)
	}

	return nil
}

// ListStaleOrderIDs returns orders still awaiting confirmation created before
// the cutoff, for the lifecycle sweep.
func (r *Repository) ListStaleOrderIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	return r.listStaleIDs(ctx, "orders", domain.StatusAwaitingConfirmation, cutoff)
}

// ListStaleBookingIDs returns bookings still in requested state created before
// the cutoff, for the lifecycle sweep.
func (r *Repository) ListStaleBookingIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	return r.listStaleIDs(ctx, "bookings", domain.StatusRequested, cutoff)
}

func (r *Repository) listStaleIDs(ctx context.Context, table string, status domain.Status, cutoff time.Time) ([]uuid.UUID, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC`, table)

	rows, err := r.pool.Query(ctx, query, string(status), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale %s: %w", table, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stale %s id: %w", table, err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stale %s: %w", table, err)
	}

	return ids, nil
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation
}
