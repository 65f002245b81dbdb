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
)

const bookingConflictMsg = "the requested time slot overlaps an existing booking"

// bookingReleasedStatuses are the statuses that free a time slot. Every
// other status keeps blocking the interval, completed included: a booking
// finished ahead of schedule does not reopen its window.
const bookingReleasedStatuses = `('cancelled', 'no_show')`

const bookingColumns = `id, listing_id, buyer_id, seller_id, building_id, start_time, end_time,
	duration_minutes, location, buyer_notes, total_price, currency, status,
	cancellation_reason, created_at, confirmed_at, completed_at, cancelled_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.ListingID, &b.BuyerID, &b.SellerID, &b.BuildingID, &b.StartTime,
		&b.EndTime, &b.DurationMinutes, &b.Location, &b.BuyerNotes, &b.TotalPrice,
		&b.Currency, &b.Status, &b.CancellationReason,
		&b.CreatedAt, &b.ConfirmedAt, &b.CompletedAt, &b.CancelledAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking inserts a booking after re-checking slot availability inside
// the transaction. The check and insert share one transaction, and the
// database exclusion constraint backstops any race the check misses.
func (r *Repository) CreateBooking(ctx context.Context, booking *Booking, history HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	conflictQuery := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE listing_id = $1
			  AND status NOT IN ` + bookingReleasedStatuses + `
			  AND start_time < $3
			  AND end_time > $2
		)`

	var conflict bool
	err = tx.QueryRow(ctx, conflictQuery, booking.ListingID, booking.StartTime, booking.EndTime).Scan(&conflict)
	if err != nil {
		return fmt.Errorf("failed to check booking conflict: %w", err)
	}
	if conflict {
		return apperr.Conflict(bookingConflictMsg)
	}

	insertQuery := `
		INSERT INTO bookings (
			id, listing_id, buyer_id, seller_id, building_id, start_time, end_time,
			duration_minutes, location, buyer_notes, total_price, currency,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	_, err = tx.Exec(ctx, insertQuery,
		booking.ID, booking.ListingID, booking.BuyerID, booking.SellerID, booking.BuildingID,
		booking.StartTime, booking.EndTime, booking.DurationMinutes, booking.Location,
		booking.BuyerNotes, booking.TotalPrice, booking.Currency, booking.Status,
		booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		if isExclusionViolation(err) {
			return apperr.Conflict(bookingConflictMsg)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if err := appendHistory(ctx, tx, history); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			return apperr.Conflict(bookingConflictMsg)
		}
		return fmt.Errorf("failed to commit booking creation: %w", err)
	}

	return nil
}

// GetBookingByID retrieves a booking by its ID
func (r *Repository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(bookingNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return booking, nil
}

// ListBookingsForUser retrieves bookings where the user is a party, newest first.
func (r *Repository) ListBookingsForUser(ctx context.Context, params ListParams) ([]Booking, *ListResult, error) {
	baseQuery := `FROM bookings WHERE ` + partyFilter(params.Role, 1)
	args := []interface{}{params.UserID}
	if params.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, string(*params.Status))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, nil, fmt.Errorf("failed to count bookings: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	selectQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		bookingColumns, baseQuery, len(args)+1, len(args)+2)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var items []Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		items = append(items, *booking)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}

	return items, &ListResult{
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

// HasBookingConflict reports whether any slot-holding booking for the listing
// overlaps the half-open interval [start, end).
func (r *Repository) HasBookingConflict(ctx context.Context, listingID uuid.UUID, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE listing_id = $1
			  AND status NOT IN ` + bookingReleasedStatuses + `
			  AND start_time < $3
			  AND end_time > $2
		)`

	var conflict bool
	if err := r.pool.QueryRow(ctx, query, listingID, start, end).Scan(&conflict); err != nil {
		return false, fmt.Errorf("failed to check booking conflict: %w", err)
	}

	return conflict, nil
}

// BookedSlot is an occupied time range on a listing's calendar.
type BookedSlot struct {
	StartTime time.Time     `db:"start_time"`
	EndTime   time.Time     `db:"end_time"`
	Status    domain.Status `db:"status"`
}

// ListBookedSlots returns the occupied slots for a listing within [dayStart, dayEnd).
func (r *Repository) ListBookedSlots(ctx context.Context, listingID uuid.UUID, dayStart, dayEnd time.Time) ([]BookedSlot, error) {
	query := `
		SELECT start_time, end_time, status FROM bookings
		WHERE listing_id = $1
		  AND status NOT IN ` + bookingReleasedStatuses + `
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, query, listingID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list booked slots: %w", err)
	}
	defer rows.Close()

	var slots []BookedSlot
	for rows.Next() {
		var s BookedSlot
		if err := rows.Scan(&s.StartTime, &s.EndTime, &s.Status); err != nil {
			return nil, fmt.Errorf("failed to scan booked slot: %w", err)
		}
		slots = append(slots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booked slots: %w", err)
	}

	return slots, nil
}
