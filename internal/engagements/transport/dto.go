package transport

import (
	"time"

	"marketplace_backend/internal/engagements/domain"

	"github.com/google/uuid"
)

// DeliveryMethod defines how an order is fulfilled
type DeliveryMethod string

const (
	DeliveryMethodPickup   DeliveryMethod = "pickup"
	DeliveryMethodDelivery DeliveryMethod = "delivery"
)

// CreateOrderRequest is the request body for placing an order
type CreateOrderRequest struct {
	ListingID       uuid.UUID      `json:"listingId" validate:"required"`
	Quantity        int            `json:"quantity" validate:"required,min=1,max=1000"`
	DeliveryMethod  DeliveryMethod `json:"deliveryMethod" validate:"required,oneof=pickup delivery"`
	PickupLocation  string         `json:"pickupLocation,omitempty" validate:"max=500"`
	DeliveryAddress string         `json:"deliveryAddress,omitempty" validate:"max=500"`
	ScheduledFor    *time.Time     `json:"scheduledFor,omitempty"`
}

// CreateBookingRequest is the request body for requesting a booking
type CreateBookingRequest struct {
	ListingID       uuid.UUID `json:"listingId" validate:"required"`
	StartTime       time.Time `json:"startTime" validate:"required"`
	EndTime         time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
	DurationMinutes int       `json:"durationMinutes" validate:"required,min=1,max=1440"`
	Location        string    `json:"location,omitempty" validate:"max=500"`
	BuyerNotes      string    `json:"buyerNotes,omitempty" validate:"max=2000"`
}

// UpdateOrderStatusRequest is the request body for an order status transition
type UpdateOrderStatusRequest struct {
	Status domain.Status `json:"status" validate:"required,oneof=confirmed ready_for_pickup out_for_delivery completed cancelled"`
	Reason *string       `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// UpdateBookingStatusRequest is the request body for a booking status transition
type UpdateBookingStatusRequest struct {
	Status domain.Status `json:"status" validate:"required,oneof=confirmed in_progress completed cancelled no_show"`
	Reason *string       `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// CancelRequest is the request body for the cancel convenience endpoints
type CancelRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// ListEngagementsRequest is the query parameters for listing orders or bookings
type ListEngagementsRequest struct {
	Role     string         `form:"role" validate:"omitempty,oneof=buyer seller"`
	Status   *domain.Status `form:"status"`
	Page     int            `form:"page"`
	PageSize int            `form:"pageSize"`
}

// GetBookedSlotsRequest is the query parameters for the booked-slots endpoint
type GetBookedSlotsRequest struct {
	ListingID string `form:"listingId" validate:"required,uuid"`
	Date      string `form:"date" validate:"required"` // 2006-01-02
}

// HistoryEntryResponse is one append-only record of a completed transition
type HistoryEntryResponse struct {
	Status    domain.Status `json:"status"`
	ActorID   *uuid.UUID    `json:"actorId,omitempty"`
	ActorRole domain.Role   `json:"actorRole"`
	Reason    *string       `json:"reason,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// OrderResponse is the response body for an order
type OrderResponse struct {
	ID                 uuid.UUID              `json:"id"`
	ListingID          uuid.UUID              `json:"listingId"`
	BuyerID            uuid.UUID              `json:"buyerId"`
	SellerID           uuid.UUID              `json:"sellerId"`
	BuildingID         uuid.UUID              `json:"buildingId"`
	Quantity           int                    `json:"quantity"`
	DeliveryMethod     DeliveryMethod         `json:"deliveryMethod"`
	PickupLocation     *string                `json:"pickupLocation,omitempty"`
	DeliveryAddress    *string                `json:"deliveryAddress,omitempty"`
	ScheduledFor       *time.Time             `json:"scheduledFor,omitempty"`
	TotalPrice         string                 `json:"totalPrice"`
	Currency           string                 `json:"currency"`
	Status             domain.Status          `json:"status"`
	CancellationReason *string                `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
	ConfirmedAt        *time.Time             `json:"confirmedAt,omitempty"`
	CompletedAt        *time.Time             `json:"completedAt,omitempty"`
	CancelledAt        *time.Time             `json:"cancelledAt,omitempty"`
	History            []HistoryEntryResponse `json:"history,omitempty"`
}

// BookingResponse is the response body for a booking
type BookingResponse struct {
	ID                 uuid.UUID              `json:"id"`
	ListingID          uuid.UUID              `json:"listingId"`
	BuyerID            uuid.UUID              `json:"buyerId"`
	SellerID           uuid.UUID              `json:"sellerId"`
	BuildingID         uuid.UUID              `json:"buildingId"`
	StartTime          time.Time              `json:"startTime"`
	EndTime            time.Time              `json:"endTime"`
	DurationMinutes    int                    `json:"durationMinutes"`
	Location           *string                `json:"location,omitempty"`
	BuyerNotes         *string                `json:"buyerNotes,omitempty"`
	TotalPrice         string                 `json:"totalPrice"`
	Currency           string                 `json:"currency"`
	Status             domain.Status          `json:"status"`
	CancellationReason *string                `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
	ConfirmedAt        *time.Time             `json:"confirmedAt,omitempty"`
	CompletedAt        *time.Time             `json:"completedAt,omitempty"`
	CancelledAt        *time.Time             `json:"cancelledAt,omitempty"`
	History            []HistoryEntryResponse `json:"history,omitempty"`
}

// OrderListResponse is the paginated response for listing orders
type OrderListResponse struct {
	Items      []OrderResponse `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}

// BookingListResponse is the paginated response for listing bookings
type BookingListResponse struct {
	Items      []BookingResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

// BookedSlot is one occupied interval on a listing's calendar
type BookedSlot struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// BookedSlotsResponse lists the occupied intervals for a listing on a date;
// callers derive free windows themselves.
type BookedSlotsResponse struct {
	ListingID uuid.UUID    `json:"listingId"`
	Date      string       `json:"date"`
	Slots     []BookedSlot `json:"slots"`
}
