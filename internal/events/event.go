// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"marketplace_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Engagement Domain Events
// =============================================================================

// OrderCreated is published when a buyer places a new order.
type OrderCreated struct {
	BaseEvent
	OrderID    uuid.UUID `json:"orderId"`
	ListingID  uuid.UUID `json:"listingId"`
	BuildingID uuid.UUID `json:"buildingId"`
	BuyerID    uuid.UUID `json:"buyerId"`
	SellerID   uuid.UUID `json:"sellerId"`
	TotalPrice string    `json:"totalPrice"`
	Currency   string    `json:"currency"`
}

func (e OrderCreated) EventName() string { return "engagements.order.created" }

// BookingCreated is published when a buyer requests a new booking.
type BookingCreated struct {
	BaseEvent
	BookingID  uuid.UUID `json:"bookingId"`
	ListingID  uuid.UUID `json:"listingId"`
	BuildingID uuid.UUID `json:"buildingId"`
	BuyerID    uuid.UUID `json:"buyerId"`
	SellerID   uuid.UUID `json:"sellerId"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	TotalPrice string    `json:"totalPrice"`
	Currency   string    `json:"currency"`
}

func (e BookingCreated) EventName() string { return "engagements.booking.created" }

// EngagementStatusChanged is published after any order or booking transition
// commits. Kind is "order" or "booking"; ActorID is nil for system-initiated
// transitions.
type EngagementStatusChanged struct {
	BaseEvent
	EngagementID uuid.UUID  `json:"engagementId"`
	Kind         string     `json:"kind"`
	BuyerID      uuid.UUID  `json:"buyerId"`
	SellerID     uuid.UUID  `json:"sellerId"`
	OldStatus    string     `json:"oldStatus"`
	NewStatus    string     `json:"newStatus"`
	ActorID      *uuid.UUID `json:"actorId,omitempty"`
	ActorRole    string     `json:"actorRole"`
	Reason       *string    `json:"reason,omitempty"`
}

func (e EngagementStatusChanged) EventName() string { return "engagements.status.changed" }

// BookingReminderDue is published by the scheduler worker when a confirmed
// booking's reminder time arrives.
type BookingReminderDue struct {
	BaseEvent
	BookingID uuid.UUID `json:"bookingId"`
	ListingID uuid.UUID `json:"listingId"`
	BuyerID   uuid.UUID `json:"buyerId"`
	SellerID  uuid.UUID `json:"sellerId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

func (e BookingReminderDue) EventName() string { return "engagements.booking.reminder_due" }

// ChatThreadRequested is published when an engagement is confirmed so the
// messaging system can open a thread between the two parties.
type ChatThreadRequested struct {
	BaseEvent
	EngagementID uuid.UUID `json:"engagementId"`
	Kind         string    `json:"kind"`
	BuyerID      uuid.UUID `json:"buyerId"`
	SellerID     uuid.UUID `json:"sellerId"`
}

func (e ChatThreadRequested) EventName() string { return "engagements.chat_thread.requested" }
