// Package domain holds the pure engagement rules: the status graphs for
// orders and bookings, role gating for transitions, interval overlap, and
// price derivation. Nothing here touches storage or transport.
package domain

import (
	"fmt"

	"marketplace_backend/platform/apperr"
)

// Kind discriminates the two engagement variants.
type Kind string

const (
	KindOrder   Kind = "order"
	KindBooking Kind = "booking"
)

// Status is an engagement lifecycle state. Orders and bookings share the
// type but walk different graphs.
type Status string

const (
	// Order states
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusReadyForPickup       Status = "ready_for_pickup"
	StatusOutForDelivery       Status = "out_for_delivery"
	StatusExpired              Status = "expired"

	// Booking states
	StatusRequested  Status = "requested"
	StatusInProgress Status = "in_progress"
	StatusNoShow     Status = "no_show"

	// Shared states
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Role is the requester's relationship to an engagement.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleSystem Role = "system"
)

// orderTransitions is the adjacency map of allowed order status changes.
// Terminal states have no entry.
var orderTransitions = map[Status][]Status{
	StatusAwaitingConfirmation: {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed:            {StatusReadyForPickup, StatusOutForDelivery, StatusCancelled},
	StatusReadyForPickup:       {StatusCompleted, StatusCancelled},
	StatusOutForDelivery:       {StatusCompleted, StatusCancelled},
}

// bookingTransitions is the adjacency map of allowed booking status changes.
var bookingTransitions = map[Status][]Status{
	StatusRequested:  {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// sellerOnlyStatuses are transition targets only the seller party may request.
var sellerOnlyStatuses = map[Status]bool{
	StatusConfirmed:      true,
	StatusReadyForPickup: true,
	StatusOutForDelivery: true,
	StatusInProgress:     true,
	StatusNoShow:         true,
}

// systemOnlyStatuses are transition targets only the lifecycle sweeper may request.
var systemOnlyStatuses = map[Status]bool{
	StatusExpired: true,
}

func transitions(kind Kind) map[Status][]Status {
	if kind == KindBooking {
		return bookingTransitions
	}
	return orderTransitions
}

// CanTransition reports whether the edge (from -> to) exists in the status
// graph for the given engagement kind.
func CanTransition(kind Kind, from, to Status) bool {
	for _, next := range transitions(kind)[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing edges for the kind.
func IsTerminal(kind Kind, status Status) bool {
	return len(transitions(kind)[status]) == 0
}

// slotReleasingStatuses are booking states that free the reserved interval.
// Completed bookings keep holding theirs: finishing early must not reopen
// a still-future window for rebooking.
var slotReleasingStatuses = map[Status]bool{
	StatusCancelled: true,
	StatusNoShow:    true,
}

// HoldsSlot reports whether a booking in this status still reserves its
// time interval for conflict checking.
func HoldsSlot(status Status) bool {
	return !slotReleasingStatuses[status]
}

// ValidateTransition checks a requested status change against the status
// graph and the requester's role. The caller has already established that
// the requester is a party of the engagement (or the system).
func ValidateTransition(kind Kind, current, next Status, role Role) error {
	if !CanTransition(kind, current, next) {
		return apperr.Conflict(fmt.Sprintf("cannot transition %s from %s to %s", kind, current, next))
	}
	if systemOnlyStatuses[next] && role != RoleSystem {
		return apperr.Forbidden(fmt.Sprintf("only the system may mark a %s as %s", kind, next))
	}
	if sellerOnlyStatuses[next] && role != RoleSeller && role != RoleSystem {
		return apperr.Forbidden(fmt.Sprintf("only the seller may mark a %s as %s", kind, next))
	}
	return nil
}
