package service

import (
	"context"

	"marketplace_backend/internal/engagements/domain"
	"marketplace_backend/internal/engagements/repository"
	"marketplace_backend/internal/engagements/transport"
	"marketplace_backend/internal/events"

	"github.com/google/uuid"
)

// UpdateOrderStatus transitions an order on behalf of a party. Requesting the
// status the order already has is a no-op and returns the current state.
func (s *Service) UpdateOrderStatus(ctx context.Context, actorID, orderID uuid.UUID, next domain.Status, reason *string) (*transport.OrderResponse, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	role, err := partyRole(order.BuyerID, order.SellerID, actorID)
	if err != nil {
		return nil, err
	}

	return s.applyOrderTransition(ctx, order, next, reason, &actorID, role)
}

// UpdateBookingStatus transitions a booking on behalf of a party.
func (s *Service) UpdateBookingStatus(ctx context.Context, actorID, bookingID uuid.UUID, next domain.Status, reason *string) (*transport.BookingResponse, error) {
	booking, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	role, err := partyRole(booking.BuyerID, booking.SellerID, actorID)
	if err != nil {
		return nil, err
	}

	return s.applyBookingTransition(ctx, booking, next, reason, &actorID, role)
}

// ExpireOrder moves a stale order to expired on behalf of the system. Only
// the lifecycle sweeper calls this.
func (s *Service) ExpireOrder(ctx context.Context, orderID uuid.UUID, reason string) error {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	_, err = s.applyOrderTransition(ctx, order, domain.StatusExpired, &reason, nil, domain.RoleSystem)
	return err
}

// CancelStaleBooking cancels a booking the seller never confirmed, on behalf
// of the system.
func (s *Service) CancelStaleBooking(ctx context.Context, bookingID uuid.UUID, reason string) error {
	booking, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return err
	}
	_, err = s.applyBookingTransition(ctx, booking, domain.StatusCancelled, &reason, nil, domain.RoleSystem)
	return err
}

func (s *Service) applyOrderTransition(ctx context.Context, order *repository.Order, next domain.Status, reason *string, actorID *uuid.UUID, role domain.Role) (*transport.OrderResponse, error) {
	if order.Status == next {
		return orderToResponse(order, nil), nil
	}
	if err := domain.ValidateTransition(domain.KindOrder, order.Status, next, role); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	update := repository.StatusUpdate{
		ID:         order.ID,
		FromStatus: order.Status,
		ToStatus:   next,
		Reason:     reason,
		ActorID:    actorID,
		ActorRole:  role,
		Now:        now,
	}
	if err := s.store.UpdateOrderStatus(ctx, update); err != nil {
		return nil, err
	}

	oldStatus := order.Status
	order.Status = next
	order.UpdatedAt = now
	switch next {
	case domain.StatusConfirmed:
		order.ConfirmedAt = &now
	case domain.StatusCompleted:
		order.CompletedAt = &now
	case domain.StatusCancelled, domain.StatusExpired:
		order.CancelledAt = &now
		order.CancellationReason = reason
	}

	s.publishStatusChanged(ctx, domain.KindOrder, order.ID, order.BuyerID, order.SellerID, oldStatus, next, actorID, role, reason)

	s.logger.Info("order status changed",
		"order_id", order.ID.String(),
		"old_status", string(oldStatus),
		"new_status", string(next),
		"actor_role", string(role),
	)

	return orderToResponse(order, nil), nil
}

func (s *Service) applyBookingTransition(ctx context.Context, booking *repository.Booking, next domain.Status, reason *string, actorID *uuid.UUID, role domain.Role) (*transport.BookingResponse, error) {
	if booking.Status == next {
		return bookingToResponse(booking, nil), nil
	}
	if err := domain.ValidateTransition(domain.KindBooking, booking.Status, next, role); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	update := repository.StatusUpdate{
		ID:         booking.ID,
		FromStatus: booking.Status,
		ToStatus:   next,
		Reason:     reason,
		ActorID:    actorID,
		ActorRole:  role,
		Now:        now,
	}
	if err := s.store.UpdateBookingStatus(ctx, update); err != nil {
		return nil, err
	}

	oldStatus := booking.Status
	booking.Status = next
	booking.UpdatedAt = now
	switch next {
	case domain.StatusConfirmed:
		booking.ConfirmedAt = &now
	case domain.StatusCompleted:
		booking.CompletedAt = &now
	case domain.StatusCancelled, domain.StatusNoShow:
		booking.CancelledAt = &now
		booking.CancellationReason = reason
	}

	s.publishStatusChanged(ctx, domain.KindBooking, booking.ID, booking.BuyerID, booking.SellerID, oldStatus, next, actorID, role, reason)

	s.logger.Info("booking status changed",
		"booking_id", booking.ID.String(),
		"old_status", string(oldStatus),
		"new_status", string(next),
		"actor_role", string(role),
	)

	return bookingToResponse(booking, nil), nil
}

func (s *Service) publishStatusChanged(ctx context.Context, kind domain.Kind, id, buyerID, sellerID uuid.UUID, oldStatus, newStatus domain.Status, actorID *uuid.UUID, role domain.Role, reason *string) {
	s.bus.Publish(ctx, events.EngagementStatusChanged{
		BaseEvent:    events.NewBaseEvent(),
		EngagementID: id,
		Kind:         string(kind),
		BuyerID:      buyerID,
		SellerID:     sellerID,
		OldStatus:    string(oldStatus),
		NewStatus:    string(newStatus),
		ActorID:      actorID,
		ActorRole:    string(role),
		Reason:       reason,
	})

	if newStatus == domain.StatusConfirmed {
		s.bus.Publish(ctx, events.ChatThreadRequested{
			BaseEvent:    events.NewBaseEvent(),
			EngagementID: id,
			Kind:         string(kind),
			BuyerID:      buyerID,
			SellerID:     sellerID,
		})
	}
}

// Convenience wrappers over the generic transition path. The seller-only and
// system-only rules are enforced by the domain layer, not repeated here.

func (s *Service) ConfirmOrder(ctx context.Context, actorID, orderID uuid.UUID) (*transport.OrderResponse, error) {
	return s.UpdateOrderStatus(ctx, actorID, orderID, domain.StatusConfirmed, nil)
}

func (s *Service) CancelOrder(ctx context.Context, actorID, orderID uuid.UUID, reason *string) (*transport.OrderResponse, error) {
	return s.UpdateOrderStatus(ctx, actorID, orderID, domain.StatusCancelled, reason)
}

func (s *Service) CompleteOrder(ctx context.Context, actorID, orderID uuid.UUID) (*transport.OrderResponse, error) {
	return s.UpdateOrderStatus(ctx, actorID, orderID, domain.StatusCompleted, nil)
}

func (s *Service) MarkReadyForPickup(ctx context.Context, actorID, orderID uuid.UUID) (*transport.OrderResponse, error) {
	return s.UpdateOrderStatus(ctx, actorID, orderID, domain.StatusReadyForPickup, nil)
}

func (s *Service) MarkOutForDelivery(ctx context.Context, actorID, orderID uuid.UUID) (*transport.OrderResponse, error) {
	return s.UpdateOrderStatus(ctx, actorID, orderID, domain.StatusOutForDelivery, nil)
}

func (s *Service) ConfirmBooking(ctx context.Context, actorID, bookingID uuid.UUID) (*transport.BookingResponse, error) {
	return s.UpdateBookingStatus(ctx, actorID, bookingID, domain.StatusConfirmed, nil)
}

func (s *Service) CancelBooking(ctx context.Context, actorID, bookingID uuid.UUID, reason *string) (*transport.BookingResponse, error) {
	return s.UpdateBookingStatus(ctx, actorID, bookingID, domain.StatusCancelled, reason)
}

func (s *Service) CompleteBooking(ctx context.Context, actorID, bookingID uuid.UUID) (*transport.BookingResponse, error) {
	return s.UpdateBookingStatus(ctx, actorID, bookingID, domain.StatusCompleted, nil)
}

func (s *Service) StartBooking(ctx context.Context, actorID, bookingID uuid.UUID) (*transport.BookingResponse, error) {
	return s.UpdateBookingStatus(ctx, actorID, bookingID, domain.StatusInProgress, nil)
}

func (s *Service) MarkNoShow(ctx context.Context, actorID, bookingID uuid.UUID, reason *string) (*transport.BookingResponse, error) {
	return s.UpdateBookingStatus(ctx, actorID, bookingID, domain.StatusNoShow, reason)
}
