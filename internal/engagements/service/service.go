// Package service implements the engagement lifecycle use cases: placing
// orders, requesting bookings, walking the status graphs, and expiring
// engagements the counterparty never confirmed.
package service

import (
	"context"
	"fmt"
	"time"

	"marketplace_backend/internal/engagements/domain"
	"marketplace_backend/internal/engagements/repository"
	"marketplace_backend/internal/engagements/transport"
	"marketplace_backend/internal/events"
	listingsrepo "marketplace_backend/internal/listings/repository"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/clock"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateOrder(ctx context.Context, order *repository.Order, history repository.HistoryEntry) error
	CreateBooking(ctx context.Context, booking *repository.Booking, history repository.HistoryEntry) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*repository.Order, error)
	GetBookingByID(ctx context.Context, id uuid.UUID) (*repository.Booking, error)
	ListOrdersForUser(ctx context.Context, params repository.ListParams) ([]repository.Order, *repository.ListResult, error)
	ListBookingsForUser(ctx context.Context, params repository.ListParams) ([]repository.Booking, *repository.ListResult, error)
	HasBookingConflict(ctx context.Context, listingID uuid.UUID, start, end time.Time) (bool, error)
	UpdateOrderStatus(ctx context.Context, update repository.StatusUpdate) error
	UpdateBookingStatus(ctx context.Context, update repository.StatusUpdate) error
	ListHistory(ctx context.Context, engagementID uuid.UUID) ([]repository.HistoryEntry, error)
	ListBookedSlots(ctx context.Context, listingID uuid.UUID, dayStart, dayEnd time.Time) ([]repository.BookedSlot, error)
	ListStaleOrderIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
	ListStaleBookingIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// ListingReader looks up the listing an engagement targets.
type ListingReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*listingsrepo.Listing, error)
}

// MembershipReader reports which buildings a user is a verified member of.
type MembershipReader interface {
	GetVerifiedBuildingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Service implements the engagement business logic
type Service struct {
	store    Store
	listings ListingReader
	members  MembershipReader
	bus      events.Bus
	clock    clock.Clock
	sweepCfg config.SweepConfig
	logger   *logger.Logger
}

// New creates a new engagements service
func New(store Store, listings ListingReader, members MembershipReader, bus events.Bus, clk clock.Clock, sweepCfg config.SweepConfig, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		listings: listings,
		members:  members,
		bus:      bus,
		clock:    clk,
		sweepCfg: sweepCfg,
		logger:   log,
	}
}

// resolveListing loads the listing and checks it can receive a new engagement
// of the wanted kind from this buyer.
func (s *Service) resolveListing(ctx context.Context, buyerID, listingID uuid.UUID, wantKind string) (*listingsrepo.Listing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if listing.Kind != wantKind {
		if wantKind == listingsrepo.KindProduct {
			return nil, apperr.Validation("listing is a service, request a booking instead")
		}
		return nil, apperr.Validation("listing is a product, place an order instead")
	}
	if listing.Status != listingsrepo.StatusActive {
		return nil, apperr.Validation("listing is not active")
	}
	if listing.SellerID == buyerID {
		return nil, apperr.Validation("cannot engage your own listing")
	}

	if err := s.requireMembership(ctx, buyerID, listing.BuildingID); err != nil {
		return nil, err
	}

	return listing, nil
}

func (s *Service) requireMembership(ctx context.Context, userID, buildingID uuid.UUID) error {
	buildingIDs, err := s.members.GetVerifiedBuildingIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve memberships: %w", err)
	}
	for _, id := range buildingIDs {
		if id == buildingID {
			return nil
		}
	}
	return apperr.Forbidden("you must be a verified member of the listing's building")
}

// CreateOrder places a product order on behalf of the buyer.
func (s *Service) CreateOrder(ctx context.Context, buyerID uuid.UUID, req transport.CreateOrderRequest) (*transport.OrderResponse, error) {
	listing, err := s.resolveListing(ctx, buyerID, req.ListingID, listingsrepo.KindProduct)
	if err != nil {
		return nil, err
	}

	switch req.DeliveryMethod {
	case transport.DeliveryMethodPickup:
		if req.PickupLocation == "" {
			return nil, apperr.Validation("pickupLocation is required for pickup orders")
		}
	case transport.DeliveryMethodDelivery:
		if req.DeliveryAddress == "" {
			return nil, apperr.Validation("deliveryAddress is required for delivery orders")
		}
	}

	now := s.clock.Now()
	if req.ScheduledFor != nil && !req.ScheduledFor.After(now) {
		return nil, apperr.Validation("scheduledFor must be in the future")
	}

	order := &repository.Order{
		ID:             uuid.New(),
		ListingID:      listing.ID,
		BuyerID:        buyerID,
		SellerID:       listing.SellerID,
		BuildingID:     listing.BuildingID,
		Quantity:       req.Quantity,
		DeliveryMethod: string(req.DeliveryMethod),
		ScheduledFor:   req.ScheduledFor,
		TotalPrice:     domain.OrderTotal(listing.UnitPrice, req.Quantity),
		Currency:       listing.Currency,
		Status:         domain.StatusAwaitingConfirmation,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.PickupLocation != "" {
		order.PickupLocation = &req.PickupLocation
	}
	if req.DeliveryAddress != "" {
		order.DeliveryAddress = &req.DeliveryAddress
	}

	history := repository.HistoryEntry{
		ID:           uuid.New(),
		EngagementID: order.ID,
		Kind:         domain.KindOrder,
		Status:       order.Status,
		ActorID:      &buyerID,
		ActorRole:    domain.RoleBuyer,
		CreatedAt:    now,
	}

	if err := s.store.CreateOrder(ctx, order, history); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.OrderCreated{
		BaseEvent:  events.NewBaseEvent(),
		OrderID:    order.ID,
		ListingID:  order.ListingID,
		BuildingID: order.BuildingID,
		BuyerID:    order.BuyerID,
		SellerID:   order.SellerID,
		TotalPrice: order.TotalPrice.StringFixed(2),
		Currency:   order.Currency,
	})

	s.logger.Info("order created",
		"order_id", order.ID.String(),
		"listing_id", order.ListingID.String(),
		"buyer_id", order.BuyerID.String(),
	)

	return orderToResponse(order, []repository.HistoryEntry{history}), nil
}

// CreateBooking requests a service booking on behalf of the buyer. Slot
// availability is checked transactionally by the store.
func (s *Service) CreateBooking(ctx context.Context, buyerID uuid.UUID, req transport.CreateBookingRequest) (*transport.BookingResponse, error) {
	listing, err := s.resolveListing(ctx, buyerID, req.ListingID, listingsrepo.KindService)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !req.StartTime.After(now) {
		return nil, apperr.Validation("startTime must be in the future")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, apperr.Validation("endTime must be after startTime")
	}

	span := req.EndTime.Sub(req.StartTime)
	declared := time.Duration(req.DurationMinutes) * time.Minute
	if diff := span - declared; diff < -time.Minute || diff > time.Minute {
		return nil, apperr.Validation("durationMinutes does not match the start and end times")
	}

	// Fast-fail on an obviously taken slot. The store repeats this check
	// inside the insert transaction to close the time-of-check race.
	conflict, err := s.store.HasBookingConflict(ctx, listing.ID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, apperr.Conflict("the requested time slot overlaps an existing booking")
	}

	booking := &repository.Booking{
		ID:              uuid.New(),
		ListingID:       listing.ID,
		BuyerID:         buyerID,
		SellerID:        listing.SellerID,
		BuildingID:      listing.BuildingID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		TotalPrice:      domain.BookingTotal(listing.UnitPrice, req.DurationMinutes),
		Currency:        listing.Currency,
		Status:          domain.StatusRequested,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Location != "" {
		booking.Location = &req.Location
	}
	if req.BuyerNotes != "" {
		booking.BuyerNotes = &req.BuyerNotes
	}

	history := repository.HistoryEntry{
		ID:           uuid.New(),
		EngagementID: booking.ID,
		Kind:         domain.KindBooking,
		Status:       booking.Status,
		ActorID:      &buyerID,
		ActorRole:    domain.RoleBuyer,
		CreatedAt:    now,
	}

	if err := s.store.CreateBooking(ctx, booking, history); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.BookingCreated{
		BaseEvent:  events.NewBaseEvent(),
		BookingID:  booking.ID,
		ListingID:  booking.ListingID,
		BuildingID: booking.BuildingID,
		BuyerID:    booking.BuyerID,
		SellerID:   booking.SellerID,
		StartTime:  booking.StartTime,
		EndTime:    booking.EndTime,
		TotalPrice: booking.TotalPrice.StringFixed(2),
		Currency:   booking.Currency,
	})

	s.logger.Info("booking created",
		"booking_id", booking.ID.String(),
		"listing_id", booking.ListingID.String(),
		"buyer_id", booking.BuyerID.String(),
	)

	return bookingToResponse(booking, []repository.HistoryEntry{history}), nil
}

// GetOrder returns an order with its history. Only the buyer or seller may view it.
func (s *Service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*transport.OrderResponse, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := partyRole(order.BuyerID, order.SellerID, userID); err != nil {
		return nil, err
	}

	history, err := s.store.ListHistory(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	return orderToResponse(order, history), nil
}

// GetBooking returns a booking with its history. Only the buyer or seller may view it.
func (s *Service) GetBooking(ctx context.Context, userID, bookingID uuid.UUID) (*transport.BookingResponse, error) {
	booking, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if _, err := partyRole(booking.BuyerID, booking.SellerID, userID); err != nil {
		return nil, err
	}

	history, err := s.store.ListHistory(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	return bookingToResponse(booking, history), nil
}

func normalizeListParams(userID uuid.UUID, req transport.ListEngagementsRequest) repository.ListParams {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return repository.ListParams{
		UserID:   userID,
		Role:     req.Role,
		Status:   req.Status,
		Page:     page,
		PageSize: pageSize,
	}
}

// ListOrders returns a page of the user's orders as buyer, seller, or either.
func (s *Service) ListOrders(ctx context.Context, userID uuid.UUID, req transport.ListEngagementsRequest) (*transport.OrderListResponse, error) {
	items, result, err := s.store.ListOrdersForUser(ctx, normalizeListParams(userID, req))
	if err != nil {
		return nil, err
	}

	resp := &transport.OrderListResponse{
		Items:      make([]transport.OrderResponse, 0, len(items)),
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}
	for i := range items {
		resp.Items = append(resp.Items, *orderToResponse(&items[i], nil))
	}
	return resp, nil
}

// ListBookings returns a page of the user's bookings as buyer, seller, or either.
func (s *Service) ListBookings(ctx context.Context, userID uuid.UUID, req transport.ListEngagementsRequest) (*transport.BookingListResponse, error) {
	items, result, err := s.store.ListBookingsForUser(ctx, normalizeListParams(userID, req))
	if err != nil {
		return nil, err
	}

	resp := &transport.BookingListResponse{
		Items:      make([]transport.BookingResponse, 0, len(items)),
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}
	for i := range items {
		resp.Items = append(resp.Items, *bookingToResponse(&items[i], nil))
	}
	return resp, nil
}

// GetBookedSlots returns the occupied intervals for a listing on a calendar
// day (UTC). Any authenticated member may call it when choosing a slot.
func (s *Service) GetBookedSlots(ctx context.Context, req transport.GetBookedSlotsRequest) (*transport.BookedSlotsResponse, error) {
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		return nil, apperr.Validation("listingId must be a valid UUID")
	}
	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, apperr.Validation("date must be formatted as YYYY-MM-DD")
	}

	dayStart := day.UTC()
	dayEnd := dayStart.Add(24 * time.Hour)

	slots, err := s.store.ListBookedSlots(ctx, listingID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	resp := &transport.BookedSlotsResponse{
		ListingID: listingID,
		Date:      req.Date,
		Slots:     make([]transport.BookedSlot, 0, len(slots)),
	}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, transport.BookedSlot{StartTime: s.StartTime, EndTime: s.EndTime})
	}
	return resp, nil
}

// partyRole maps a user to their role on an engagement, or a forbidden error
// when they are neither party.
func partyRole(buyerID, sellerID, userID uuid.UUID) (domain.Role, error) {
	switch userID {
	case buyerID:
		return domain.RoleBuyer, nil
	case sellerID:
		return domain.RoleSeller, nil
	default:
		return "", apperr.Forbidden("you are not a party to this engagement")
	}
}

func historyToResponse(entries []repository.HistoryEntry) []transport.HistoryEntryResponse {
	if len(entries) == 0 {
		return nil
	}
	out := make([]transport.HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, transport.HistoryEntryResponse{
			Status:    e.Status,
			ActorID:   e.ActorID,
			ActorRole: e.ActorRole,
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

func orderToResponse(o *repository.Order, history []repository.HistoryEntry) *transport.OrderResponse {
	return &transport.OrderResponse{
		ID:                 o.ID,
		ListingID:          o.ListingID,
		BuyerID:            o.BuyerID,
		SellerID:           o.SellerID,
		BuildingID:         o.BuildingID,
		Quantity:           o.Quantity,
		DeliveryMethod:     transport.DeliveryMethod(o.DeliveryMethod),
		PickupLocation:     o.PickupLocation,
		DeliveryAddress:    o.DeliveryAddress,
		ScheduledFor:       o.ScheduledFor,
		TotalPrice:         o.TotalPrice.StringFixed(2),
		Currency:           o.Currency,
		Status:             o.Status,
		CancellationReason: o.CancellationReason,
		CreatedAt:          o.CreatedAt,
		ConfirmedAt:        o.ConfirmedAt,
		CompletedAt:        o.CompletedAt,
		CancelledAt:        o.CancelledAt,
		History:            historyToResponse(history),
	}
}

func bookingToResponse(b *repository.Booking, history []repository.HistoryEntry) *transport.BookingResponse {
	return &transport.BookingResponse{
		ID:                 b.ID,
		ListingID:          b.ListingID,
		BuyerID:            b.BuyerID,
		SellerID:           b.SellerID,
		BuildingID:         b.BuildingID,
		StartTime:          b.StartTime,
		EndTime:            b.EndTime,
		DurationMinutes:    b.DurationMinutes,
		Location:           b.Location,
		BuyerNotes:         b.BuyerNotes,
		TotalPrice:         b.TotalPrice.StringFixed(2),
		Currency:           b.Currency,
		Status:             b.Status,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		ConfirmedAt:        b.ConfirmedAt,
		CompletedAt:        b.CompletedAt,
		CancelledAt:        b.CancelledAt,
		History:            historyToResponse(history),
	}
}
