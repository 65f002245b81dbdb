package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace_backend/internal/engagements/domain"
	"marketplace_backend/internal/engagements/repository"
	"marketplace_backend/internal/engagements/transport"
	"marketplace_backend/internal/events"
	listingsrepo "marketplace_backend/internal/listings/repository"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/clock"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeStore keeps engagements in memory and mimics the repository's
// transactional guarantees closely enough for service-level tests.
type fakeStore struct {
	orders   map[uuid.UUID]*repository.Order
	bookings map[uuid.UUID]*repository.Booking
	history  map[uuid.UUID][]repository.HistoryEntry

	// orderUpdateErrs injects per-order failures into UpdateOrderStatus.
	orderUpdateErrs map[uuid.UUID]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:          make(map[uuid.UUID]*repository.Order),
		bookings:        make(map[uuid.UUID]*repository.Booking),
		history:         make(map[uuid.UUID][]repository.HistoryEntry),
		orderUpdateErrs: make(map[uuid.UUID]error),
	}
}

func (f *fakeStore) CreateOrder(_ context.Context, order *repository.Order, h repository.HistoryEntry) error {
	cp := *order
	f.orders[order.ID] = &cp
	f.history[order.ID] = append(f.history[order.ID], h)
	return nil
}

func (f *fakeStore) CreateBooking(_ context.Context, booking *repository.Booking, h repository.HistoryEntry) error {
	for _, existing := range f.bookings {
		if existing.ListingID != booking.ListingID {
			continue
		}
		if !domain.HoldsSlot(existing.Status) {
			continue
		}
		if domain.Overlaps(existing.StartTime, existing.EndTime, booking.StartTime, booking.EndTime) {
			return apperr.Conflict("the requested time slot overlaps an existing booking")
		}
	}
	cp := *booking
	f.bookings[booking.ID] = &cp
	f.history[booking.ID] = append(f.history[booking.ID], h)
	return nil
}

func (f *fakeStore) GetOrderByID(_ context.Context, id uuid.UUID) (*repository.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, apperr.NotFound("order not found")
	}
	cp := *order
	return &cp, nil
}

func (f *fakeStore) GetBookingByID(_ context.Context, id uuid.UUID) (*repository.Booking, error) {
	booking, ok := f.bookings[id]
	if !ok {
		return nil, apperr.NotFound("booking not found")
	}
	cp := *booking
	return &cp, nil
}

func (f *fakeStore) ListOrdersForUser(_ context.Context, params repository.ListParams) ([]repository.Order, *repository.ListResult, error) {
	var items []repository.Order
	for _, o := range f.orders {
		if !matchesParty(params, o.BuyerID, o.SellerID) {
			continue
		}
		if params.Status != nil && o.Status != *params.Status {
			continue
		}
		items = append(items, *o)
	}
	return items, &repository.ListResult{Total: len(items), Page: params.Page, PageSize: params.PageSize, TotalPages: 1}, nil
}

func (f *fakeStore) ListBookingsForUser(_ context.Context, params repository.ListParams) ([]repository.Booking, *repository.ListResult, error) {
	var items []repository.Booking
	for _, b := range f.bookings {
		if !matchesParty(params, b.BuyerID, b.SellerID) {
			continue
		}
		if params.Status != nil && b.Status != *params.Status {
			continue
		}
		items = append(items, *b)
	}
	return items, &repository.ListResult{Total: len(items), Page: params.Page, PageSize: params.PageSize, TotalPages: 1}, nil
}

func matchesParty(params repository.ListParams, buyerID, sellerID uuid.UUID) bool {
	switch params.Role {
	case "buyer":
		return buyerID == params.UserID
	case "seller":
		return sellerID == params.UserID
	default:
		return buyerID == params.UserID || sellerID == params.UserID
	}
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, update repository.StatusUpdate) error {
	if err := f.orderUpdateErrs[update.ID]; err != nil {
		return err
	}
	order, ok := f.orders[update.ID]
	if !ok || order.Status != update.FromStatus {
		return apperr.Conflict("engagement status changed concurrently, retry with current state")
	}
	order.Status = update.ToStatus
	f.history[update.ID] = append(f.history[update.ID], repository.HistoryEntry{
		ID:           uuid.New(),
		EngagementID: update.ID,
		Kind:         domain.KindOrder,
		Status:       update.ToStatus,
		ActorID:      update.ActorID,
		ActorRole:    update.ActorRole,
		Reason:       update.Reason,
		CreatedAt:    update.Now,
	})
	return nil
}

func (f *fakeStore) UpdateBookingStatus(_ context.Context, update repository.StatusUpdate) error {
	booking, ok := f.bookings[update.ID]
	if !ok || booking.Status != update.FromStatus {
		return apperr.Conflict("engagement status changed concurrently, retry with current state")
	}
	booking.Status = update.ToStatus
	f.history[update.ID] = append(f.history[update.ID], repository.HistoryEntry{
		ID:           uuid.New(),
		EngagementID: update.ID,
		Kind:         domain.KindBooking,
		Status:       update.ToStatus,
		ActorID:      update.ActorID,
		ActorRole:    update.ActorRole,
		Reason:       update.Reason,
		CreatedAt:    update.Now,
	})
	return nil
}

func (f *fakeStore) HasBookingConflict(_ context.Context, listingID uuid.UUID, start, end time.Time) (bool, error) {
	for _, b := range f.bookings {
		if b.ListingID != listingID || !domain.HoldsSlot(b.Status) {
			continue
		}
		if domain.Overlaps(b.StartTime, b.EndTime, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListHistory(_ context.Context, id uuid.UUID) ([]repository.HistoryEntry, error) {
	return f.history[id], nil
}

func (f *fakeStore) ListBookedSlots(_ context.Context, listingID uuid.UUID, dayStart, dayEnd time.Time) ([]repository.BookedSlot, error) {
	var slots []repository.BookedSlot
	for _, b := range f.bookings {
		if b.ListingID != listingID || !domain.HoldsSlot(b.Status) {
			continue
		}
		if domain.Overlaps(b.StartTime, b.EndTime, dayStart, dayEnd) {
			slots = append(slots, repository.BookedSlot{StartTime: b.StartTime, EndTime: b.EndTime, Status: b.Status})
		}
	}
	return slots, nil
}

func (f *fakeStore) ListStaleOrderIDs(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, o := range f.orders {
		if o.Status == domain.StatusAwaitingConfirmation && o.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) ListStaleBookingIDs(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, b := range f.bookings {
		if b.Status == domain.StatusRequested && b.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeListings struct {
	listings map[uuid.UUID]*listingsrepo.Listing
}

func (f *fakeListings) GetByID(_ context.Context, id uuid.UUID) (*listingsrepo.Listing, error) {
	listing, ok := f.listings[id]
	if !ok {
		return nil, apperr.NotFound("listing not found")
	}
	return listing, nil
}

type fakeMembers struct {
	memberships map[uuid.UUID][]uuid.UUID
}

func (f *fakeMembers) GetVerifiedBuildingIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return f.memberships[userID], nil
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	var out []string
	for _, e := range b.published {
		out = append(out, e.EventName())
	}
	return out
}

type fakeSweepConfig struct {
	interval   time.Duration
	orderTTL   time.Duration
	bookingTTL time.Duration
}

func (c fakeSweepConfig) GetSweepInterval() time.Duration     { return c.interval }
func (c fakeSweepConfig) GetOrderConfirmTTL() time.Duration   { return c.orderTTL }
func (c fakeSweepConfig) GetBookingConfirmTTL() time.Duration { return c.bookingTTL }

type fixture struct {
	svc      *Service
	store    *fakeStore
	bus      *recordingBus
	clk      *clock.Fixed
	buyerID  uuid.UUID
	sellerID uuid.UUID
	building uuid.UUID
	product  uuid.UUID
	service  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	buyerID := uuid.New()
	sellerID := uuid.New()
	buildingID := uuid.New()
	productID := uuid.New()
	serviceID := uuid.New()

	listings := &fakeListings{listings: map[uuid.UUID]*listingsrepo.Listing{
		productID: {
			ID:         productID,
			BuildingID: buildingID,
			SellerID:   sellerID,
			Kind:       listingsrepo.KindProduct,
			Status:     listingsrepo.StatusActive,
			Title:      "Sourdough loaf",
			UnitPrice:  decimal.RequireFromString("4.50"),
			Currency:   "EUR",
		},
		serviceID: {
			ID:         serviceID,
			BuildingID: buildingID,
			SellerID:   sellerID,
			Kind:       listingsrepo.KindService,
			Status:     listingsrepo.StatusActive,
			Title:      "Dog walking",
			UnitPrice:  decimal.RequireFromString("18.00"),
			Currency:   "EUR",
		},
	}}

	members := &fakeMembers{memberships: map[uuid.UUID][]uuid.UUID{
		buyerID:  {buildingID},
		sellerID: {buildingID},
	}}

	store := newFakeStore()
	bus := &recordingBus{}
	clk := &clock.Fixed{Time: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)}
	cfg := fakeSweepConfig{interval: time.Hour, orderTTL: 48 * time.Hour, bookingTTL: 24 * time.Hour}

	svc := New(store, listings, members, bus, clk, cfg, logger.New("development"))

	return &fixture{
		svc:      svc,
		store:    store,
		bus:      bus,
		clk:      clk,
		buyerID:  buyerID,
		sellerID: sellerID,
		building: buildingID,
		product:  productID,
		service:  serviceID,
	}
}

func (f *fixture) placeOrder(t *testing.T) *transport.OrderResponse {
	t.Helper()
	resp, err := f.svc.CreateOrder(context.Background(), f.buyerID, transport.CreateOrderRequest{
		ListingID:      f.product,
		Quantity:       3,
		DeliveryMethod: transport.DeliveryMethodPickup,
		PickupLocation: "Lobby, Building A",
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	return resp
}

func (f *fixture) requestBooking(t *testing.T, startOffset time.Duration) *transport.BookingResponse {
	t.Helper()
	start := f.clk.Now().Add(startOffset)
	resp, err := f.svc.CreateBooking(context.Background(), f.buyerID, transport.CreateBookingRequest{
		ListingID:       f.service,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}
	return resp
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)

	resp := f.placeOrder(t)

	if resp.Status != domain.StatusAwaitingConfirmation {
		t.Errorf("status = %s, want %s", resp.Status, domain.StatusAwaitingConfirmation)
	}
	if resp.TotalPrice != "13.50" {
		t.Errorf("totalPrice = %s, want 13.50", resp.TotalPrice)
	}
	if resp.SellerID != f.sellerID {
		t.Errorf("sellerID = %s, want %s", resp.SellerID, f.sellerID)
	}
	if len(resp.History) != 1 || resp.History[0].ActorRole != domain.RoleBuyer {
		t.Errorf("history = %+v, want one buyer entry", resp.History)
	}
	if got := f.bus.names(); len(got) != 1 || got[0] != "engagements.order.created" {
		t.Errorf("published events = %v, want [engagements.order.created]", got)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	past := f.clk.Now().Add(-time.Hour)
	stranger := uuid.New()

	tests := []struct {
		name     string
		buyerID  uuid.UUID
		req      transport.CreateOrderRequest
		wantKind apperr.Kind
	}{
		{
			name:    "unknown listing",
			buyerID: f.buyerID,
			req: transport.CreateOrderRequest{
				ListingID: uuid.New(), Quantity: 1,
				DeliveryMethod: transport.DeliveryMethodPickup, PickupLocation: "Lobby",
			},
			wantKind: apperr.KindNotFound,
		},
		{
			name:    "service listing rejected",
			buyerID: f.buyerID,
			req: transport.CreateOrderRequest{
				ListingID: f.service, Quantity: 1,
				DeliveryMethod: transport.DeliveryMethodPickup, PickupLocation: "Lobby",
			},
			wantKind: apperr.KindValidation,
		},
		{
			name:    "seller ordering own listing",
			buyerID: f.sellerID,
			req: transport.CreateOrderRequest{
				ListingID: f.product, Quantity: 1,
				DeliveryMethod: transport.DeliveryMethodPickup, PickupLocation: "Lobby",
			},
			wantKind: apperr.KindValidation,
		},
		{
			name:    "non-member buyer",
			buyerID: stranger,
			req: transport.CreateOrderRequest{
				ListingID: f.product, Quantity: 1,
				DeliveryMethod: transport.DeliveryMethodPickup, PickupLocation: "Lobby",
			},
			wantKind: apperr.KindForbidden,
		},
		{
			name:    "pickup without location",
			buyerID: f.buyerID,
			req: transport.CreateOrderRequest{
				ListingID: f.product, Quantity: 1,
				DeliveryMethod: transport.DeliveryMethodPickup,
			},
			wantKind: apperr.KindValidation,
		},
		{
			name:    "delivery without address",
			buyerID: f.buyerID,
			req: transport.CreateOrderRequest{
				ListingID: f.product, Quantity: 1,
				DeliveryMethod: transport.DeliveryMethodDelivery,
			},
			wantKind: apperr.KindValidation,
		},
		{
			name:    "scheduledFor in the past",
			buyerID: f.buyerID,
			req: transport.CreateOrderRequest{
				ListingID: f.product, Quantity: 1,
				DeliveryMethod: transport.DeliveryMethodPickup, PickupLocation: "Lobby",
				ScheduledFor: &past,
			},
			wantKind: apperr.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(context.Background(), tt.buyerID, tt.req)
			if apperr.GetKind(err) != tt.wantKind {
				t.Errorf("error kind = %v, want %v (err: %v)", apperr.GetKind(err), tt.wantKind, err)
			}
		})
	}
}

func TestCreateBooking(t *testing.T) {
	f := newFixture(t)

	resp := f.requestBooking(t, 24*time.Hour)

	if resp.Status != domain.StatusRequested {
		t.Errorf("status = %s, want %s", resp.Status, domain.StatusRequested)
	}
	if resp.TotalPrice != "18.00" {
		t.Errorf("totalPrice = %s, want 18.00", resp.TotalPrice)
	}
}

func TestCreateBookingOverlapConflict(t *testing.T) {
	f := newFixture(t)
	first := f.requestBooking(t, 24*time.Hour)

	// Second request overlaps the first by 30 minutes.
	start := first.StartTime.Add(30 * time.Minute)
	_, err := f.svc.CreateBooking(context.Background(), f.buyerID, transport.CreateBookingRequest{
		ListingID:       f.service,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		DurationMinutes: 60,
	})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("error kind = %v, want conflict (err: %v)", apperr.GetKind(err), err)
	}

	// Back-to-back slot sharing only the boundary instant is allowed.
	_, err = f.svc.CreateBooking(context.Background(), f.buyerID, transport.CreateBookingRequest{
		ListingID:       f.service,
		StartTime:       first.EndTime,
		EndTime:         first.EndTime.Add(time.Hour),
		DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("adjacent booking error = %v, want nil", err)
	}
}

func TestCreateBookingCancelledSlotReleased(t *testing.T) {
	f := newFixture(t)
	first := f.requestBooking(t, 24*time.Hour)

	if _, err := f.svc.CancelBooking(context.Background(), f.buyerID, first.ID, nil); err != nil {
		t.Fatalf("CancelBooking() error = %v", err)
	}

	// Same slot is free again after cancellation.
	_, err := f.svc.CreateBooking(context.Background(), f.buyerID, transport.CreateBookingRequest{
		ListingID:       f.service,
		StartTime:       first.StartTime,
		EndTime:         first.EndTime,
		DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("rebooking cancelled slot error = %v, want nil", err)
	}
}

func TestCreateBookingCompletedSlotStillBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.requestBooking(t, 24*time.Hour)

	// Seller walks the booking to completed well before its start time.
	if _, err := f.svc.ConfirmBooking(ctx, f.sellerID, first.ID); err != nil {
		t.Fatalf("ConfirmBooking() error = %v", err)
	}
	if _, err := f.svc.StartBooking(ctx, f.sellerID, first.ID); err != nil {
		t.Fatalf("StartBooking() error = %v", err)
	}
	if _, err := f.svc.CompleteBooking(ctx, f.sellerID, first.ID); err != nil {
		t.Fatalf("CompleteBooking() error = %v", err)
	}

	// The future interval stays taken; early completion does not free it.
	start := first.StartTime.Add(30 * time.Minute)
	_, err := f.svc.CreateBooking(ctx, f.buyerID, transport.CreateBookingRequest{
		ListingID:       f.service,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		DurationMinutes: 60,
	})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("rebooking completed slot error kind = %v, want conflict (err: %v)", apperr.GetKind(err), err)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)
	now := f.clk.Now()

	tests := []struct {
		name string
		req  transport.CreateBookingRequest
	}{
		{
			name: "start in the past",
			req: transport.CreateBookingRequest{
				ListingID: f.service,
				StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour),
				DurationMinutes: 120,
			},
		},
		{
			name: "duration mismatch",
			req: transport.CreateBookingRequest{
				ListingID: f.service,
				StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour),
				DurationMinutes: 90,
			},
		},
		{
			name: "product listing rejected",
			req: transport.CreateBookingRequest{
				ListingID: f.product,
				StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour),
				DurationMinutes: 60,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateBooking(context.Background(), f.buyerID, tt.req)
			if apperr.GetKind(err) != apperr.KindValidation {
				t.Errorf("error kind = %v, want validation (err: %v)", apperr.GetKind(err), err)
			}
		})
	}
}

func TestOrderTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t)

	// Buyer cannot confirm their own order.
	if _, err := f.svc.ConfirmOrder(ctx, f.buyerID, order.ID); apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("buyer confirm error kind = %v, want forbidden", apperr.GetKind(err))
	}

	// A stranger is not a party at all.
	if _, err := f.svc.ConfirmOrder(ctx, uuid.New(), order.ID); apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("stranger confirm error kind = %v, want forbidden", apperr.GetKind(err))
	}

	confirmed, err := f.svc.ConfirmOrder(ctx, f.sellerID, order.ID)
	if err != nil {
		t.Fatalf("ConfirmOrder() error = %v", err)
	}
	if confirmed.Status != domain.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", confirmed.Status)
	}
	if confirmed.ConfirmedAt == nil {
		t.Error("confirmedAt not set")
	}

	ready, err := f.svc.MarkReadyForPickup(ctx, f.sellerID, order.ID)
	if err != nil {
		t.Fatalf("MarkReadyForPickup() error = %v", err)
	}
	if ready.Status != domain.StatusReadyForPickup {
		t.Errorf("status = %s, want ready_for_pickup", ready.Status)
	}

	completed, err := f.svc.CompleteOrder(ctx, f.buyerID, order.ID)
	if err != nil {
		t.Fatalf("CompleteOrder() error = %v", err)
	}
	if completed.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", completed.Status)
	}

	// Completed is terminal: cancel must be rejected.
	if _, err := f.svc.CancelOrder(ctx, f.buyerID, order.ID, nil); apperr.GetKind(err) != apperr.KindConflict {
		t.Errorf("cancel after complete error kind = %v, want conflict", apperr.GetKind(err))
	}

	// Chat thread is requested exactly once, on confirmation.
	var chatEvents int
	for _, name := range f.bus.names() {
		if name == "engagements.chat_thread.requested" {
			chatEvents++
		}
	}
	if chatEvents != 1 {
		t.Errorf("chat thread events = %d, want 1", chatEvents)
	}
}

func TestUpdateOrderStatusIdempotentSameStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t)

	eventsBefore := len(f.bus.published)
	resp, err := f.svc.UpdateOrderStatus(ctx, f.buyerID, order.ID, domain.StatusAwaitingConfirmation, nil)
	if err != nil {
		t.Fatalf("same-status update error = %v", err)
	}
	if resp.Status != domain.StatusAwaitingConfirmation {
		t.Errorf("status = %s, want unchanged", resp.Status)
	}
	if len(f.bus.published) != eventsBefore {
		t.Errorf("same-status update published events, want none")
	}
}

func TestBookingTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	booking := f.requestBooking(t, 24*time.Hour)

	if _, err := f.svc.StartBooking(ctx, f.sellerID, booking.ID); apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("start from requested error kind = %v, want conflict", apperr.GetKind(err))
	}

	if _, err := f.svc.ConfirmBooking(ctx, f.sellerID, booking.ID); err != nil {
		t.Fatalf("ConfirmBooking() error = %v", err)
	}

	// Buyer cannot start the appointment.
	if _, err := f.svc.StartBooking(ctx, f.buyerID, booking.ID); apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("buyer start error kind = %v, want forbidden", apperr.GetKind(err))
	}

	if _, err := f.svc.StartBooking(ctx, f.sellerID, booking.ID); err != nil {
		t.Fatalf("StartBooking() error = %v", err)
	}

	done, err := f.svc.CompleteBooking(ctx, f.sellerID, booking.ID)
	if err != nil {
		t.Fatalf("CompleteBooking() error = %v", err)
	}
	if done.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}

	history, err := f.svc.GetBooking(ctx, f.buyerID, booking.ID)
	if err != nil {
		t.Fatalf("GetBooking() error = %v", err)
	}
	if len(history.History) != 4 {
		t.Errorf("history entries = %d, want 4", len(history.History))
	}
}

func TestMarkNoShow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	booking := f.requestBooking(t, 24*time.Hour)

	if _, err := f.svc.ConfirmBooking(ctx, f.sellerID, booking.ID); err != nil {
		t.Fatalf("ConfirmBooking() error = %v", err)
	}

	reason := "buyer did not show up"
	resp, err := f.svc.MarkNoShow(ctx, f.sellerID, booking.ID, &reason)
	if err != nil {
		t.Fatalf("MarkNoShow() error = %v", err)
	}
	if resp.Status != domain.StatusNoShow {
		t.Errorf("status = %s, want no_show", resp.Status)
	}
	if resp.CancellationReason == nil || *resp.CancellationReason != reason {
		t.Errorf("cancellationReason = %v, want %q", resp.CancellationReason, reason)
	}
}

func TestGetOrderAccessControl(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t)

	if _, err := f.svc.GetOrder(ctx, f.buyerID, order.ID); err != nil {
		t.Errorf("buyer GetOrder() error = %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, f.sellerID, order.ID); err != nil {
		t.Errorf("seller GetOrder() error = %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, uuid.New(), order.ID); apperr.GetKind(err) != apperr.KindForbidden {
		t.Errorf("stranger GetOrder() error kind = %v, want forbidden", apperr.GetKind(err))
	}
}

func TestGetBookedSlots(t *testing.T) {
	f := newFixture(t)
	booking := f.requestBooking(t, 24*time.Hour)

	date := booking.StartTime.UTC().Format("2006-01-02")
	resp, err := f.svc.GetBookedSlots(context.Background(), transport.GetBookedSlotsRequest{
		ListingID: f.service.String(),
		Date:      date,
	})
	if err != nil {
		t.Fatalf("GetBookedSlots() error = %v", err)
	}
	if len(resp.Slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(resp.Slots))
	}
	if !resp.Slots[0].StartTime.Equal(booking.StartTime) {
		t.Errorf("slot start = %v, want %v", resp.Slots[0].StartTime, booking.StartTime)
	}

	empty, err := f.svc.GetBookedSlots(context.Background(), transport.GetBookedSlotsRequest{
		ListingID: f.service.String(),
		Date:      "2030-01-01",
	})
	if err != nil {
		t.Fatalf("GetBookedSlots() error = %v", err)
	}
	if len(empty.Slots) != 0 {
		t.Errorf("slots on empty day = %d, want 0", len(empty.Slots))
	}
}

func TestSweepExpiresStaleEngagements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := f.placeOrder(t)
	booking := f.requestBooking(t, 80*time.Hour)

	// A confirmed order must survive the sweep.
	confirmedOrder := f.placeOrder(t)
	if _, err := f.svc.ConfirmOrder(ctx, f.sellerID, confirmedOrder.ID); err != nil {
		t.Fatalf("ConfirmOrder() error = %v", err)
	}

	f.clk.Advance(49 * time.Hour)

	result, err := f.svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if result.ExpiredOrders != 1 {
		t.Errorf("expired orders = %d, want 1", result.ExpiredOrders)
	}
	if result.CancelledBookings != 1 {
		t.Errorf("cancelled bookings = %d, want 1", result.CancelledBookings)
	}
	if result.Failed != 0 {
		t.Errorf("failed = %d, want 0", result.Failed)
	}

	swept, err := f.svc.GetOrder(ctx, f.buyerID, order.ID)
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if swept.Status != domain.StatusExpired {
		t.Errorf("order status = %s, want expired", swept.Status)
	}

	last := swept.History[len(swept.History)-1]
	if last.ActorRole != domain.RoleSystem || last.ActorID != nil {
		t.Errorf("sweep history actor = %+v, want system with nil actorId", last)
	}
	if last.Reason == nil || *last.Reason != "not confirmed within 48 hours" {
		t.Errorf("sweep reason = %v, want 'not confirmed within 48 hours'", last.Reason)
	}

	sweptBooking, err := f.svc.GetBooking(ctx, f.buyerID, booking.ID)
	if err != nil {
		t.Fatalf("GetBooking() error = %v", err)
	}
	if sweptBooking.Status != domain.StatusCancelled {
		t.Errorf("booking status = %s, want cancelled", sweptBooking.Status)
	}

	kept, err := f.svc.GetOrder(ctx, f.buyerID, confirmedOrder.ID)
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if kept.Status != domain.StatusConfirmed {
		t.Errorf("confirmed order status = %s, want confirmed", kept.Status)
	}

	// Second pass finds nothing new.
	again, err := f.svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep() error = %v", err)
	}
	if again.ExpiredOrders != 0 || again.CancelledBookings != 0 {
		t.Errorf("second sweep = %+v, want zero work", again)
	}
}

func TestSweepContinuesAfterItemFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	healthy := f.placeOrder(t)
	broken := f.placeOrder(t)
	booking := f.requestBooking(t, 80*time.Hour)

	f.store.orderUpdateErrs[broken.ID] = errors.New("deadlock detected")
	f.clk.Advance(49 * time.Hour)

	result, err := f.svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	// One bad row is counted as failed; the rest of the pass still runs.
	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if result.ExpiredOrders != 1 {
		t.Errorf("expired orders = %d, want 1", result.ExpiredOrders)
	}
	if result.CancelledBookings != 1 {
		t.Errorf("cancelled bookings = %d, want 1", result.CancelledBookings)
	}

	swept, err := f.svc.GetOrder(ctx, f.buyerID, healthy.ID)
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if swept.Status != domain.StatusExpired {
		t.Errorf("healthy order status = %s, want expired", swept.Status)
	}

	stuck, err := f.svc.GetOrder(ctx, f.buyerID, broken.ID)
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if stuck.Status != domain.StatusAwaitingConfirmation {
		t.Errorf("broken order status = %s, want awaiting_confirmation", stuck.Status)
	}

	sweptBooking, err := f.svc.GetBooking(ctx, f.buyerID, booking.ID)
	if err != nil {
		t.Fatalf("GetBooking() error = %v", err)
	}
	if sweptBooking.Status != domain.StatusCancelled {
		t.Errorf("booking status = %s, want cancelled", sweptBooking.Status)
	}

	// The failed order is picked up again once the fault clears.
	delete(f.store.orderUpdateErrs, broken.ID)
	again, err := f.svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep() error = %v", err)
	}
	if again.ExpiredOrders != 1 || again.Failed != 0 {
		t.Errorf("second sweep = %+v, want one expiry and no failures", again)
	}
}

func TestSellerCannotExpireOrder(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t)

	_, err := f.svc.UpdateOrderStatus(context.Background(), f.sellerID, order.ID, domain.StatusExpired, nil)
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Errorf("seller expire error kind = %v, want forbidden", apperr.GetKind(err))
	}
}

func TestPriceDeterminism(t *testing.T) {
	f := newFixture(t)

	first := f.placeOrder(t)
	second := f.placeOrder(t)

	if first.TotalPrice != second.TotalPrice {
		t.Errorf("identical orders priced differently: %s vs %s", first.TotalPrice, second.TotalPrice)
	}
}
