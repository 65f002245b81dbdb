// Package notification subscribes to engagement events and fans them out to
// the parties involved. Domain modules publish events and stay unaware of
// delivery channels; this module inverts that dependency.
package notification

import (
	"context"
	"fmt"
	"time"

	"marketplace_backend/internal/engagements/repository"
	"marketplace_backend/internal/events"
	"marketplace_backend/internal/scheduler"
	"marketplace_backend/platform/clock"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
)

// reminderLead is how long before a booking starts the reminder fires.
const reminderLead = time.Hour

// Dispatcher delivers a notification to a single user.
type Dispatcher interface {
	Notify(ctx context.Context, userID uuid.UUID, title, body string) error
}

// ChatOpener opens a conversation thread between the two parties of a
// confirmed engagement.
type ChatOpener interface {
	OpenThread(ctx context.Context, engagementID, buyerID, sellerID uuid.UUID, kind string) error
}

// BookingReader loads a booking so reminders can be scheduled from its start time.
type BookingReader interface {
	GetBookingByID(ctx context.Context, id uuid.UUID) (*repository.Booking, error)
}

// Module wires the event subscriptions for notifications.
type Module struct {
	dispatcher Dispatcher
	chat       ChatOpener
	bookings   BookingReader
	reminders  scheduler.ReminderScheduler
	clock      clock.Clock
	log        *logger.Logger
}

// NewModule creates the notification module. reminders may be nil when no
// scheduler client is available; reminder scheduling is then skipped.
func NewModule(dispatcher Dispatcher, chat ChatOpener, bookings BookingReader, reminders scheduler.ReminderScheduler, clk clock.Clock, log *logger.Logger) *Module {
	return &Module{
		dispatcher: dispatcher,
		chat:       chat,
		bookings:   bookings,
		reminders:  reminders,
		clock:      clk,
		log:        log,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "notification"
}

// Subscribe registers the module's event handlers on the bus.
func (m *Module) Subscribe(bus events.Bus) {
	bus.Subscribe(events.OrderCreated{}.EventName(), events.HandlerFunc(m.handleOrderCreated))
	bus.Subscribe(events.BookingCreated{}.EventName(), events.HandlerFunc(m.handleBookingCreated))
	bus.Subscribe(events.EngagementStatusChanged{}.EventName(), events.HandlerFunc(m.handleStatusChanged))
	bus.Subscribe(events.ChatThreadRequested{}.EventName(), events.HandlerFunc(m.handleChatThreadRequested))
	bus.Subscribe(events.BookingReminderDue{}.EventName(), events.HandlerFunc(m.handleBookingReminderDue))
}

func (m *Module) handleOrderCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.OrderCreated)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	body := fmt.Sprintf("New order for %s %s, awaiting your confirmation", e.TotalPrice, e.Currency)
	m.notify(ctx, e.SellerID, "New order received", body)
	return nil
}

func (m *Module) handleBookingCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.BookingCreated)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	body := fmt.Sprintf("Booking requested for %s, awaiting your confirmation", e.StartTime.Format(time.RFC1123))
	m.notify(ctx, e.SellerID, "New booking request", body)
	return nil
}

func (m *Module) handleStatusChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(events.EngagementStatusChanged)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	title := fmt.Sprintf("%s %s", strOrKind(e.Kind), e.NewStatus)
	body := fmt.Sprintf("Status changed from %s to %s", e.OldStatus, e.NewStatus)
	if e.Reason != nil && *e.Reason != "" {
		body = fmt.Sprintf("%s: %s", body, *e.Reason)
	}

	// The actor already knows; tell the other party. System transitions
	// notify both.
	if e.ActorID == nil {
		m.notify(ctx, e.BuyerID, title, body)
		m.notify(ctx, e.SellerID, title, body)
	} else if *e.ActorID == e.BuyerID {
		m.notify(ctx, e.SellerID, title, body)
	} else {
		m.notify(ctx, e.BuyerID, title, body)
	}

	if e.Kind == "booking" && e.NewStatus == "confirmed" {
		m.scheduleReminder(ctx, e.EngagementID)
	}

	return nil
}

func (m *Module) handleChatThreadRequested(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ChatThreadRequested)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	if m.chat == nil {
		return nil
	}
	if err := m.chat.OpenThread(ctx, e.EngagementID, e.BuyerID, e.SellerID, e.Kind); err != nil {
		m.log.Warn("failed to open chat thread", "engagement_id", e.EngagementID.String(), "error", err)
	}
	return nil
}

func (m *Module) handleBookingReminderDue(ctx context.Context, event events.Event) error {
	e, ok := event.(events.BookingReminderDue)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	body := fmt.Sprintf("Your booking starts at %s", e.StartTime.Format(time.RFC1123))
	m.notify(ctx, e.BuyerID, "Upcoming booking", body)
	m.notify(ctx, e.SellerID, "Upcoming booking", body)
	return nil
}

func (m *Module) scheduleReminder(ctx context.Context, bookingID uuid.UUID) {
	if m.reminders == nil || m.bookings == nil {
		return
	}

	booking, err := m.bookings.GetBookingByID(ctx, bookingID)
	if err != nil {
		m.log.Warn("failed to load booking for reminder", "booking_id", bookingID.String(), "error", err)
		return
	}

	runAt := booking.StartTime.Add(-reminderLead)
	if !runAt.After(m.clock.Now()) {
		return
	}

	payload := scheduler.BookingReminderPayload{BookingID: booking.ID.String()}
	if err := m.reminders.ScheduleBookingReminder(ctx, payload, runAt); err != nil {
		m.log.Warn("failed to schedule booking reminder", "booking_id", bookingID.String(), "error", err)
	}
}

func (m *Module) notify(ctx context.Context, userID uuid.UUID, title, body string) {
	if m.dispatcher == nil {
		return
	}
	if err := m.dispatcher.Notify(ctx, userID, title, body); err != nil {
		m.log.Warn("failed to dispatch notification", "user_id", userID.String(), "error", err)
	}
}

func strOrKind(kind string) string {
	if kind == "booking" {
		return "Booking"
	}
	return "Order"
}

// LogDispatcher is the default Dispatcher; it only records deliveries in the
// application log. Real channels (push, email) plug in behind the interface.
type LogDispatcher struct {
	Log *logger.Logger
}

func (d *LogDispatcher) Notify(_ context.Context, userID uuid.UUID, title, body string) error {
	d.Log.Info("notification dispatched", "user_id", userID.String(), "title", title, "body", body)
	return nil
}

// LogChatOpener is the default ChatOpener used until the messaging service
// is wired in.
type LogChatOpener struct {
	Log *logger.Logger
}

func (c *LogChatOpener) OpenThread(_ context.Context, engagementID, buyerID, sellerID uuid.UUID, kind string) error {
	c.Log.Info("chat thread requested",
		"engagement_id", engagementID.String(),
		"kind", kind,
		"buyer_id", buyerID.String(),
		"seller_id", sellerID.String(),
	)
	return nil
}
