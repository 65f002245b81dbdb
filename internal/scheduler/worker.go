package scheduler

import (
	"context"
	"fmt"

	"marketplace_backend/internal/engagements/domain"
	"marketplace_backend/internal/engagements/repository"
	"marketplace_backend/internal/engagements/service"
	"marketplace_backend/internal/events"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sweeper runs one lifecycle sweep pass.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	repo    *repository.Repository
	sweeper Sweeper
	bus     events.Bus
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, sweeper Sweeper, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		repo:    repository.New(pool),
		sweeper: sweeper,
		bus:     bus,
		log:     log,
	}

	mux.HandleFunc(TaskLifecycleSweep, w.handleLifecycleSweep)
	mux.HandleFunc(TaskBookingReminder, w.handleBookingReminder)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleLifecycleSweep(ctx context.Context, task *asynq.Task) error {
	if _, err := ParseLifecycleSweepPayload(task); err != nil {
		return err
	}

	result, err := w.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}

	if result.ExpiredOrders > 0 || result.CancelledBookings > 0 || result.Failed > 0 {
		w.log.Info("lifecycle sweep completed",
			"expired_orders", result.ExpiredOrders,
			"cancelled_bookings", result.CancelledBookings,
			"failed", result.Failed,
		)
	}

	return nil
}

func (w *Worker) handleBookingReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseBookingReminderPayload(task)
	if err != nil {
		return err
	}

	bookingID, err := uuid.Parse(payload.BookingID)
	if err != nil {
		return err
	}

	booking, err := w.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		// Deleted bookings need no reminder.
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}

	if booking.Status != domain.StatusConfirmed {
		return nil
	}

	if w.bus == nil {
		return nil
	}

	w.bus.Publish(ctx, events.BookingReminderDue{
		BaseEvent: events.NewBaseEvent(),
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		BuyerID:   booking.BuyerID,
		SellerID:  booking.SellerID,
		StartTime: booking.StartTime,
		EndTime:   booking.EndTime,
	})

	return nil
}
