package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	engagementsrepo "marketplace_backend/internal/engagements/repository"
	engagementssvc "marketplace_backend/internal/engagements/service"
	"marketplace_backend/internal/events"
	listingsrepo "marketplace_backend/internal/listings/repository"
	membersrepo "marketplace_backend/internal/members/repository"
	"marketplace_backend/internal/notification"
	"marketplace_backend/internal/scheduler"
	"marketplace_backend/platform/clock"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/db"
	"marketplace_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer client.Close()

	repo := engagementsrepo.New(pool)
	svc := engagementssvc.New(
		repo,
		listingsrepo.New(pool),
		membersrepo.New(pool),
		eventBus,
		clock.System(),
		cfg,
		log,
	)

	notificationModule := notification.NewModule(
		&notification.LogDispatcher{Log: log},
		&notification.LogChatOpener{Log: log},
		repo,
		client,
		clock.System(),
		log,
	)
	notificationModule.Subscribe(eventBus)

	sweeper := scheduler.NewLifecycleSweeper(client, cfg, log)
	go sweeper.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, pool, svc, eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
