package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// SweepResult summarizes one lifecycle sweep pass.
type SweepResult struct {
	ExpiredOrders     int
	CancelledBookings int
	Failed            int
}

func staleReason(ttl time.Duration) string {
	return fmt.Sprintf("not confirmed within %d hours", int(ttl.Hours()))
}

// ExpireStaleOrders expires orders that sat in awaiting_confirmation past the
// configured TTL. Failures on individual orders are logged and skipped so one
// bad row cannot stall the sweep.
func (s *Service) ExpireStaleOrders(ctx context.Context) (int, int, error) {
	ttl := s.sweepCfg.GetOrderConfirmTTL()
	cutoff := s.clock.Now().Add(-ttl)

	ids, err := s.store.ListStaleOrderIDs(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}

	reason := staleReason(ttl)
	expired, failed := 0, 0
	for _, id := range ids {
		if err := s.ExpireOrder(ctx, id, reason); err != nil {
			s.logger.Error("failed to expire stale order", "order_id", id.String(), "error", err.Error())
			failed++
			continue
		}
		expired++
	}

	return expired, failed, nil
}

// CancelStaleBookings cancels bookings that sat in requested past the
// configured TTL, releasing their time slots.
func (s *Service) CancelStaleBookings(ctx context.Context) (int, int, error) {
	ttl := s.sweepCfg.GetBookingConfirmTTL()
	cutoff := s.clock.Now().Add(-ttl)

	ids, err := s.store.ListStaleBookingIDs(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}

	reason := staleReason(ttl)
	cancelled, failed := 0, 0
	for _, id := range ids {
		if err := s.CancelStaleBooking(ctx, id, reason); err != nil {
			s.logger.Error("failed to cancel stale booking", "booking_id", id.String(), "error", err.Error())
			failed++
			continue
		}
		cancelled++
	}

	return cancelled, failed, nil
}

// Sweep runs both lifecycle passes concurrently and reports the combined
// result. The passes touch disjoint tables so they can run in parallel.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	var (
		expired, failedOrders     int
		cancelled, failedBookings int
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		expired, failedOrders, err = s.ExpireStaleOrders(ctx)
		if err != nil {
			return fmt.Errorf("order sweep failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		cancelled, failedBookings, err = s.CancelStaleBookings(ctx)
		if err != nil {
			return fmt.Errorf("booking sweep failed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	return SweepResult{
		ExpiredOrders:     expired,
		CancelledBookings: cancelled,
		Failed:            failedOrders + failedBookings,
	}, err
}
