package jobs

import (
	"context"
	"log/slog"
	"time"
)

const (
	expirationCheckInterval = time.Minute
	expirationBatchSize     = 100
)

// UnpaidExpirer is implemented by service.PaymentService
type UnpaidExpirer interface {
	ExpireUnpaid(ctx context.Context, batchSize int) (int, error)
}

// BookingExpirationJob gives tickets of bookings left unpaid past the hold
// timeout back to their events. Only started under the release hold policy.
type BookingExpirationJob struct {
	expirer UnpaidExpirer
	ticker  *time.Ticker
	done    chan struct{}
}

func NewBookingExpirationJob(expirer UnpaidExpirer) *BookingExpirationJob {
	return &BookingExpirationJob{
		expirer: expirer,
		done:    make(chan struct{}),
	}
}

func (j *BookingExpirationJob) Start(ctx context.Context) {
	slog.Info("Starting booking expiration job", "check_interval", expirationCheckInterval.String())

	j.ticker = time.NewTicker(expirationCheckInterval)

	go func() {
		j.checkExpiredBookings(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.checkExpiredBookings(ctx)
			case <-j.done:
				slog.Info("Booking expiration job stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (j *BookingExpirationJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

// checkExpiredBookings drains expired bookings batch by batch
func (j *BookingExpirationJob) checkExpiredBookings(ctx context.Context) {
	total := 0
	for {
		released, err := j.expirer.ExpireUnpaid(ctx, expirationBatchSize)
		if err != nil {
			slog.Error("Failed to expire unpaid bookings", "error", err)
			return
		}
		total += released
		if released < expirationBatchSize {
			break
		}
	}

	if total > 0 {
		slog.Info("Expired unpaid bookings", "count", total)
	} else {
		slog.Debug("No expired bookings found")
	}
}
