// Package reaper cancels pending bookings whose payment never arrived,
// releasing their seat holds for other customers. It runs on a fixed
// interval via gocron.
package reaper

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/minhvu/movie-ticket-booking/internal/model"
	"github.com/minhvu/movie-ticket-booking/internal/repository"
	"github.com/minhvu/movie-ticket-booking/pkg/logger"
)

// Reaper sweeps stale pending bookings. A booking is stale when it has
// sat in pending longer than TTL with no completed transaction.
type Reaper struct {
	BookingRepo *repository.BookingRepo
	TTL         time.Duration
	Interval    time.Duration
	Log         logger.Logger

	scheduler gocron.Scheduler
}

// New builds a Reaper. ttl is how long a pending booking may live;
// interval is how often the sweep runs.
func New(bookingRepo *repository.BookingRepo, ttl, interval time.Duration, log logger.Logger) *Reaper {
	return &Reaper{
		BookingRepo: bookingRepo,
		TTL:         ttl,
		Interval:    interval,
		Log:         log,
	}
}

// Start schedules the sweep and begins running it. Call Stop on
// shutdown.
func (r *Reaper) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(r.Interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			r.Sweep(ctx)
		}),
	)
	if err != nil {
		return err
	}
	sched.Start()
	r.scheduler = sched
	r.Log.Info("booking reaper started", "ttl", r.TTL.String(), "interval", r.Interval.String())
	return nil
}

// Stop shuts the scheduler down and waits for a running sweep to end.
func (r *Reaper) Stop() {
	if r.scheduler != nil {
		_ = r.scheduler.Shutdown()
	}
}

// Sweep cancels every stale pending booking. Each booking is handled
// in its own transaction: the row is re-locked and re-checked under
// the lock, so a payment landing mid-sweep wins and the booking is
// left alone. Unpaid bookings need no refund row.
func (r *Reaper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.TTL)
	ids, err := r.BookingRepo.StalePendingIDs(ctx, cutoff)
	if err != nil {
		r.Log.Error("reaper: stale booking query failed", "err", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	cancelled := 0
	for _, id := range ids {
		if err := r.cancelOne(ctx, id); err != nil {
			r.Log.Warn("reaper: cancel failed", "booking_id", id, "err", err)
			continue
		}
		cancelled++
	}
	r.Log.Info("reaper: sweep complete", "stale", len(ids), "cancelled", cancelled)
}

func (r *Reaper) cancelOne(ctx context.Context, bookingID uint64) error {
	tx, err := r.BookingRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, status, _, err := r.BookingRepo.LockForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if status != model.BookingStatusPending {
		// confirmed or cancelled since the candidate query ran
		return nil
	}
	if err := r.BookingRepo.UpdateStatusTx(ctx, tx, bookingID, model.BookingStatusCancelled); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
