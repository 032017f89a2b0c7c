package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu/movie-ticket-booking/internal/repository"
	"github.com/minhvu/movie-ticket-booking/pkg/logger"
)

func TestSweepCancelsStalePendingBookings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := New(repository.NewBookingRepo(db), 15*time.Minute, time.Minute, logger.NewNop())

	mock.ExpectQuery("SELECT b.booking_id FROM bookings b").
		WillReturnRows(sqlmock.NewRows([]string{"booking_id"}).AddRow(4).AddRow(9))

	// booking 4 is still pending and gets cancelled
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, status, total_amount_cents FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "total_amount_cents"}).
			AddRow(7, "pending", 2500))
	mock.ExpectExec("UPDATE bookings SET status").
		WithArgs("cancelled", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// booking 9 got paid between the candidate query and the lock, so
	// the sweep leaves it alone
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, status, total_amount_cents FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "total_amount_cents"}).
			AddRow(7, "confirmed", 2500))
	mock.ExpectRollback()

	r.Sweep(context.Background())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepNoStaleBookings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := New(repository.NewBookingRepo(db), 15*time.Minute, time.Minute, logger.NewNop())

	mock.ExpectQuery("SELECT b.booking_id FROM bookings b").
		WillReturnRows(sqlmock.NewRows([]string{"booking_id"}))

	r.Sweep(context.Background())
	assert.NoError(t, mock.ExpectationsWereMet())
}
