package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/minhvu/movie-ticket-booking/internal/model"
)

// ShowtimeRepo provides read access to the showtimes catalog.  The
// booking engine never writes showtimes; scheduling belongs to the
// admin catalog.  Its one transactional method locks the showtime row
// so that concurrent booking attempts for the same showtime serialize
// behind it.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo returns a new ShowtimeRepo bound to the given database.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

// DB exposes the underlying handle so handlers can begin transactions.
func (r *ShowtimeRepo) DB() *sql.DB { return r.db }

// GetByID loads a showtime by its primary key.  It returns
// ErrShowtimeNotFound when no row matches.
func (r *ShowtimeRepo) GetByID(ctx context.Context, id uint64) (*model.Showtime, error) {
	const q = `SELECT showtime_id, movie_id, hall_id, start_time, end_time, available_seats, is_full
               FROM showtimes WHERE showtime_id = ?`
	var st model.Showtime
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&st.ID, &st.MovieID, &st.HallID, &st.StartTime, &st.EndTime, &st.AvailableSeats, &st.IsFull,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowtimeNotFound
		}
		return nil, err
	}
	return &st, nil
}

// LockForBookingTx reads the showtime's hall and cached seat count with
// a pessimistic row lock (SELECT ... FOR UPDATE) held until the
// surrounding transaction commits or rolls back.  Every booking
// creation for a showtime passes through this lock, which serializes
// concurrent attempts at showtime granularity; that coarse lock is what
// makes the later per-seat availability check race-free.  Returns
// ErrShowtimeNotFound when the showtime does not exist.
func (r *ShowtimeRepo) LockForBookingTx(ctx context.Context, tx *sql.Tx, id uint64) (hallID uint64, availableSeats uint32, err error) {
	const q = `SELECT hall_id, available_seats FROM showtimes WHERE showtime_id = ? FOR UPDATE`
	err = tx.QueryRowContext(ctx, q, id).Scan(&hallID, &availableSeats)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrShowtimeNotFound
	}
	return hallID, availableSeats, err
}
