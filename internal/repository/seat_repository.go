package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/minhvu/movie-ticket-booking/internal/model"
)

// SeatRepo provides read access to the seats table and the seat type
// price catalog.  Both are read-only from the booking engine's
// perspective: seats are laid out by hall administration and prices by
// the pricing catalog.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a new SeatRepo bound to the given database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// SeatsInHallTx loads the requested seats restricted to the given hall
// within the provided transaction.  The result maps seat ID to the
// full seat record; a requested ID missing from the map does not belong
// to the hall.  Callers use this to detect seats from the wrong hall
// and to resolve each seat's type for pricing.
func (r *SeatRepo) SeatsInHallTx(ctx context.Context, tx *sql.Tx, hallID uint64, seatIDs []uint64) (map[uint64]model.Seat, error) {
	if len(seatIDs) == 0 {
		return map[uint64]model.Seat{}, nil
	}
	placeholders := make([]string, 0, len(seatIDs))
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, hallID)
	for _, id := range seatIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT seat_id, hall_id, seat_row, seat_number, seat_type
              FROM seats WHERE hall_id = ? AND seat_id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make(map[uint64]model.Seat, len(seatIDs))
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.HallID, &s.SeatRow, &s.SeatNumber, &s.SeatType); err != nil {
			return nil, err
		}
		seats[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// PricesByType loads the full seat type price catalog as a map from
// seat type to price in cents.  The catalog is tiny (one row per seat
// type) so loading it whole is cheaper than a lookup per seat.
func (r *SeatRepo) PricesByType(ctx context.Context, q Querier) (map[string]uint32, error) {
	rows, err := q.QueryContext(ctx, `SELECT seat_type, price_cents FROM seat_type_prices`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	prices := make(map[string]uint32)
	for rows.Next() {
		var seatType string
		var cents uint32
		if err := rows.Scan(&seatType, &cents); err != nil {
			return nil, err
		}
		prices[seatType] = cents
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return prices, nil
}

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Read helpers that work both inside and outside a transaction accept
// it instead of a concrete handle.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
