package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/minhvu/movie-ticket-booking/internal/model"
)

// BookingRepo owns persistence for the bookings and booking_seats
// tables.  Creation, confirmation and cancellation all mutate multiple
// tables at once, so the mutating methods take a *sql.Tx opened by the
// caller; the caller commits or rolls back.  Read methods that back
// listing endpoints run outside any transaction.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle so handlers can begin transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// BookingRecord mirrors the schema of the bookings table.  It is used
// internally by the repository when constructing or scanning rows.
// Business logic should use the model.Booking type instead.
type BookingRecord struct {
	ID               uint64
	UserID           uint64
	ShowtimeID       uint64
	TotalAmountCents int64
	Status           string
	FoodItemsJSON    *string
	CreatedAt        time.Time
}

// BookingSeatRecord mirrors the booking_seats table.  PriceCents is
// the snapshot of the seat type price at insertion time.
type BookingSeatRecord struct {
	BookingID  uint64
	SeatID     uint64
	PriceCents uint32
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates the generated ID and creation timestamp on
// the provided record.  The caller must commit or rollback the
// transaction.  Status should be one of the model.BookingStatus*
// values; createBooking always writes "pending".
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *BookingRecord) error {
	const q = `INSERT INTO bookings (user_id, showtime_id, total_amount_cents, status, food_items) VALUES (?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, b.UserID, b.ShowtimeID, b.TotalAmountCents, b.Status, b.FoodItemsJSON)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	// Query back the row to populate the DB-side creation timestamp.
	const sel = `SELECT created_at FROM bookings WHERE booking_id = ?`
	return tx.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt)
}

// CreateSeatsBulkTx inserts multiple booking_seats rows in a single
// statement, each carrying its captured price.  The caller must supply
// the booking ID in each record.  Passing an empty slice has no effect
// and returns nil.
func (r *BookingRepo) CreateSeatsBulkTx(ctx context.Context, tx *sql.Tx, seats []BookingSeatRecord) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO booking_seats (booking_id, seat_id, price_cents) VALUES `
	args := make([]interface{}, 0, len(seats)*3)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, s.BookingID, s.SeatID, s.PriceCents)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// HeldSeatIDsTx returns which of the given seats are already attached
// to a pending or confirmed booking for the showtime.  It must run
// inside the same transaction that holds the showtime row lock; under
// that lock an empty result guarantees the seats can be inserted
// without double booking.
func (r *BookingRepo) HeldSeatIDsTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, 0, len(seatIDs))
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, showtimeID)
	for _, id := range seatIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT bs.seat_id FROM booking_seats bs
              JOIN bookings b ON b.booking_id = bs.booking_id
              WHERE b.showtime_id = ? AND b.status IN ('pending', 'confirmed')
                AND bs.seat_id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var held []uint64
	for rows.Next() {
		var sid uint64
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		held = append(held, sid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return held, nil
}

// LockForUpdateTx reads a booking's owner, status and total with a
// pessimistic row lock.  Confirm and cancel both start here so that
// two racing transitions on the same booking serialize and exactly one
// observes the status precondition failure.  Returns
// ErrBookingNotFound when the booking does not exist.
func (r *BookingRepo) LockForUpdateTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (userID uint64, status string, totalCents int64, err error) {
	const q = `SELECT user_id, status, total_amount_cents FROM bookings WHERE booking_id = ? FOR UPDATE`
	err = tx.QueryRowContext(ctx, q, bookingID).Scan(&userID, &status, &totalCents)
	if err == sql.ErrNoRows {
		return 0, "", 0, ErrBookingNotFound
	}
	return userID, status, totalCents, err
}

// UpdateStatusTx flips the booking's status inside the transaction.
// Callers must have validated the transition beforehand under the
// LockForUpdateTx row lock.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, bookingID uint64, status string) error {
	_, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE booking_id = ?`, status, bookingID)
	return err
}

// FindByID loads a booking including its decoded food snapshot.  It
// returns ErrBookingNotFound when no row matches.  Used by the payment
// handlers to validate ownership and state before talking to the
// gateway.
func (r *BookingRepo) FindByID(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	const q = `SELECT booking_id, user_id, showtime_id, total_amount_cents, status, food_items, created_at
               FROM bookings WHERE booking_id = ?`
	var b model.Booking
	var foodJSON sql.NullString
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(
		&b.ID, &b.UserID, &b.ShowtimeID, &b.TotalAmountCents, &b.Status, &foodJSON, &b.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if foodJSON.Valid && strings.TrimSpace(foodJSON.String) != "" {
		// A malformed snapshot must not make the whole booking unreadable.
		if err := json.Unmarshal([]byte(foodJSON.String), &b.FoodItems); err != nil {
			b.FoodItems = nil
		}
	}
	return &b, nil
}

// SeatStatus is one row of the availability view: every seat in the
// showtime's hall together with whether a live (pending or confirmed)
// booking holds it.
type SeatStatus struct {
	SeatID     uint64 `json:"seat_id"`
	SeatRow    string `json:"seat_row"`
	SeatNumber uint32 `json:"seat_number"`
	SeatType   string `json:"seat_type"`
	Status     string `json:"status"` // "available" or "booked"
}

// SeatAvailability computes the live availability of every seat in the
// showtime's hall.  A seat counts as booked when any booking_seats row
// ties it to a booking for this showtime with status pending or
// confirmed; cancelled bookings do not block.  The read is not locked:
// the authoritative enforcement point is booking creation, this view
// only informs seat selection.
func (r *BookingRepo) SeatAvailability(ctx context.Context, showtimeID uint64) ([]SeatStatus, error) {
	const q = `SELECT s.seat_id, s.seat_row, s.seat_number, s.seat_type,
                      CASE WHEN held.seat_id IS NULL THEN 'available' ELSE 'booked' END AS status
               FROM seats s
               JOIN showtimes st ON st.hall_id = s.hall_id AND st.showtime_id = ?
               LEFT JOIN (
                   SELECT bs.seat_id FROM booking_seats bs
                   JOIN bookings b ON b.booking_id = bs.booking_id
                   WHERE b.showtime_id = ? AND b.status IN ('pending', 'confirmed')
               ) held ON held.seat_id = s.seat_id
               ORDER BY s.seat_row, s.seat_number`
	rows, err := r.db.QueryContext(ctx, q, showtimeID, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	statuses := make([]SeatStatus, 0)
	for rows.Next() {
		var s SeatStatus
		if err := rows.Scan(&s.SeatID, &s.SeatRow, &s.SeatNumber, &s.SeatType, &s.Status); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return statuses, nil
}

// BookedSeatDetail is one seat line in a booking detail response.
type BookedSeatDetail struct {
	SeatID     uint64 `json:"seat_id"`
	SeatRow    string `json:"seat_row"`
	SeatNumber uint32 `json:"seat_number"`
	SeatType   string `json:"seat_type"`
	PriceCents uint32 `json:"price_cents"`
}

// BookingDetail aggregates a booking with its seats, transactions and
// tickets for the detail endpoint.
type BookingDetail struct {
	BookingID        uint64                `json:"booking_id"`
	UserID           uint64                `json:"user_id"`
	ShowtimeID       uint64                `json:"showtime_id"`
	Status           string                `json:"status"`
	TotalAmountCents int64                 `json:"total_amount_cents"`
	FoodItems        []model.FoodOrderItem `json:"food_items"`
	CreatedAt        time.Time             `json:"created_at"`
	Seats            []BookedSeatDetail    `json:"seats"`
	Transactions     []model.Transaction   `json:"transactions"`
	Tickets          []model.Ticket        `json:"tickets"`
}

// GetDetail loads a booking together with its seats, transaction
// ledger and tickets.  Returns ErrBookingNotFound when the booking
// does not exist.  Ownership checks belong to the handler.
func (r *BookingRepo) GetDetail(ctx context.Context, bookingID uint64) (*BookingDetail, error) {
	b, err := r.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	det := &BookingDetail{
		BookingID:        b.ID,
		UserID:           b.UserID,
		ShowtimeID:       b.ShowtimeID,
		Status:           b.Status,
		TotalAmountCents: b.TotalAmountCents,
		FoodItems:        b.FoodItems,
		CreatedAt:        b.CreatedAt,
		Seats:            []BookedSeatDetail{},
		Transactions:     []model.Transaction{},
		Tickets:          []model.Ticket{},
	}
	const seatQ = `SELECT bs.seat_id, s.seat_row, s.seat_number, s.seat_type, bs.price_cents
                   FROM booking_seats bs
                   JOIN seats s ON s.seat_id = bs.seat_id
                   WHERE bs.booking_id = ?
                   ORDER BY s.seat_row, s.seat_number`
	srows, err := r.db.QueryContext(ctx, seatQ, bookingID)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var d BookedSeatDetail
		if err := srows.Scan(&d.SeatID, &d.SeatRow, &d.SeatNumber, &d.SeatType, &d.PriceCents); err != nil {
			return nil, err
		}
		det.Seats = append(det.Seats, d)
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	const txQ = `SELECT transaction_id, booking_id, amount_cents, payment_method, payment_status, gateway_response, transaction_date
                 FROM transactions WHERE booking_id = ? ORDER BY transaction_date`
	trows, err := r.db.QueryContext(ctx, txQ, bookingID)
	if err != nil {
		return nil, err
	}
	defer trows.Close()
	for trows.Next() {
		var t model.Transaction
		var payload sql.NullString
		if err := trows.Scan(&t.ID, &t.BookingID, &t.AmountCents, &t.PaymentMethod, &t.PaymentStatus, &payload, &t.TransactionDate); err != nil {
			return nil, err
		}
		if payload.Valid {
			t.GatewayResponse = payload.String
		}
		det.Transactions = append(det.Transactions, t)
	}
	if err := trows.Err(); err != nil {
		return nil, err
	}
	const tkQ = `SELECT ticket_id, booking_id, seat_id, ticket_code, ticket_type, price_cents, status
                 FROM tickets WHERE booking_id = ?`
	krows, err := r.db.QueryContext(ctx, tkQ, bookingID)
	if err != nil {
		return nil, err
	}
	defer krows.Close()
	for krows.Next() {
		var t model.Ticket
		if err := krows.Scan(&t.ID, &t.BookingID, &t.SeatID, &t.TicketCode, &t.TicketType, &t.PriceCents, &t.Status); err != nil {
			return nil, err
		}
		det.Tickets = append(det.Tickets, t)
	}
	if err := krows.Err(); err != nil {
		return nil, err
	}
	return det, nil
}

// UserBookingRow is one line of a user's booking history: a confirmed
// booking joined with one of its transactions.
type UserBookingRow struct {
	BookingID        uint64    `json:"booking_id"`
	ShowtimeID       uint64    `json:"showtime_id"`
	Status           string    `json:"status"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	PaymentMethod    string    `json:"payment_method"`
	PaymentStatus    string    `json:"payment_status"`
	TransactionDate  time.Time `json:"transaction_date"`
}

// ListByUser returns the user's confirmed bookings joined with their
// transactions, newest transaction first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]UserBookingRow, error) {
	const q = `SELECT b.booking_id, b.showtime_id, b.status, b.total_amount_cents,
                      t.payment_method, t.payment_status, t.transaction_date
               FROM bookings b
               JOIN transactions t ON t.booking_id = b.booking_id
               WHERE b.user_id = ? AND b.status = 'confirmed'
               ORDER BY t.transaction_date DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]UserBookingRow, 0)
	for rows.Next() {
		var u UserBookingRow
		if err := rows.Scan(&u.BookingID, &u.ShowtimeID, &u.Status, &u.TotalAmountCents,
			&u.PaymentMethod, &u.PaymentStatus, &u.TransactionDate); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// AdminBookingRow is one line of the admin booking listing.
type AdminBookingRow struct {
	BookingID        uint64    `json:"booking_id"`
	UserID           uint64    `json:"user_id"`
	ShowtimeID       uint64    `json:"showtime_id"`
	Status           string    `json:"status"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	CreatedAt        time.Time `json:"created_at"`
}

// ListForAdmin returns all bookings, optionally filtered by status,
// newest first.
func (r *BookingRepo) ListForAdmin(ctx context.Context, status string) ([]AdminBookingRow, error) {
	query := `SELECT booking_id, user_id, showtime_id, status, total_amount_cents, created_at
              FROM bookings`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]AdminBookingRow, 0)
	for rows.Next() {
		var a AdminBookingRow
		if err := rows.Scan(&a.BookingID, &a.UserID, &a.ShowtimeID, &a.Status, &a.TotalAmountCents, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// StalePendingIDs returns bookings that have sat in pending status
// since before the cutoff without ever receiving a completed payment.
// The reaper cancels each through the normal cancel transition so the
// held seats come free again.
func (r *BookingRepo) StalePendingIDs(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	const q = `SELECT b.booking_id FROM bookings b
               WHERE b.status = 'pending' AND b.created_at < ?
                 AND NOT EXISTS (
                     SELECT 1 FROM transactions t
                     WHERE t.booking_id = b.booking_id AND t.payment_status = 'completed'
                 )
               ORDER BY b.booking_id`
	rows, err := r.db.QueryContext(ctx, q, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
