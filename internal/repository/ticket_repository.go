package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/minhvu/movie-ticket-booking/internal/model"
)

// TicketRepo persists tickets.  Tickets exist only for confirmed
// bookings: MintForBookingTx runs inside the confirm transaction and
// CancelByBookingTx inside the cancel transaction, so a ticket row can
// never outlive its booking's status.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// TicketCode builds a printable ticket code embedding the booking and
// seat IDs plus a random suffix.  Embedding the IDs makes collisions
// across bookings impossible and the uuid suffix covers reissue within
// one; the UNIQUE constraint on tickets.ticket_code backs this up at
// the storage layer.
func TicketCode(bookingID, seatID uint64) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("TICKET-%d-%d-%s", bookingID, seatID, strings.ToUpper(suffix))
}

// MintForBookingTx creates one active ticket per booking seat inside
// the confirm transaction, copying each seat's type and captured
// price.  It returns the number of tickets minted, which callers can
// check against the booking's seat count.
func (r *TicketRepo) MintForBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int, error) {
	const seatQ = `SELECT bs.seat_id, s.seat_type, bs.price_cents
                   FROM booking_seats bs
                   JOIN seats s ON s.seat_id = bs.seat_id
                   WHERE bs.booking_id = ?`
	rows, err := tx.QueryContext(ctx, seatQ, bookingID)
	if err != nil {
		return 0, err
	}
	type seatLine struct {
		seatID     uint64
		seatType   string
		priceCents uint32
	}
	var lines []seatLine
	for rows.Next() {
		var l seatLine
		if err := rows.Scan(&l.seatID, &l.seatType, &l.priceCents); err != nil {
			rows.Close()
			return 0, err
		}
		lines = append(lines, l)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}
	query := `INSERT INTO tickets (booking_id, seat_id, ticket_code, ticket_type, price_cents, status) VALUES `
	args := make([]interface{}, 0, len(lines)*6)
	for i, l := range lines {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, bookingID, l.seatID, TicketCode(bookingID, l.seatID), l.seatType, l.priceCents, model.TicketStatusActive)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, err
	}
	return len(lines), nil
}

// CancelByBookingTx cascades a booking cancellation onto its tickets,
// marking every non-cancelled ticket cancelled inside the caller's
// transaction.  Used tickets are flipped too: once the booking is
// refunded the admission is void.
func (r *TicketRepo) CancelByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) error {
	const q = `UPDATE tickets SET status = 'cancelled' WHERE booking_id = ? AND status <> 'cancelled'`
	_, err := tx.ExecContext(ctx, q, bookingID)
	return err
}

// AdminTicketRow is one line of the admin ticket listing, joining the
// ticket to its seat position and owning booking.
type AdminTicketRow struct {
	TicketID   uint64 `json:"ticket_id"`
	BookingID  uint64 `json:"booking_id"`
	SeatID     uint64 `json:"seat_id"`
	TicketCode string `json:"ticket_code"`
	TicketType string `json:"ticket_type"`
	PriceCents uint32 `json:"price_cents"`
	Status     string `json:"status"`
	SeatRow    string `json:"seat_row"`
	SeatNumber uint32 `json:"seat_number"`
	UserID     uint64 `json:"user_id"`
}

// ListForAdmin returns every ticket with seat and booking context,
// newest first.
func (r *TicketRepo) ListForAdmin(ctx context.Context) ([]AdminTicketRow, error) {
	const q = `SELECT t.ticket_id, t.booking_id, t.seat_id, t.ticket_code, t.ticket_type, t.price_cents, t.status,
                      s.seat_row, s.seat_number, b.user_id
               FROM tickets t
               JOIN bookings b ON b.booking_id = t.booking_id
               JOIN seats s ON s.seat_id = t.seat_id
               ORDER BY t.ticket_id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]AdminTicketRow, 0)
	for rows.Next() {
		var a AdminTicketRow
		if err := rows.Scan(&a.TicketID, &a.BookingID, &a.SeatID, &a.TicketCode, &a.TicketType, &a.PriceCents, &a.Status,
			&a.SeatRow, &a.SeatNumber, &a.UserID); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
