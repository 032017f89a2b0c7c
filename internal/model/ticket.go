package model

// Ticket status values.
const (
	TicketStatusActive    = "active"
	TicketStatusUsed      = "used"
	TicketStatusCancelled = "cancelled"
)

// Ticket is minted when a booking reaches confirmed, one per booked
// seat.  It copies the seat's type and captured price so later catalog
// changes never affect an issued ticket.  Tickets are never created
// for pending or cancelled bookings; cancelling a confirmed booking
// cascades its tickets to cancelled.
//
// Fields:
//  ID         – primary key identifier.
//  BookingID  – booking the ticket was minted for.
//  SeatID     – seat the ticket admits to.
//  TicketCode – unique printable code (enforced by a DB constraint).
//  TicketType – seat type copied at minting time.
//  PriceCents – the booking_seats snapshot price.
//  Status     – active, used or cancelled.
type Ticket struct {
	ID         uint64 `json:"ticket_id"`   // tickets.ticket_id
	BookingID  uint64 `json:"booking_id"`  // tickets.booking_id
	SeatID     uint64 `json:"seat_id"`     // tickets.seat_id
	TicketCode string `json:"ticket_code"` // tickets.ticket_code
	TicketType string `json:"ticket_type"` // tickets.ticket_type
	PriceCents uint32 `json:"price_cents"` // tickets.price_cents
	Status     string `json:"status"`      // tickets.status
}
