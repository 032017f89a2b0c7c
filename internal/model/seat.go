package model

// Seat type enumeration values as stored in seats.seat_type and
// priced in seat_type_prices.
const (
	SeatTypeStandard = "standard"
	SeatTypeVIP      = "vip"
	SeatTypeCouple   = "couple"
)

// Seat describes a physical seat in a hall.  Seats are uniquely
// identified by their hall, row letter and seat number.  A seat is
// never deleted while any booking_seats row references it.
//
// Fields:
//  ID         – primary key identifier.
//  HallID     – hall to which this seat belongs.
//  SeatRow    – letter designating the row.
//  SeatNumber – number of the seat within the row.
//  SeatType   – pricing category (standard, vip, couple).
type Seat struct {
	ID         uint64 // seats.seat_id
	HallID     uint64 // seats.hall_id
	SeatRow    string // seats.seat_row
	SeatNumber uint32 // seats.seat_number
	SeatType   string // seats.seat_type
}

// SeatTypePrice maps a seat type to its current catalog price.  The
// price is captured onto booking_seats rows at booking time so later
// catalog changes never alter historical bookings.
type SeatTypePrice struct {
	ID         uint64 // seat_type_prices.seat_type_price_id
	SeatType   string // seat_type_prices.seat_type
	PriceCents uint32 // seat_type_prices.price_cents
}
