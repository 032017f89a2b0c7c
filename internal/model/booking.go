package model

import "time"

// Booking status values.  The only legal transitions are
// pending→confirmed, pending→cancelled and confirmed→cancelled;
// everything else is rejected by the ledger.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// Booking is the aggregate root of the transaction engine.  It records
// a user's seat selection (via booking_seats) plus an optional food
// order snapshot, the computed total and the payment lifecycle status.
// A booking holds its seats for the showtime while status is pending
// or confirmed; cancellation releases them.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – user who made the booking.
//  ShowtimeID       – showtime being booked.
//  TotalAmountCents – computed total (seats + food), never user supplied.
//  Status           – pending, confirmed or cancelled.
//  FoodItems        – snapshot of the requested food lines.
//  CreatedAt        – creation timestamp.
type Booking struct {
	ID               uint64         // bookings.booking_id
	UserID           uint64         // bookings.user_id
	ShowtimeID       uint64         // bookings.showtime_id
	TotalAmountCents int64          // bookings.total_amount_cents
	Status           string         // bookings.status
	FoodItems        []FoodOrderItem // bookings.food_items (JSON column)
	CreatedAt        time.Time      // bookings.created_at
}

// BookingSeat joins a booking to one seat and captures the seat's
// price at insertion time.  For a given showtime a seat may appear in
// at most one booking whose status is pending or confirmed; that is
// the no-double-booking invariant enforced at creation time.
type BookingSeat struct {
	BookingID  uint64 // booking_seats.booking_id
	SeatID     uint64 // booking_seats.seat_id
	PriceCents uint32 // booking_seats.price_cents (snapshot)
}

// FoodOrderItem is one denormalized food line stored in the booking's
// JSON column.  PriceCents is the catalog price captured at booking
// time.
type FoodOrderItem struct {
	ItemID     uint64 `json:"item_id"`
	Quantity   uint32 `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}
