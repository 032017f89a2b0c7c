// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published when a booking is successfully confirmed
// and paid. It contains enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID        uint64 `json:"booking_id"`
	UserID           uint64 `json:"user_id"`
	TicketCount      int    `json:"ticket_count"`
	TotalAmountCents int64  `json:"total_amount_cents"`
	PaymentMethod    string `json:"payment_method"`
	ConfirmedAt      string `json:"confirmed_at"`
}
