package model

import "time"

// Payment status values recorded on transaction rows.
const (
	PaymentStatusCompleted = "completed"
	PaymentStatusRefunded  = "refunded"
)

// Transaction is one append-only payment ledger row for a booking.
// Amounts are signed: positive for a payment, negative for a refund.
// A booking accumulates rows over its life (payment, then a refund
// when a confirmed booking is cancelled).
//
// Fields:
//  ID              – primary key identifier.
//  BookingID       – booking this row belongs to.
//  AmountCents     – signed amount in cents.
//  PaymentMethod   – method used (e.g. "paypal").
//  PaymentStatus   – completed or refunded.
//  GatewayResponse – raw gateway payload kept for audit.
//  TransactionDate – when the row was written.
type Transaction struct {
	ID              uint64    `json:"transaction_id"`   // transactions.transaction_id
	BookingID       uint64    `json:"booking_id"`       // transactions.booking_id
	AmountCents     int64     `json:"amount_cents"`     // transactions.amount_cents
	PaymentMethod   string    `json:"payment_method"`   // transactions.payment_method
	PaymentStatus   string    `json:"payment_status"`   // transactions.payment_status
	GatewayResponse string    `json:"gateway_response"` // transactions.gateway_response (JSON column)
	TransactionDate time.Time `json:"transaction_date"` // transactions.transaction_date
}
