package repository

import (
	"context"
	"database/sql"
)

// TransactionRepo appends rows to the payment ledger.  Rows are never
// updated or deleted; a refund is a second row with a negative amount.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo returns a new TransactionRepo bound to the given database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// TransactionRecord carries the fields inserted into the transactions
// table.  TransactionDate defaults in the DB.
type TransactionRecord struct {
	BookingID       uint64
	AmountCents     int64
	PaymentMethod   string
	PaymentStatus   string
	GatewayResponse string
}

// CreateTx appends one ledger row within the provided transaction.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx *sql.Tx, rec *TransactionRecord) error {
	const q = `INSERT INTO transactions (booking_id, amount_cents, payment_method, payment_status, gateway_response)
               VALUES (?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, rec.BookingID, rec.AmountCents, rec.PaymentMethod, rec.PaymentStatus, rec.GatewayResponse)
	return err
}

// LatestCompletedTx returns the amount and method of the most recent
// completed payment for a booking, locking the ledger inside the
// caller's transaction.  found is false when the booking was never
// paid; cancellation then skips the refund row.
func (r *TransactionRepo) LatestCompletedTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (amountCents int64, method string, found bool, err error) {
	const q = `SELECT amount_cents, payment_method FROM transactions
               WHERE booking_id = ? AND payment_status = 'completed'
               ORDER BY transaction_date DESC LIMIT 1`
	err = tx.QueryRowContext(ctx, q, bookingID).Scan(&amountCents, &method)
	if err == sql.ErrNoRows {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, err
	}
	return amountCents, method, true, nil
}

// HasCompleted reports whether a booking already has a completed
// payment.  The payment handler refuses to start a second gateway
// checkout for such a booking.
func (r *TransactionRepo) HasCompleted(ctx context.Context, bookingID uint64) (bool, error) {
	const q = `SELECT COUNT(*) FROM transactions WHERE booking_id = ? AND payment_status = 'completed'`
	var n int
	if err := r.db.QueryRowContext(ctx, q, bookingID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
