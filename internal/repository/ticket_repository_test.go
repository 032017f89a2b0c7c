package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketCodeFormat(t *testing.T) {
	code := TicketCode(12, 34)
	assert.Regexp(t, regexp.MustCompile(`^TICKET-12-34-[0-9A-F]{8}$`), code)

	// Two codes for the same booking/seat must still differ.
	assert.NotEqual(t, code, TicketCode(12, 34))
}

func TestMintForBookingTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTicketRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT bs.seat_id, s.seat_type, bs.price_cents").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "seat_type", "price_cents"}).
			AddRow(11, "standard", 1000).
			AddRow(12, "vip", 1500))
	mock.ExpectExec("INSERT INTO tickets").
		WillReturnResult(sqlmock.NewResult(1, 2))

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	n, err := repo.MintForBookingTx(context.Background(), tx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMintForBookingTxNoSeats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTicketRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT bs.seat_id, s.seat_type, bs.price_cents").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "seat_type", "price_cents"}))

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	n, err := repo.MintForBookingTx(context.Background(), tx, 7)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCancelByBookingTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTicketRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tickets SET status = 'cancelled'").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	assert.NoError(t, repo.CancelByBookingTx(context.Background(), tx, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}
