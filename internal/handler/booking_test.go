package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu/movie-ticket-booking/internal/queue"
	"github.com/minhvu/movie-ticket-booking/internal/repository"
	"github.com/minhvu/movie-ticket-booking/pkg/logger"
)

// newTestBookingHandler wires a BookingHandler over a sqlmock database.
// Event publishing is disabled; tests that care about events install
// their own capture func.
func newTestBookingHandler(t *testing.T) (*BookingHandler, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewBookingHandler(
		repository.NewShowtimeRepo(db),
		repository.NewSeatRepo(db),
		repository.NewBookingRepo(db),
		repository.NewTransactionRepo(db),
		repository.NewTicketRepo(db),
		repository.NewFoodRepo(db),
		logger.NewNop(),
	)
	h.PublishConfirmed = nil
	return h, mock, db
}

// newBookingContext builds an echo.Context carrying an authenticated
// user, mimicking what the JWT middleware stores.
func newBookingContext(t *testing.T, method, target, body string, userID uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	c.Set("role", role)
	return c, rec
}

func TestCreateBookingSuccess(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT hall_id, available_seats FROM showtimes").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"hall_id", "available_seats"}).AddRow(5, 40))
	mock.ExpectQuery("SELECT seat_id, hall_id, seat_row, seat_number, seat_type").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "hall_id", "seat_row", "seat_number", "seat_type"}).
			AddRow(11, 5, "A", 1, "standard").
			AddRow(12, 5, "A", 2, "vip"))
	mock.ExpectQuery("SELECT bs.seat_id FROM booking_seats bs").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id"}))
	mock.ExpectQuery("SELECT seat_type, price_cents FROM seat_type_prices").
		WillReturnRows(sqlmock.NewRows([]string{"seat_type", "price_cents"}).
			AddRow("standard", 1000).
			AddRow("vip", 1500))
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(77, 1))
	mock.ExpectQuery("SELECT created_at FROM bookings").
		WithArgs(int64(77)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec("INSERT INTO booking_seats").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings",
		`{"showtime_id":3,"seat_ids":[11,12]}`, 9, "user")
	require.NoError(t, h.CreateBooking(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 77, resp["booking_id"])
	assert.Equal(t, "pending", resp["status"])
	assert.EqualValues(t, 2500, resp["total_amount_cents"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingWithFoodItems(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT hall_id, available_seats FROM showtimes").
		WillReturnRows(sqlmock.NewRows([]string{"hall_id", "available_seats"}).AddRow(5, 40))
	mock.ExpectQuery("SELECT seat_id, hall_id, seat_row, seat_number, seat_type").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "hall_id", "seat_row", "seat_number", "seat_type"}).
			AddRow(11, 5, "A", 1, "standard"))
	mock.ExpectQuery("SELECT bs.seat_id FROM booking_seats bs").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id"}))
	mock.ExpectQuery("SELECT seat_type, price_cents FROM seat_type_prices").
		WillReturnRows(sqlmock.NewRows([]string{"seat_type", "price_cents"}).AddRow("standard", 1000))
	mock.ExpectQuery("SELECT item_id, price_cents FROM food_items").
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "price_cents"}).AddRow(2, 700))
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(78, 1))
	mock.ExpectQuery("SELECT created_at FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec("INSERT INTO booking_seats").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings",
		`{"showtime_id":3,"seat_ids":[11],"food_items":[{"item_id":2,"quantity":2}]}`, 9, "user")
	require.NoError(t, h.CreateBooking(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// 1000 for the seat + 2 * 700 for the popcorn
	assert.EqualValues(t, 2400, resp["total_amount_cents"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingEmptySeats(t *testing.T) {
	h, _, _ := newTestBookingHandler(t)

	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings",
		`{"showtime_id":3,"seat_ids":[]}`, 9, "user")
	require.NoError(t, h.CreateBooking(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookingSeatConflict(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT hall_id, available_seats FROM showtimes").
		WillReturnRows(sqlmock.NewRows([]string{"hall_id", "available_seats"}).AddRow(5, 40))
	mock.ExpectQuery("SELECT seat_id, hall_id, seat_row, seat_number, seat_type").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "hall_id", "seat_row", "seat_number", "seat_type"}).
			AddRow(11, 5, "A", 1, "standard").
			AddRow(12, 5, "A", 2, "standard"))
	mock.ExpectQuery("SELECT bs.seat_id FROM booking_seats bs").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id"}).AddRow(12))
	mock.ExpectRollback()

	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings",
		`{"showtime_id":3,"seat_ids":[11,12]}`, 9, "user")
	require.NoError(t, h.CreateBooking(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "unavailable")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingSeatFromWrongHall(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT hall_id, available_seats FROM showtimes").
		WillReturnRows(sqlmock.NewRows([]string{"hall_id", "available_seats"}).AddRow(5, 40))
	// seat 99 belongs to another hall so the lookup omits it
	mock.ExpectQuery("SELECT seat_id, hall_id, seat_row, seat_number, seat_type").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "hall_id", "seat_row", "seat_number", "seat_type"}).
			AddRow(11, 5, "A", 1, "standard"))
	mock.ExpectRollback()

	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings",
		`{"showtime_id":3,"seat_ids":[11,99]}`, 9, "user")
	require.NoError(t, h.CreateBooking(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingCapacityExceeded(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT hall_id, available_seats FROM showtimes").
		WillReturnRows(sqlmock.NewRows([]string{"hall_id", "available_seats"}).AddRow(5, 1))
	mock.ExpectRollback()

	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings",
		`{"showtime_id":3,"seat_ids":[11,12]}`, 9, "user")
	require.NoError(t, h.CreateBooking(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingShowtimeNotFound(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT hall_id, available_seats FROM showtimes").
		WillReturnRows(sqlmock.NewRows([]string{"hall_id", "available_seats"}))
	mock.ExpectRollback()

	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings",
		`{"showtime_id":404,"seat_ids":[11]}`, 9, "user")
	require.NoError(t, h.CreateBooking(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBookingInvalidFoodItem(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT hall_id, available_seats FROM showtimes").
		WillReturnRows(sqlmock.NewRows([]string{"hall_id", "available_seats"}).AddRow(5, 40))
	mock.ExpectQuery("SELECT seat_id, hall_id, seat_row, seat_number, seat_type").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "hall_id", "seat_row", "seat_number", "seat_type"}).
			AddRow(11, 5, "A", 1, "standard"))
	mock.ExpectQuery("SELECT bs.seat_id FROM booking_seats bs").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id"}))
	mock.ExpectQuery("SELECT seat_type, price_cents FROM seat_type_prices").
		WillReturnRows(sqlmock.NewRows([]string{"seat_type", "price_cents"}).AddRow("standard", 1000))
	// item 55 is unknown, so the catalog lookup comes back empty
	mock.ExpectQuery("SELECT item_id, price_cents FROM food_items").
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "price_cents"}))
	mock.ExpectRollback()

	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings",
		`{"showtime_id":3,"seat_ids":[11],"food_items":[{"item_id":55,"quantity":1}]}`, 9, "user")
	require.NoError(t, h.CreateBooking(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// expectConfirmFlow registers the full confirm transaction on the mock:
// row lock, status flip, ledger insert, ticket mint.
func expectConfirmFlow(mock sqlmock.Sqlmock, status string) {
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, status, total_amount_cents FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "total_amount_cents"}).
			AddRow(9, status, 2500))
	if status != "pending" {
		mock.ExpectRollback()
		return
	}
	mock.ExpectExec("UPDATE bookings SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT bs.seat_id, s.seat_type, bs.price_cents").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "seat_type", "price_cents"}).
			AddRow(11, "standard", 1000).
			AddRow(12, "vip", 1500))
	mock.ExpectExec("INSERT INTO tickets").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()
}

func TestConfirmBookingSuccess(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)
	var published *queue.BookingConfirmedEvent
	h.PublishConfirmed = func(_ context.Context, ev queue.BookingConfirmedEvent) error {
		published = &ev
		return nil
	}
	expectConfirmFlow(mock, "pending")

	c, rec := newBookingContext(t, http.MethodPut, "/v1/bookings/42/confirm",
		`{"payment_method":"cash"}`, 9, "user")
	c.SetParamNames("bookingId")
	c.SetParamValues("42")
	require.NoError(t, h.ConfirmBooking(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, published)
	assert.Equal(t, uint64(42), published.BookingID)
	assert.Equal(t, 2, published.TicketCount)
	assert.Equal(t, int64(2500), published.TotalAmountCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmBookingNotPending(t *testing.T) {
	for _, status := range []string{"confirmed", "cancelled"} {
		t.Run(status, func(t *testing.T) {
			h, mock, _ := newTestBookingHandler(t)
			expectConfirmFlow(mock, status)

			c, rec := newBookingContext(t, http.MethodPut, "/v1/bookings/42/confirm",
				`{"payment_method":"cash"}`, 9, "user")
			c.SetParamNames("bookingId")
			c.SetParamValues("42")
			require.NoError(t, h.ConfirmBooking(c))
			assert.Equal(t, http.StatusConflict, rec.Code)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestConfirmBookingNotFound(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, status, total_amount_cents FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "total_amount_cents"}))
	mock.ExpectRollback()

	c, rec := newBookingContext(t, http.MethodPut, "/v1/bookings/404/confirm",
		`{"payment_method":"cash"}`, 9, "user")
	c.SetParamNames("bookingId")
	c.SetParamValues("404")
	require.NoError(t, h.ConfirmBooking(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelBookingConfirmedWritesRefund(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, status, total_amount_cents FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "total_amount_cents"}).
			AddRow(9, "confirmed", 2500))
	mock.ExpectExec("UPDATE bookings SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT amount_cents, payment_method FROM transactions").
		WillReturnRows(sqlmock.NewRows([]string{"amount_cents", "payment_method"}).
			AddRow(2500, "paypal"))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(int64(42), int64(-2500), "paypal", "refunded", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("UPDATE tickets SET status = 'cancelled'").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings/42/cancel", "", 9, "user")
	c.SetParamNames("bookingId")
	c.SetParamValues("42")
	require.NoError(t, h.CancelBooking(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingPendingSkipsRefund(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, status, total_amount_cents FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "total_amount_cents"}).
			AddRow(9, "pending", 2500))
	mock.ExpectExec("UPDATE bookings SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings/42/cancel", "", 9, "user")
	c.SetParamNames("bookingId")
	c.SetParamValues("42")
	require.NoError(t, h.CancelBooking(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingForbiddenForNonOwner(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, status, total_amount_cents FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "total_amount_cents"}).
			AddRow(1, "pending", 2500))
	mock.ExpectRollback()

	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings/42/cancel", "", 9, "user")
	c.SetParamNames("bookingId")
	c.SetParamValues("42")
	require.NoError(t, h.CancelBooking(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCancelBookingAlreadyCancelled(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, status, total_amount_cents FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "total_amount_cents"}).
			AddRow(9, "cancelled", 2500))
	mock.ExpectRollback()

	c, rec := newBookingContext(t, http.MethodPost, "/v1/bookings/42/cancel", "", 9, "user")
	c.SetParamNames("bookingId")
	c.SetParamValues("42")
	require.NoError(t, h.CancelBooking(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetAvailableSeats(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectQuery("SELECT showtime_id, movie_id, hall_id").
		WillReturnRows(sqlmock.NewRows([]string{"showtime_id", "movie_id", "hall_id", "start_time", "end_time", "available_seats", "is_full"}).
			AddRow(3, 1, 5, time.Now(), time.Now().Add(2*time.Hour), 40, false))
	mock.ExpectQuery("SELECT s.seat_id, s.seat_row, s.seat_number, s.seat_type").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "seat_row", "seat_number", "seat_type", "status"}).
			AddRow(11, "A", 1, "standard", "available").
			AddRow(12, "A", 2, "standard", "booked"))

	c, rec := newBookingContext(t, http.MethodGet, "/v1/bookings/showtimes/3/seats", "", 0, "")
	c.SetParamNames("showtimeId")
	c.SetParamValues("3")
	require.NoError(t, h.GetAvailableSeats(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Seats []repository.SeatStatus `json:"seats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Seats, 2)
	assert.Equal(t, "booked", resp.Seats[1].Status)
}

func TestGetAvailableSeatsShowtimeNotFound(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectQuery("SELECT showtime_id, movie_id, hall_id").
		WillReturnRows(sqlmock.NewRows([]string{"showtime_id", "movie_id", "hall_id", "start_time", "end_time", "available_seats", "is_full"}))

	c, rec := newBookingContext(t, http.MethodGet, "/v1/bookings/showtimes/404/seats", "", 0, "")
	c.SetParamNames("showtimeId")
	c.SetParamValues("404")
	require.NoError(t, h.GetAvailableSeats(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBookingDetailsOwnerOnly(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectQuery("SELECT booking_id, user_id, showtime_id, total_amount_cents, status, food_items, created_at").
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "user_id", "showtime_id", "total_amount_cents", "status", "food_items", "created_at"}).
			AddRow(42, 1, 3, 2500, "confirmed", nil, time.Now()))
	mock.ExpectQuery("SELECT bs.seat_id, s.seat_row, s.seat_number, s.seat_type, bs.price_cents").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "seat_row", "seat_number", "seat_type", "price_cents"}))
	mock.ExpectQuery("SELECT transaction_id, booking_id, amount_cents").
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id", "booking_id", "amount_cents", "payment_method", "payment_status", "gateway_response", "transaction_date"}))
	mock.ExpectQuery("SELECT ticket_id, booking_id, seat_id").
		WillReturnRows(sqlmock.NewRows([]string{"ticket_id", "booking_id", "seat_id", "ticket_code", "ticket_type", "price_cents", "status"}))

	// user 9 asking for user 1's booking without the admin role
	c, rec := newBookingContext(t, http.MethodGet, "/v1/bookings/42", "", 9, "user")
	c.SetParamNames("bookingId")
	c.SetParamValues("42")
	require.NoError(t, h.GetBookingDetails(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetUserBookingsSelf(t *testing.T) {
	h, mock, _ := newTestBookingHandler(t)

	mock.ExpectQuery("SELECT b.booking_id, b.showtime_id, b.status, b.total_amount_cents").
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "showtime_id", "status", "total_amount_cents", "payment_method", "payment_status", "transaction_date"}).
			AddRow(42, 3, "confirmed", 2500, "paypal", "completed", time.Now()))

	c, rec := newBookingContext(t, http.MethodGet, "/v1/bookings/users/9", "", 9, "user")
	c.SetParamNames("userId")
	c.SetParamValues("9")
	require.NoError(t, h.GetUserBookings(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetUserBookingsForbiddenForOtherUser(t *testing.T) {
	h, _, _ := newTestBookingHandler(t)

	c, rec := newBookingContext(t, http.MethodGet, "/v1/bookings/users/1", "", 9, "user")
	c.SetParamNames("userId")
	c.SetParamValues("1")
	require.NoError(t, h.GetUserBookings(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
