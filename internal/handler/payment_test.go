package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu/movie-ticket-booking/internal/repository"
	"github.com/minhvu/movie-ticket-booking/pkg/logger"
)

// fakeGateway satisfies payment.Gateway for handler tests.
type fakeGateway struct {
	approvalURL string
	paymentID   string
	createErr   error
	executeErr  error
	executed    bool
}

func (f *fakeGateway) CreatePayment(_ context.Context, _ uint64, _ int64, _ string) (string, string, error) {
	if f.createErr != nil {
		return "", "", f.createErr
	}
	return f.approvalURL, f.paymentID, nil
}

func (f *fakeGateway) ExecutePayment(_ context.Context, _, _ string, _ int64) (map[string]any, error) {
	f.executed = true
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	return map[string]any{"state": "approved"}, nil
}

func newTestPaymentHandler(t *testing.T, gw *fakeGateway) (*PaymentHandler, sqlmock.Sqlmock) {
	t.Helper()
	bookings, mock, db := newTestBookingHandler(t)
	h := NewPaymentHandler(
		gw,
		repository.NewBookingRepo(db),
		repository.NewTransactionRepo(db),
		bookings,
		"https://tickets.example.com",
		"movieticketapp://payment",
		logger.NewNop(),
	)
	return h, mock
}

func expectFindBooking(mock sqlmock.Sqlmock, userID uint64, status string) {
	mock.ExpectQuery("SELECT booking_id, user_id, showtime_id, total_amount_cents, status, food_items, created_at").
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "user_id", "showtime_id", "total_amount_cents", "status", "food_items", "created_at"}).
			AddRow(42, userID, 3, 2500, status, nil, time.Now()))
}

func TestCreatePaypalPaymentSuccess(t *testing.T) {
	gw := &fakeGateway{approvalURL: "https://paypal.test/approve", paymentID: "PAY-1"}
	h, mock := newTestPaymentHandler(t, gw)

	expectFindBooking(mock, 9, "pending")
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	c, rec := newBookingContext(t, http.MethodPost, "/v1/payments/paypal/create/42", "", 9, "user")
	c.SetParamNames("bookingId")
	c.SetParamValues("42")
	require.NoError(t, h.CreatePaypalPayment(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://paypal.test/approve")
	assert.Contains(t, rec.Body.String(), "PAY-1")
}

func TestCreatePaypalPaymentNotOwner(t *testing.T) {
	h, mock := newTestPaymentHandler(t, &fakeGateway{})

	expectFindBooking(mock, 1, "pending")

	c, rec := newBookingContext(t, http.MethodPost, "/v1/payments/paypal/create/42", "", 9, "user")
	c.SetParamNames("bookingId")
	c.SetParamValues("42")
	require.NoError(t, h.CreatePaypalPayment(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreatePaypalPaymentNotPending(t *testing.T) {
	h, mock := newTestPaymentHandler(t, &fakeGateway{})

	expectFindBooking(mock, 9, "confirmed")

	c, rec := newBookingContext(t, http.MethodPost, "/v1/payments/paypal/create/42", "", 9, "user")
	c.SetParamNames("bookingId")
	c.SetParamValues("42")
	require.NoError(t, h.CreatePaypalPayment(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreatePaypalPaymentAlreadyPaid(t *testing.T) {
	h, mock := newTestPaymentHandler(t, &fakeGateway{})

	expectFindBooking(mock, 9, "pending")
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	c, rec := newBookingContext(t, http.MethodPost, "/v1/payments/paypal/create/42", "", 9, "user")
	c.SetParamNames("bookingId")
	c.SetParamValues("42")
	require.NoError(t, h.CreatePaypalPayment(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreatePaypalPaymentGatewayDown(t *testing.T) {
	h, mock := newTestPaymentHandler(t, &fakeGateway{createErr: errors.New("dial timeout")})

	expectFindBooking(mock, 9, "pending")
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	c, rec := newBookingContext(t, http.MethodPost, "/v1/payments/paypal/create/42", "", 9, "user")
	c.SetParamNames("bookingId")
	c.SetParamValues("42")
	require.NoError(t, h.CreatePaypalPayment(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExecutePaypalPaymentSuccessRedirect(t *testing.T) {
	gw := &fakeGateway{}
	h, mock := newTestPaymentHandler(t, gw)

	expectFindBooking(mock, 9, "pending")
	expectConfirmFlow(mock, "pending")

	c, rec := newBookingContext(t, http.MethodGet,
		"/v1/payments/paypal/execute?paymentId=PAY-1&PayerID=PP9&bookingId=42", "", 0, "")
	require.NoError(t, h.ExecutePaypalPayment(c))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "movieticketapp://payment?status=success&bookingId=42", rec.Header().Get("Location"))
	assert.True(t, gw.executed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutePaypalPaymentGatewayFailureRedirect(t *testing.T) {
	gw := &fakeGateway{executeErr: errors.New("payment state failed")}
	h, mock := newTestPaymentHandler(t, gw)

	expectFindBooking(mock, 9, "pending")

	c, rec := newBookingContext(t, http.MethodGet,
		"/v1/payments/paypal/execute?paymentId=PAY-1&PayerID=PP9&bookingId=42", "", 0, "")
	require.NoError(t, h.ExecutePaypalPayment(c))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "movieticketapp://payment?status=failed&bookingId=42", rec.Header().Get("Location"))
}

func TestExecutePaypalPaymentMissingParams(t *testing.T) {
	h, _ := newTestPaymentHandler(t, &fakeGateway{})

	c, rec := newBookingContext(t, http.MethodGet, "/v1/payments/paypal/execute", "", 0, "")
	require.NoError(t, h.ExecutePaypalPayment(c))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "movieticketapp://payment?status=failed", rec.Header().Get("Location"))
}

func TestExecutePaypalPaymentNotPendingRedirectsFailed(t *testing.T) {
	gw := &fakeGateway{}
	h, mock := newTestPaymentHandler(t, gw)

	expectFindBooking(mock, 9, "confirmed")

	c, rec := newBookingContext(t, http.MethodGet,
		"/v1/payments/paypal/execute?paymentId=PAY-1&PayerID=PP9&bookingId=42", "", 0, "")
	require.NoError(t, h.ExecutePaypalPayment(c))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "movieticketapp://payment?status=failed&bookingId=42", rec.Header().Get("Location"))
	assert.False(t, gw.executed)
}

func TestCancelPaypalPaymentRedirect(t *testing.T) {
	h, _ := newTestPaymentHandler(t, &fakeGateway{})

	c, rec := newBookingContext(t, http.MethodGet, "/v1/payments/paypal/cancel", "", 0, "")
	require.NoError(t, h.CancelPaypalPayment(c))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://tickets.example.com/payment-cancelled", rec.Header().Get("Location"))
}

