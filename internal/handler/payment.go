package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/minhvu/movie-ticket-booking/internal/model"
	"github.com/minhvu/movie-ticket-booking/internal/payment"
	"github.com/minhvu/movie-ticket-booking/internal/repository"
	"github.com/minhvu/movie-ticket-booking/pkg/logger"
)

// PaymentHandler drives the PayPal checkout flow. The create endpoint
// is authenticated and owner-checked; the execute and cancel endpoints
// are public redirect targets PayPal sends the payer's browser to, so
// they re-validate booking state instead of trusting the caller.
// Successful execution reuses the booking ledger's confirm transition
// so both payment paths share the same atomic semantics.
type PaymentHandler struct {
	Gateway     payment.Gateway
	BookingRepo *repository.BookingRepo
	TxnRepo     *repository.TransactionRepo
	Bookings    *BookingHandler
	FrontendURL string
	DeepLink    string
	Log         logger.Logger
}

// NewPaymentHandler wires the checkout flow. deepLink is the mobile
// scheme the execute endpoint redirects to, e.g.
// "movieticketapp://payment".
func NewPaymentHandler(gw payment.Gateway, bookingRepo *repository.BookingRepo, txnRepo *repository.TransactionRepo, bookings *BookingHandler, frontendURL, deepLink string, log logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		Gateway:     gw,
		BookingRepo: bookingRepo,
		TxnRepo:     txnRepo,
		Bookings:    bookings,
		FrontendURL: frontendURL,
		DeepLink:    deepLink,
		Log:         log,
	}
}

// CreatePaypalPayment handles POST /v1/payments/paypal/create/:bookingId.
// The booking must exist, belong to the caller, be pending, and have no
// completed payment yet. On success it returns the approval URL the
// client opens for the payer.
func (h *PaymentHandler) CreatePaypalPayment(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("bookingId"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx := c.Request().Context()
	booking, err := h.BookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		h.Log.Error("create payment: booking lookup failed", "booking_id", bookingID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if booking.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": repository.ErrForbidden.Error()})
	}
	if booking.Status != model.BookingStatusPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrInvalidStateTransition.Error()})
	}
	paid, err := h.TxnRepo.HasCompleted(ctx, bookingID)
	if err != nil {
		h.Log.Error("create payment: ledger check failed", "booking_id", bookingID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if paid {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is already paid"})
	}

	desc := fmt.Sprintf("Movie ticket booking #%d", bookingID)
	approvalURL, paymentID, err := h.Gateway.CreatePayment(ctx, bookingID, booking.TotalAmountCents, desc)
	if err != nil {
		h.Log.Error("create payment: gateway call failed", "booking_id", bookingID, "err", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway error"})
	}
	h.Log.Info("paypal payment created", "booking_id", bookingID, "payment_id", paymentID)
	return c.JSON(http.StatusOK, echo.Map{
		"approval_url": approvalURL,
		"payment_id":   paymentID,
	})
}

// ExecutePaypalPayment handles GET /v1/payments/paypal/execute. PayPal
// redirects the payer's browser here with paymentId, PayerID and the
// bookingId we attached to the return URL. The endpoint executes the
// payment at the gateway and confirms the booking, then redirects to
// the app deep link with status=success or status=failed. It never
// returns JSON errors: the payer is mid-redirect and only the deep
// link reaches them.
func (h *PaymentHandler) ExecutePaypalPayment(c echo.Context) error {
	paymentID := c.QueryParam("paymentId")
	payerID := c.QueryParam("PayerID")
	bookingID, err := strconv.ParseUint(c.QueryParam("bookingId"), 10, 64)
	if paymentID == "" || payerID == "" || err != nil || bookingID == 0 {
		return c.Redirect(http.StatusFound, h.DeepLink+"?status=failed")
	}
	redirectFailed := fmt.Sprintf("%s?status=failed&bookingId=%d", h.DeepLink, bookingID)

	ctx := c.Request().Context()
	booking, err := h.BookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		h.Log.Warn("execute payment: booking lookup failed", "booking_id", bookingID, "err", err)
		return c.Redirect(http.StatusFound, redirectFailed)
	}
	if booking.Status != model.BookingStatusPending {
		h.Log.Warn("execute payment: booking not pending", "booking_id", bookingID, "status", booking.Status)
		return c.Redirect(http.StatusFound, redirectFailed)
	}

	result, err := h.Gateway.ExecutePayment(ctx, paymentID, payerID, booking.TotalAmountCents)
	if err != nil {
		h.Log.Error("execute payment: gateway execute failed", "booking_id", bookingID, "payment_id", paymentID, "err", err)
		return c.Redirect(http.StatusFound, redirectFailed)
	}
	gatewayJSON := "{}"
	if raw, err := json.Marshal(result); err == nil {
		gatewayJSON = string(raw)
	}
	if err := h.Bookings.Confirm(ctx, bookingID, "paypal", gatewayJSON); err != nil {
		// Payment captured but confirm lost the race or the DB failed.
		// The ledger stays consistent (no partial writes); the payer is
		// told to contact support via the failed status.
		h.Log.Error("execute payment: confirm failed after capture", "booking_id", bookingID, "payment_id", paymentID, "err", err)
		return c.Redirect(http.StatusFound, redirectFailed)
	}
	return c.Redirect(http.StatusFound, fmt.Sprintf("%s?status=success&bookingId=%d", h.DeepLink, bookingID))
}

// CancelPaypalPayment handles GET /v1/payments/paypal/cancel. PayPal
// sends the payer here when they abandon checkout; the booking stays
// pending and may be retried or reaped later.
func (h *PaymentHandler) CancelPaypalPayment(c echo.Context) error {
	return c.Redirect(http.StatusFound, h.FrontendURL+"/payment-cancelled")
}
