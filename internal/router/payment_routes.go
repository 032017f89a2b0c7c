package router

import (
	"github.com/labstack/echo/v4"

	"github.com/minhvu/movie-ticket-booking/internal/handler"
	"github.com/minhvu/movie-ticket-booking/internal/middleware"
)

// RegisterPayment registers the PayPal checkout endpoints under
// /v1/payments.  Creating a payment requires a valid JWT; the execute
// and cancel endpoints are browser redirect targets hit by PayPal on
// the payer's behalf, so they carry no token and re-validate booking
// state inside the handler instead.
func RegisterPayment(e *echo.Echo, h *handler.PaymentHandler, jwtSecret string) {
	g := e.Group(
		"/v1/payments/paypal",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("user", "admin"),
	)
	g.POST("/create/:bookingId", h.CreatePaypalPayment)

	// Redirect targets reached from the payer's browser after PayPal
	// approval or cancellation.
	e.GET("/v1/payments/paypal/execute", h.ExecutePaypalPayment)
	e.GET("/v1/payments/paypal/cancel", h.CancelPaypalPayment)
}
