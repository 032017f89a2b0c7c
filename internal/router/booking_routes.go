package router

import (
	"github.com/labstack/echo/v4"

	"github.com/minhvu/movie-ticket-booking/internal/handler"
	"github.com/minhvu/movie-ticket-booking/internal/middleware"
)

// RegisterBooking registers the booking ledger endpoints under
// /v1/bookings.  Seat availability and the concessions catalog are
// public so clients can browse before signing in; every mutating
// endpoint and every read of booking data requires a valid JWT.
// Admin listings additionally require the admin role.
//
// cache applies only to the public reads: the cache key ignores the
// caller's identity, so per-user responses must never pass through it.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	// Public browse endpoints: seat availability for a showtime and the
	// food catalog.
	e.GET("/v1/bookings/showtimes/:showtimeId/seats", h.GetAvailableSeats, cache)
	e.GET("/v1/bookings/food-items", h.GetFoodItems, cache)

	g := e.Group(
		"/v1/bookings",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("user", "admin"),
	)
	g.POST("", h.CreateBooking)
	g.GET("/:bookingId", h.GetBookingDetails)
	g.PUT("/:bookingId/confirm", h.ConfirmBooking)
	g.POST("/:bookingId/cancel", h.CancelBooking)
	g.GET("/users/:userId", h.GetUserBookings)

	// Admin reporting endpoints.
	admin := e.Group(
		"/v1/bookings/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("admin"),
	)
	admin.GET("/bookings", h.GetAllBookings)
	admin.GET("/tickets", h.GetAllTickets)
}
