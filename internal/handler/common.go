package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/minhvu/movie-ticket-booking/internal/repository"
)

// getUserID extracts the user_id from echo.Context and converts it to
// uint64.  The JWT middleware stores the claim value as whatever type
// the token carried, so several representations are accepted.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// isAdmin reports whether the authenticated caller carries the admin
// role.  Handlers use it for owner-or-admin resource checks.
func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == "admin"
}

// ledgerErrorStatus maps booking ledger sentinel errors onto HTTP
// status codes.  Conflict-class failures (seat already held, capacity
// exhausted, illegal status transition) map to 409 so clients can tell
// them apart from malformed input.
func ledgerErrorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrShowtimeNotFound), errors.Is(err, repository.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrSeatUnavailable),
		errors.Is(err, repository.ErrCapacityExceeded),
		errors.Is(err, repository.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, repository.ErrInvalidSeat), errors.Is(err, repository.ErrInvalidFoodItem):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Validator adapts go-playground/validator to echo's Validator
// interface so handlers can call c.Validate on bound request bodies.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds the request validator installed on the Echo
// instance at startup.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
