// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios and map
// them to the right HTTP status: not-found errors become 404, ownership
// failures become 403 and conflict-class errors (a seat already held,
// capacity exhausted, an illegal status transition) become 409 so that
// clients can tell "retry with different input" apart from "try again
// later".
package repository

import "errors"

// ErrShowtimeNotFound is returned when the requested showtime does not
// exist.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrBookingNotFound is returned when the requested booking does not
// exist.
var ErrBookingNotFound = errors.New("booking not found")

// ErrInvalidSeat is returned when a requested seat does not belong to
// the showtime's hall.
var ErrInvalidSeat = errors.New("seat is invalid for this showtime")

// ErrSeatUnavailable is returned when a requested seat is already
// attached to a pending or confirmed booking for the showtime.  This is
// the race-prevention check; it runs under the showtime row lock.
var ErrSeatUnavailable = errors.New("seat is already booked or pending for this showtime")

// ErrCapacityExceeded is returned when more seats are requested than
// the showtime has available.
var ErrCapacityExceeded = errors.New("not enough seats available for this showtime")

// ErrInvalidFoodItem is returned when a food line references an
// unknown or unavailable catalog item or has a non-positive quantity.
var ErrInvalidFoodItem = errors.New("invalid food item or quantity")

// ErrInvalidStateTransition is returned when confirm or cancel is
// attempted from a status that does not allow it.  Re-confirming a
// confirmed booking and re-cancelling a cancelled one both land here.
var ErrInvalidStateTransition = errors.New("booking status does not allow this transition")

// ErrForbidden is returned when the caller attempts an operation on a
// booking they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")
