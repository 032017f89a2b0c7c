package model

import "time"

// Showtime represents a scheduled screening of a movie in a particular
// hall over a fixed time window.  The end time is derived from the
// movie's duration when the showtime is scheduled.  AvailableSeats is a
// denormalized counter maintained by the catalog side; the booking
// engine treats it as a hint only and always derives real availability
// from the booking_seats join.
//
// Fields:
//  ID             – primary key identifier.
//  MovieID        – movie being screened.
//  HallID         – hall where the screening takes place.
//  StartTime      – when the screening begins.
//  EndTime        – when the screening ends.
//  AvailableSeats – cached count of unbooked seats (hint, not truth).
//  IsFull         – cached flag set when no seats remain.
type Showtime struct {
	ID             uint64    // showtimes.showtime_id
	MovieID        uint64    // showtimes.movie_id
	HallID         uint64    // showtimes.hall_id
	StartTime      time.Time // showtimes.start_time
	EndTime        time.Time // showtimes.end_time
	AvailableSeats uint32    // showtimes.available_seats
	IsFull         bool      // showtimes.is_full
}
