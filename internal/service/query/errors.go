package query

import "errors"

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrNoSeatMap       = errors.New("event has no seat map")
	ErrForbidden       = errors.New("forbidden")
)
