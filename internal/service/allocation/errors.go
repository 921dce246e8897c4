package allocation

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound            = errors.New("event not found")
	ErrBookingNotFound          = errors.New("booking not found")
	ErrDuplicateBooking         = errors.New("user already has an active booking for this event")
	ErrForbidden                = errors.New("requester may not act on this booking")
	ErrAlreadyCancelled         = errors.New("booking already cancelled")
	ErrInvalidCapacity          = errors.New("capacity must be positive")
	ErrCapacityBelowOccupied    = errors.New("capacity cannot drop below occupied seats")
	ErrInvalidSeatCount         = errors.New("seat count must be positive")
	ErrSeatSelectionUnsupported = errors.New("event does not book by named seats")
)

// UnknownSeatsError rejects a request naming labels outside the event's
// layout. Unknown labels can never become available, so waitlisting them
// would block the queue forever.
type UnknownSeatsError struct {
	Labels []string
}

func (e *UnknownSeatsError) Error() string {
	return fmt.Sprintf("unknown seats: %v", e.Labels)
}
