package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCapacity       = errors.New("capacity must be positive")
	ErrCapacityBelowOccupied = errors.New("capacity below occupied seats")
	ErrUnknownEvent          = errors.New("event has no ledger")
	ErrUnknownSeat           = errors.New("unknown seat")
	ErrNoSeatMap             = errors.New("event books by count, not by named seats")
)

// UnavailableSeatsError reports a seat-label occupy attempt that could not be
// granted in full. Nothing was granted.
type UnavailableSeatsError struct {
	Labels []string
}

func (e *UnavailableSeatsError) Error() string {
	return fmt.Sprintf("seats unavailable: %v", e.Labels)
}

// NoCapacityError reports a bulk-count occupy attempt exceeding the free
// units. Nothing was granted.
type NoCapacityError struct {
	Requested int
	Available int
}

func (e *NoCapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity: requested %d, available %d", e.Requested, e.Available)
}

// NotOccupiedError reports units in a release batch that were not held. The
// remaining units of the batch were still released.
type NotOccupiedError struct {
	Labels []string
	Count  int
}

func (e *NotOccupiedError) Error() string {
	if len(e.Labels) > 0 {
		return fmt.Sprintf("seats not occupied: %v", e.Labels)
	}

	return fmt.Sprintf("%d units not occupied", e.Count)
}
