package store

import "errors"

var (
	ErrNotFound         = errors.New("booking not found")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrNotWaitlisted    = errors.New("booking is not on the waitlist")
)
