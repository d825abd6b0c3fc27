package reservation

import "errors"

var (
	ErrCounterExpired   = errors.New("counter offer has lapsed")
	ErrDuplicateRequest = errors.New("guest already has an active request for this date and time")
	ErrInvalidPartySize = errors.New("party size is out of bounds")
	ErrNotFound         = errors.New("reservation not found")
	ErrValidation       = errors.New("invalid reservation request")
)
