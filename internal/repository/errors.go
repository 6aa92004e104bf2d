package repository

import "errors"

var (
	// ErrInvalidSource indicates a location that cannot be routed to any source
	ErrInvalidSource = errors.New("invalid input source")

	// ErrSourceNotFound indicates the input does not exist at the location
	ErrSourceNotFound = errors.New("input not found")

	// ErrSourceUnavailable indicates the source could not be read
	ErrSourceUnavailable = errors.New("input source unavailable")
)
