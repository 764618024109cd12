package hsi

import "errors"

var (
	// ErrUnavailable is returned when a cube file is missing, unreadable or
	// malformed.
	ErrUnavailable = errors.New("cube data unavailable")

	// ErrMalformed is returned when the stored array does not have the
	// expected [bands, height, width] layout.
	ErrMalformed = errors.New("malformed cube")
)
