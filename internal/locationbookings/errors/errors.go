package errors

import "errors"

var (
	ErrNotFound = errors.New("location booking not found")

	ErrInvalidID = errors.New("invalid location booking ID format")

	// ErrDuplicateKey is returned by repositories when an insert collides with
	// an existing slot key.
	ErrDuplicateKey = errors.New("location booking already exists for this slot key")

	ErrInvalidTimeRange = errors.New("to_datetime must be after from_datetime")
)
