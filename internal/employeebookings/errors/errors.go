package errors

import "errors"

var (
	ErrNotFound = errors.New("employee booking not found")

	ErrInvalidID = errors.New("invalid employee booking ID format")

	// ErrDuplicateKey is returned by repositories when an insert collides with
	// an existing (employee, source, from, to) row.
	ErrDuplicateKey = errors.New("employee booking already exists for this slot")

	ErrInvalidTimeRange = errors.New("to_datetime must be after from_datetime")
)
