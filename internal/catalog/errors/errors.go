package errors

import "errors"

var (
	ErrGroupingNotFound = errors.New("grouping not found")

	ErrInstructorNotFound = errors.New("instructor not found")

	ErrLocationNotFound = errors.New("location not found")

	ErrInvalidGrouping = errors.New("grouping ID is required")
)
