package kafka

import "errors"

var (
	ErrProducerClosed = errors.New("kafka producer is closed")

	ErrEmptyKey = errors.New("message key cannot be empty")

	ErrEmptyValue = errors.New("message value cannot be empty")

	// ErrEncodeValue is returned by Publish when the builder could not encode
	// the payload.
	ErrEncodeValue = errors.New("message value could not be encoded")
)
