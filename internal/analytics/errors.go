package analytics

import "errors"

var (
	// ErrInvalidConfig is returned when the input table cannot be processed
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidArgument is returned for unsupported method names and options
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrColumnNotFound is returned when an operation's source column is absent
	ErrColumnNotFound = errors.New("column not found")
)
