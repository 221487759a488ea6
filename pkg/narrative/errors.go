package narrative

import "errors"

var (
	// ErrUnknownVariant is returned when a narrative variant name is not registered.
	ErrUnknownVariant = errors.New("unknown narrative variant")

	// ErrInvalidConfig is returned when a narrative fails validation.
	ErrInvalidConfig = errors.New("invalid narrative config")
)
