package converter

import "errors"

// Converter errors.
var (
	// ErrUnknownConverter is returned when no converter is registered under a name.
	ErrUnknownConverter = errors.New("unknown converter")

	// ErrAlreadyRegistered is returned when registering a duplicate name.
	ErrAlreadyRegistered = errors.New("converter already registered")

	// ErrUnknownFileClass is returned when a file name does not say which
	// feature class its rows describe.
	ErrUnknownFileClass = errors.New("could not determine class from filename")
)
