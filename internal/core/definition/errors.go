package definition

import "errors"

var (
	// Document errors

	ErrMissingID   = errors.New("node definition has no id")
	ErrDuplicateID = errors.New("duplicate node id")
	ErrInvalidData = errors.New("invalid definition data")

	// Space switch errors

	ErrInvalidDefaultDriver = errors.New("default driver is not one of the driver labels")
	ErrDuplicateDriver      = errors.New("duplicate driver label")
	ErrMissingLabel         = errors.New("space switch has no label")
)
