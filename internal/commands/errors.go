package commands

import "errors"

var (
	// ErrInvalidPosition is returned for a goal outside the grid.
	ErrInvalidPosition = errors.New("invalid grid position")

	// ErrEventNotFound is returned when a goal event does not exist.
	ErrEventNotFound = errors.New("goal event not found")
)
