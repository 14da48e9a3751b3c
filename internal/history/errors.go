package history

import "errors"

var (
	// ErrDoorIDRequired is returned when a door id is empty.
	ErrDoorIDRequired = errors.New("history: door id is required")

	// ErrInvalidRetention is returned by Prune for a non-positive duration.
	ErrInvalidRetention = errors.New("history: retention must be positive")
)
