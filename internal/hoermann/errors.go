package hoermann

import "errors"

// Domain errors for the hoermann package.
var (
	// ErrUnmappedRegister is returned when the master addresses a register
	// outside every declared range.
	ErrUnmappedRegister = errors.New("hoermann: register not mapped")

	// ErrUnknownCommand is returned when a command name cannot be parsed.
	ErrUnknownCommand = errors.New("hoermann: unknown command")

	// ErrInvalidProfile is returned when a device profile fails validation.
	ErrInvalidProfile = errors.New("hoermann: invalid profile")

	// ErrInvalidRegisterMap is returned when register addresses overlap or
	// fall outside the modeled range.
	ErrInvalidRegisterMap = errors.New("hoermann: invalid register map")

	// ErrUnknownAction is returned by Perform for an action it does not know.
	ErrUnknownAction = errors.New("hoermann: unknown action")

	// ErrMissingParameter is returned by Perform when an action lacks its
	// required parameter.
	ErrMissingParameter = errors.New("hoermann: missing action parameter")

	// ErrNoRegisterService is returned when an Engine is built without a
	// register service.
	ErrNoRegisterService = errors.New("hoermann: register service is required")
)
