package modbus

import "errors"

var (
	// ErrIllegalAddress maps to Modbus exception 2.
	ErrIllegalAddress = errors.New("modbus: illegal data address")

	// ErrIllegalData maps to Modbus exception 3.
	ErrIllegalData = errors.New("modbus: illegal data value")

	// ErrNoBank is returned by NewServer without a register bank.
	ErrNoBank = errors.New("modbus: register bank is required")

	// ErrDisabled is returned by NewServer when the modbus section is disabled.
	ErrDisabled = errors.New("modbus: disabled in configuration")
)
