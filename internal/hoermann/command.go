package hoermann

import (
	"fmt"
	"strings"
)

// Command is a simulated keypress on the drive's command registers.
//
// PressA and PressB are written to registers A (command base + 2) and
// B (command base + 3) to start the keypress. ReleaseA and ReleaseB are
// written once the keypress delay has elapsed.
type Command struct {
	PressA   uint16
	ReleaseA uint16
	PressB   uint16
	ReleaseB uint16
}

// CommandID identifies an entry in the command catalog.
type CommandID uint8

// Catalog entries.
const (
	// Waiting is the idle sentinel. Requesting it is a no-op.
	Waiting CommandID = iota
	OpenDoor
	CloseDoor
	Impulse
	OpenHalf
	VentPosition
	ToggleLamp

	commandCount
)

// catalog holds the register encoding of every command.
// Register A carries the "door request" marker, register B the key code.
var catalog = [commandCount]Command{
	Waiting:      {},
	OpenDoor:     {PressA: 0x0002, ReleaseA: 0x0001, PressB: 0x1000, ReleaseB: 0x0000},
	CloseDoor:    {PressA: 0x0002, ReleaseA: 0x0001, PressB: 0x2000, ReleaseB: 0x0000},
	Impulse:      {PressA: 0x0002, ReleaseA: 0x0001, PressB: 0x4000, ReleaseB: 0x0000},
	OpenHalf:     {PressA: 0x0002, ReleaseA: 0x0001, PressB: 0x0400, ReleaseB: 0x0000},
	VentPosition: {PressA: 0x0002, ReleaseA: 0x0001, PressB: 0x0040, ReleaseB: 0x0000},
	ToggleLamp:   {PressA: 0x0002, ReleaseA: 0x0001, PressB: 0x0200, ReleaseB: 0x0000},
}

var commandNames = [commandCount]string{
	Waiting:      "waiting",
	OpenDoor:     "open",
	CloseDoor:    "close",
	Impulse:      "impulse",
	OpenHalf:     "half",
	VentPosition: "vent",
	ToggleLamp:   "toggle_lamp",
}

// Command returns the register encoding for id.
// Unknown identifiers resolve to the Waiting encoding.
func (id CommandID) Command() Command {
	if id >= commandCount {
		return catalog[Waiting]
	}
	return catalog[id]
}

// Valid reports whether id is a catalog entry.
func (id CommandID) Valid() bool {
	return id < commandCount
}

// String returns the wire name of the command.
func (id CommandID) String() string {
	if id >= commandCount {
		return fmt.Sprintf("command(%d)", uint8(id))
	}
	return commandNames[id]
}

// ParseCommandID resolves a wire name (case-insensitive) to a CommandID.
//
// Parameters:
//   - name: Command name such as "open" or "toggle_lamp"
//
// Returns:
//   - CommandID: The matching catalog entry
//   - error: ErrUnknownCommand if the name is not in the catalog
func ParseCommandID(name string) (CommandID, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range commandNames {
		if candidate == n {
			return CommandID(i), nil
		}
	}
	return Waiting, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// MarshalText implements encoding.TextMarshaler.
func (id CommandID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *CommandID) UnmarshalText(text []byte) error {
	parsed, err := ParseCommandID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
