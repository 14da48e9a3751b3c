package hoermann

import (
	"errors"
	"fmt"
	"time"
)

// Defaults of the reference drive.
const (
	// DefaultKeypressDelay is the minimum time between press and release.
	DefaultKeypressDelay = 100 * time.Millisecond

	// DefaultDeadReportTimeout is how long the drive may stay silent
	// before the door state is considered stale.
	DefaultDeadReportTimeout = 60 * time.Second

	// DefaultPositionFullScale is the raw position value reported for a
	// fully open door.
	DefaultPositionFullScale = 200

	// DefaultSeekTolerance is how close (in percent) a position seek must
	// get before the door is stopped.
	DefaultSeekTolerance = 2.0

	// DefaultCounterRegister holds the counter+command pair written by the
	// master.
	DefaultCounterRegister uint16 = 0x9C41

	// DefaultCommandBase is the base of the command block. The two
	// command registers are base+2 and base+3.
	DefaultCommandBase uint16 = 0x9CB9

	// DefaultStatusBase is the base of the status block written by the
	// drive.
	DefaultStatusBase uint16 = 0x9D31
)

// Offsets into the register blocks.
const (
	commandAOffset   = 2
	commandBOffset   = 3
	commandBlockSize = 5
	positionOffset   = 4
	statusOffset     = 5
	lightRelayOffset = 6
	statusBlockSize  = 8
	counterBlockSize = 1
)

// Range is a contiguous block of holding registers.
type Range struct {
	Start uint16
	Count uint16
}

// Contains reports whether addr falls inside r.
func (r Range) Contains(addr uint16) bool {
	return uint32(addr) >= uint32(r.Start) && uint32(addr) < uint32(r.Start)+uint32(r.Count)
}

// RegisterMap locates the modeled registers in the drive's address space.
type RegisterMap struct {
	CommandBase uint16
	Counter     uint16
	StatusBase  uint16
}

// DefaultRegisterMap returns the addresses used by the reference drive.
func DefaultRegisterMap() RegisterMap {
	return RegisterMap{
		CommandBase: DefaultCommandBase,
		Counter:     DefaultCounterRegister,
		StatusBase:  DefaultStatusBase,
	}
}

// CommandA is the first command register.
func (m RegisterMap) CommandA() uint16 { return m.CommandBase + commandAOffset }

// CommandB is the second command register.
func (m RegisterMap) CommandB() uint16 { return m.CommandBase + commandBOffset }

// Position is the register carrying current and target position.
func (m RegisterMap) Position() uint16 { return m.StatusBase + positionOffset }

// Status is the register carrying the motion code and flag bits.
func (m RegisterMap) Status() uint16 { return m.StatusBase + statusOffset }

// LightRelay is the register carrying the lamp and relay bits.
func (m RegisterMap) LightRelay() uint16 { return m.StatusBase + lightRelayOffset }

// Ranges returns the register blocks to declare on the register service.
func (m RegisterMap) Ranges() []Range {
	return []Range{
		{Start: m.CommandBase, Count: commandBlockSize},
		{Start: m.Counter, Count: counterBlockSize},
		{Start: m.StatusBase, Count: statusBlockSize},
	}
}

// Validate checks that the blocks fit the address space and do not overlap.
func (m RegisterMap) Validate() error {
	ranges := m.Ranges()
	for _, r := range ranges {
		if uint32(r.Start)+uint32(r.Count) > 0x10000 {
			return fmt.Errorf("%w: block at 0x%04X overflows the address space", ErrInvalidRegisterMap, r.Start)
		}
	}
	for i := range ranges {
		for j := i + 1; j < len(ranges); j++ {
			a, b := ranges[i], ranges[j]
			if a.Contains(b.Start) || b.Contains(a.Start) {
				return fmt.Errorf("%w: blocks at 0x%04X and 0x%04X overlap", ErrInvalidRegisterMap, a.Start, b.Start)
			}
		}
	}
	return nil
}

// Profile holds the device-specific decoding parameters.
type Profile struct {
	// PositionFullScale is the raw value of a fully open door.
	PositionFullScale uint8

	// MotionCodes maps the low byte of the status register to a motion state.
	MotionCodes map[uint8]MotionState

	// LightMask selects the lamp bit in the flag byte.
	LightMask uint8

	// RelayMask selects the option relay bit in the flag byte.
	RelayMask uint8

	// RemoteCommands maps the command byte of the counter register to a
	// catalog entry.
	RemoteCommands map[uint8]CommandID

	// SeekTolerance is the position window, in percent, for SetPosition.
	SeekTolerance float64

	// KeypressDelay is the minimum press duration.
	KeypressDelay time.Duration

	// DeadReportTimeout is the silence after which the state is stale.
	DeadReportTimeout time.Duration
}

// DefaultProfile returns the decoding parameters of the reference drive.
// Each call returns fresh maps.
func DefaultProfile() Profile {
	return Profile{
		PositionFullScale: DefaultPositionFullScale,
		MotionCodes: map[uint8]MotionState{
			0x00: Stopped,
			0x01: Opening,
			0x02: Closing,
			0x05: MovingToHalf,
			0x09: MovingToVent,
			0x10: Vent,
			0x20: Open,
			0x40: Closed,
			0x80: HalfOpen,
		},
		LightMask: 0x10,
		RelayMask: 0x01,
		RemoteCommands: map[uint8]CommandID{
			0x01: OpenDoor,
			0x02: CloseDoor,
			0x03: Impulse,
			0x04: OpenHalf,
			0x05: VentPosition,
			0x06: ToggleLamp,
		},
		SeekTolerance:     DefaultSeekTolerance,
		KeypressDelay:     DefaultKeypressDelay,
		DeadReportTimeout: DefaultDeadReportTimeout,
	}
}

// Validate checks the profile for unusable values.
func (p Profile) Validate() error {
	var errs []error

	if p.PositionFullScale == 0 {
		errs = append(errs, errors.New("position full scale must be positive"))
	}
	if p.KeypressDelay <= 0 {
		errs = append(errs, errors.New("keypress delay must be positive"))
	}
	if p.DeadReportTimeout <= 0 {
		errs = append(errs, errors.New("dead report timeout must be positive"))
	}
	if p.SeekTolerance < 0 || p.SeekTolerance >= 50 {
		errs = append(errs, errors.New("seek tolerance must be in [0, 50)"))
	}
	for code, state := range p.MotionCodes {
		if state >= motionStateCount {
			errs = append(errs, fmt.Errorf("motion code 0x%02X maps to unknown state %d", code, state))
		}
	}
	for code, id := range p.RemoteCommands {
		if !id.Valid() {
			errs = append(errs, fmt.Errorf("remote command 0x%02X maps to unknown command %d", code, id))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, errors.Join(errs...))
	}
	return nil
}
