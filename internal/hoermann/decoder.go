package hoermann

import (
	"fmt"
	"time"
)

// Decoder turns master writes of the status registers into DoorState updates.
//
// Apart from the counter deduplication it is a pure function of the
// register value and the Profile.
type Decoder struct {
	profile     Profile
	lastCounter uint8
	haveCounter bool
}

// NewDecoder creates a Decoder for the given profile.
func NewDecoder(p Profile) *Decoder {
	return &Decoder{profile: p}
}

// scalePosition converts a raw position byte to percent.
func (d *Decoder) scalePosition(raw uint8) float64 {
	return clampPercent(float64(raw) * 100 / float64(d.profile.PositionFullScale))
}

// DecodePosition handles the position register. The low byte is the
// current position and the high byte the target position.
func (d *Decoder) DecodePosition(s *DoorState, value uint16, now time.Time) {
	s.SetCurrentPosition(d.scalePosition(uint8(value)))
	s.SetTargetPosition(d.scalePosition(uint8(value >> 8)))
	markResponse(s, now)
}

// DecodeStatus handles the status register. The low byte is the motion
// code and the high byte carries the flag bits.
//
// An unknown motion code makes the whole write malformed: it raises a
// debug message and changes nothing else, not even the validity.
func (d *Decoder) DecodeStatus(s *DoorState, value uint16, now time.Time) {
	code := uint8(value)
	m, ok := d.profile.MotionCodes[code]
	if !ok {
		s.SetDebug(fmt.Sprintf("unknown motion code 0x%02X", code))
		return
	}
	s.SetMotion(m)
	d.applyFlags(s, uint8(value>>8))
	markResponse(s, now)
}

// DecodeLightRelay handles the lamp/relay register.
func (d *Decoder) DecodeLightRelay(s *DoorState, value uint16, now time.Time) {
	d.applyFlags(s, uint8(value))
	markResponse(s, now)
}

func (d *Decoder) applyFlags(s *DoorState, flags uint8) {
	if d.profile.LightMask != 0 {
		s.SetLight(flags&d.profile.LightMask != 0)
	}
	if d.profile.RelayMask != 0 {
		s.SetRelay(flags&d.profile.RelayMask != 0)
	}
}

// DecodeCounter handles the counter register. The high byte is a counter
// and the low byte a remote command code.
//
// The first write after startup only records the counter as a baseline,
// so a command left in the register from before a restart is not replayed.
// A write repeating the last seen counter is a duplicate. For a new
// counter the command code is looked up in Profile.RemoteCommands.
//
// Returns:
//   - CommandID: The command to dispatch
//   - bool: true when the command should be dispatched
func (d *Decoder) DecodeCounter(s *DoorState, value uint16, now time.Time) (CommandID, bool) {
	markResponse(s, now)

	counter := uint8(value >> 8)
	code := uint8(value)
	if !d.haveCounter {
		d.lastCounter = counter
		d.haveCounter = true
		return Waiting, false
	}
	if counter == d.lastCounter {
		return Waiting, false
	}
	d.lastCounter = counter

	if code == 0 {
		return Waiting, false
	}
	id, ok := d.profile.RemoteCommands[code]
	if !ok || id == Waiting {
		s.SetDebug(fmt.Sprintf("unmapped remote command 0x%02X", code))
		return Waiting, false
	}
	return id, true
}

// LastCounter returns the last seen counter value.
func (d *Decoder) LastCounter() (uint8, bool) {
	return d.lastCounter, d.haveCounter
}

func markResponse(s *DoorState, now time.Time) {
	s.RecordResponse(now)
	s.SetValid(true)
}
