package hoermann

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// MotionState is the door's reported motion or resting position.
type MotionState uint8

// Motion states reported by the drive.
const (
	Closed MotionState = iota
	Open
	Opening
	Closing
	HalfOpen
	MovingToVent
	Vent
	MovingToHalf
	Stopped

	motionStateCount
)

var motionNames = [motionStateCount]string{
	Closed:       "closed",
	Open:         "open",
	Opening:      "opening",
	Closing:      "closing",
	HalfOpen:     "half_open",
	MovingToVent: "moving_to_vent",
	Vent:         "vent",
	MovingToHalf: "moving_to_half",
	Stopped:      "stopped",
}

// String returns the wire name of the motion state.
func (m MotionState) String() string {
	if m >= motionStateCount {
		return fmt.Sprintf("motion(%d)", uint8(m))
	}
	return motionNames[m]
}

// Moving reports whether the door is travelling.
func (m MotionState) Moving() bool {
	switch m {
	case Opening, Closing, MovingToHalf, MovingToVent:
		return true
	default:
		return false
	}
}

// ParseMotionState resolves a wire name to a MotionState.
func ParseMotionState(name string) (MotionState, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range motionNames {
		if candidate == n {
			return MotionState(i), nil
		}
	}
	return Closed, fmt.Errorf("%w: unknown motion state %q", ErrInvalidProfile, name)
}

// MarshalText implements encoding.TextMarshaler.
func (m MotionState) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MotionState) UnmarshalText(text []byte) error {
	parsed, err := ParseMotionState(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// initialDebugMessage is the debug text a fresh DoorState carries.
const initialDebugMessage = "initial"

// DoorState is the last known state of the door as decoded from the bus.
//
// Setters raise the changed latch only when the stored value actually
// differs. Consumers read a Snapshot and acknowledge with ClearChanged.
type DoorState struct {
	currentPosition float64
	targetPosition  float64
	gotoPosition    float64
	motion          MotionState
	lightOn         bool
	relayOn         bool
	lastResponse    time.Time
	valid           bool
	changed         bool
	debugMessage    string
	debugPending    bool
}

// NewDoorState returns a DoorState in its power-on configuration:
// closed, invalid, with the "initial" debug message.
func NewDoorState() *DoorState {
	return &DoorState{
		motion:       Closed,
		debugMessage: initialDebugMessage,
	}
}

// Snapshot is an immutable copy of a DoorState.
type Snapshot struct {
	CurrentPosition float64     `json:"current_position"`
	TargetPosition  float64     `json:"target_position"`
	GotoPosition    float64     `json:"goto_position"`
	Motion          MotionState `json:"motion"`
	LightOn         bool        `json:"light_on"`
	RelayOn         bool        `json:"relay_on"`
	LastResponse    time.Time   `json:"last_response"`
	Valid           bool        `json:"valid"`
	Changed         bool        `json:"-"`
	DebugMessage    string      `json:"debug_message,omitempty"`
	DebugPending    bool        `json:"-"`
}

// clampPercent limits p to [0, 100]. NaN maps to 0.
func clampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// SetCurrentPosition stores the clamped current position in percent.
func (s *DoorState) SetCurrentPosition(p float64) {
	p = clampPercent(p)
	if p != s.currentPosition {
		s.currentPosition = p
		s.changed = true
	}
}

// SetTargetPosition stores the clamped target position in percent.
func (s *DoorState) SetTargetPosition(p float64) {
	p = clampPercent(p)
	if p != s.targetPosition {
		s.targetPosition = p
		s.changed = true
	}
}

// SetGotoPosition stores the clamped position requested by SetPosition.
// It is the bridge's own target, distinct from the drive's TargetPosition.
func (s *DoorState) SetGotoPosition(p float64) {
	p = clampPercent(p)
	if p != s.gotoPosition {
		s.gotoPosition = p
		s.changed = true
	}
}

// SetMotion stores the motion state.
func (s *DoorState) SetMotion(m MotionState) {
	if m != s.motion {
		s.motion = m
		s.changed = true
	}
}

// SetLight stores the lamp state.
func (s *DoorState) SetLight(on bool) {
	if on != s.lightOn {
		s.lightOn = on
		s.changed = true
	}
}

// SetRelay stores the option relay state.
func (s *DoorState) SetRelay(on bool) {
	if on != s.relayOn {
		s.relayOn = on
		s.changed = true
	}
}

// RecordResponse marks now as the time of the last decoded bus write.
func (s *DoorState) RecordResponse(now time.Time) {
	s.lastResponse = now
}

// ResponseAge returns the time since the last decoded bus write.
// A DoorState that has never seen a write reports the age since the zero time.
func (s *DoorState) ResponseAge(now time.Time) time.Duration {
	age := now.Sub(s.lastResponse)
	if age < 0 {
		return 0
	}
	return age
}

// SetValid updates the validity latch. It does not touch the changed latch.
func (s *DoorState) SetValid(valid bool) {
	s.valid = valid
}

// SetDebug stores msg and raises the debug latch.
func (s *DoorState) SetDebug(msg string) {
	s.debugMessage = msg
	s.debugPending = true
}

// ClearChanged acknowledges the changed latch.
func (s *DoorState) ClearChanged() {
	s.changed = false
}

// ClearDebug acknowledges the debug latch.
func (s *DoorState) ClearDebug() {
	s.debugPending = false
}

// Motion returns the current motion state.
func (s *DoorState) Motion() MotionState { return s.motion }

// LightOn returns the lamp state.
func (s *DoorState) LightOn() bool { return s.lightOn }

// GotoPosition returns the last position requested through SetPosition.
func (s *DoorState) GotoPosition() float64 { return s.gotoPosition }

// CurrentPosition returns the current position in percent.
func (s *DoorState) CurrentPosition() float64 { return s.currentPosition }

// Valid returns the validity latch.
func (s *DoorState) Valid() bool { return s.valid }

// Changed returns the changed latch.
func (s *DoorState) Changed() bool { return s.changed }

// Snapshot copies every field.
func (s *DoorState) Snapshot() Snapshot {
	return Snapshot{
		CurrentPosition: s.currentPosition,
		TargetPosition:  s.targetPosition,
		GotoPosition:    s.gotoPosition,
		Motion:          s.motion,
		LightOn:         s.lightOn,
		RelayOn:         s.relayOn,
		LastResponse:    s.lastResponse,
		Valid:           s.valid,
		Changed:         s.changed,
		DebugMessage:    s.debugMessage,
		DebugPending:    s.debugPending,
	}
}
