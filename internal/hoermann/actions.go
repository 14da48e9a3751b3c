package hoermann

import (
	"fmt"
	"math"
)

// Action names accepted by Engine.Perform. They are the door vocabulary
// shared by MQTT commands, the HTTP API and HomeKit.
const (
	ActionOpen        = "open"
	ActionClose       = "close"
	ActionStop        = "stop"
	ActionImpulse     = "impulse"
	ActionHalf        = "half"
	ActionVent        = "vent"
	ActionToggleLight = "toggle_light"
	ActionLight       = "light"
	ActionSetPosition = "set_position"
)

// Actions lists every action name in a stable order.
func Actions() []string {
	return []string{
		ActionOpen, ActionClose, ActionStop, ActionImpulse, ActionHalf,
		ActionVent, ActionToggleLight, ActionLight, ActionSetPosition,
	}
}

// ActionParams carries the optional arguments of an action.
type ActionParams struct {
	// Position is the target percentage for set_position.
	Position *float64 `json:"position,omitempty"`

	// On is the desired lamp state for light.
	On *bool `json:"on,omitempty"`
}

// Perform runs a named action.
//
// Parameters:
//   - action: One of the Action* names
//   - p: Parameters; Position is required by set_position, On by light
//
// Returns:
//   - RequestResult: Outcome of the underlying door operation
//   - error: ErrUnknownAction or ErrMissingParameter; the door is untouched
func (e *Engine) Perform(action string, p ActionParams) (RequestResult, error) {
	switch action {
	case ActionOpen:
		return e.OpenDoor(), nil
	case ActionClose:
		return e.CloseDoor(), nil
	case ActionStop:
		return e.StopDoor(), nil
	case ActionImpulse:
		return e.ImpulseDoor(), nil
	case ActionHalf:
		return e.HalfPositionDoor(), nil
	case ActionVent:
		return e.VentilationPositionDoor(), nil
	case ActionToggleLight:
		return e.ToggleLight(), nil
	case ActionLight:
		if p.On == nil {
			return 0, fmt.Errorf("%w: light needs on", ErrMissingParameter)
		}
		return e.TurnLight(*p.On), nil
	case ActionSetPosition:
		if p.Position == nil || math.IsNaN(*p.Position) {
			return 0, fmt.Errorf("%w: set_position needs position", ErrMissingParameter)
		}
		return e.SetPosition(*p.Position), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}
