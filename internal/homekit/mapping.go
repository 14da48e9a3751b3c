package homekit

import (
	"github.com/brutella/hap/characteristic"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
)

// CurrentDoorState maps a motion state to the HomeKit current door state.
// Partial resting positions count as open.
func CurrentDoorState(m hoermann.MotionState) int {
	switch m {
	case hoermann.Open, hoermann.HalfOpen, hoermann.Vent:
		return characteristic.CurrentDoorStateOpen
	case hoermann.Opening, hoermann.MovingToHalf, hoermann.MovingToVent:
		return characteristic.CurrentDoorStateOpening
	case hoermann.Closing:
		return characteristic.CurrentDoorStateClosing
	case hoermann.Stopped:
		return characteristic.CurrentDoorStateStopped
	default:
		return characteristic.CurrentDoorStateClosed
	}
}

// TargetDoorState derives the HomeKit target from a snapshot. A moving door
// targets where it is heading; a stopped door targets open unless it is
// heading for the closed position.
func TargetDoorState(snap hoermann.Snapshot) int {
	switch snap.Motion {
	case hoermann.Closed, hoermann.Closing:
		return characteristic.TargetDoorStateClosed
	case hoermann.Stopped:
		if snap.TargetPosition <= 0 {
			return characteristic.TargetDoorStateClosed
		}
		return characteristic.TargetDoorStateOpen
	default:
		return characteristic.TargetDoorStateOpen
	}
}

// actionForTarget maps a remote target write to a door action.
func actionForTarget(target int) (string, bool) {
	switch target {
	case characteristic.TargetDoorStateOpen:
		return hoermann.ActionOpen, true
	case characteristic.TargetDoorStateClosed:
		return hoermann.ActionClose, true
	default:
		return "", false
	}
}
