package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
)

// Measurement names written by the bridge.
const (
	MeasurementDoorState   = "door_state"
	MeasurementDoorCommand = "door_command"
)

// WriteDoorState records one door snapshot.
//
// The motion is stored as a tag so dashboards can group by it; positions
// and flags are fields. The write is non-blocking and batched.
//
// Parameters:
//   - doorID: Door identifier from bridge.door_id
//   - snap: Snapshot as returned by Engine.Drain
//   - at: Point timestamp, normally the publish time
func (c *Client) WriteDoorState(doorID string, snap hoermann.Snapshot, at time.Time) {
	c.write(doorStatePoint(doorID, snap, at))
}

// WriteDoorCommand records the outcome of a command request.
//
//	client.WriteDoorCommand("garage-door", "open", "mqtt", "armed", time.Now())
func (c *Client) WriteDoorCommand(doorID, command, source, result string, at time.Time) {
	c.write(doorCommandPoint(doorID, command, source, result, at))
}

func doorStatePoint(doorID string, snap hoermann.Snapshot, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDoorState,
		map[string]string{
			"door_id": doorID,
			"motion":  snap.Motion.String(),
		},
		map[string]interface{}{
			"current_position": snap.CurrentPosition,
			"target_position":  snap.TargetPosition,
			"goto_position":    snap.GotoPosition,
			"light_on":         snap.LightOn,
			"relay_on":         snap.RelayOn,
			"valid":            snap.Valid,
		},
		at,
	)
}

func doorCommandPoint(doorID, command, source, result string, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDoorCommand,
		map[string]string{
			"door_id": doorID,
			"command": command,
			"source":  source,
		},
		map[string]interface{}{
			"result": result,
		},
		at,
	)
}
