package homekit

import (
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/service"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
)

// Source is recorded for commands issued from HomeKit.
const Source = "homekit"

// Accessory IDs stay fixed so pairings survive restarts.
const (
	doorAccessoryID = 2
	lampAccessoryID = 3
)

const manufacturer = "Hörmann"

// Door is the bridge surface HomeKit drives. *hcp.Bridge satisfies it.
type Door interface {
	DoorID() string
	Snapshot() hoermann.Snapshot
	Execute(action string, p hoermann.ActionParams, source string) (hoermann.RequestResult, error)
}

// Logger is the logging interface used by the accessories.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// GarageDoor is the opener accessory.
type GarageDoor struct {
	*accessory.A
	Opener *service.GarageDoorOpener
}

// NewGarageDoor creates a garage door opener accessory.
func NewGarageDoor(info accessory.Info) *GarageDoor {
	acc := GarageDoor{}
	acc.A = accessory.New(info, accessory.TypeGarageDoorOpener)
	acc.Opener = service.NewGarageDoorOpener()

	acc.AddS(acc.Opener.S)
	return &acc
}

// Accessories ties the HomeKit accessories to the door.
// It implements hcp.StateObserver.
type Accessories struct {
	Bridge *accessory.Bridge
	Door   *GarageDoor
	Lamp   *accessory.Lightbulb

	door   Door
	logger Logger
}

// NewAccessories builds the accessory tree and wires remote updates to door.
func NewAccessories(name, version string, door Door, logger Logger) *Accessories {
	a := &Accessories{
		Bridge: accessory.NewBridge(accessory.Info{
			Name:         name,
			Manufacturer: manufacturer,
			Firmware:     version,
		}),
		Door: NewGarageDoor(accessory.Info{
			Name:         name + " Door",
			SerialNumber: door.DoorID(),
			Manufacturer: manufacturer,
			Model:        "HCP2",
			Firmware:     version,
		}),
		Lamp: accessory.NewLightbulb(accessory.Info{
			Name:         name + " Light",
			SerialNumber: door.DoorID() + "-light",
			Manufacturer: manufacturer,
			Firmware:     version,
		}),
		door:   door,
		logger: logger,
	}
	a.Door.Id = doorAccessoryID
	a.Lamp.Id = lampAccessoryID

	a.Door.Opener.TargetDoorState.OnValueRemoteUpdate(a.handleTargetUpdate)
	a.Lamp.Lightbulb.On.OnValueRemoteUpdate(a.handleLampUpdate)

	a.ObserveDoorState(door.DoorID(), door.Snapshot())
	return a
}

// ObserveDoorState copies a snapshot into the characteristics.
func (a *Accessories) ObserveDoorState(_ string, snap hoermann.Snapshot) {
	a.Door.Opener.CurrentDoorState.SetValue(CurrentDoorState(snap.Motion))
	a.Door.Opener.TargetDoorState.SetValue(TargetDoorState(snap))
	a.Door.Opener.ObstructionDetected.SetValue(false)
	a.Lamp.Lightbulb.On.SetValue(snap.LightOn)
}

// handleTargetUpdate opens or closes the door. When the command is not
// armed the target falls back to what the door is doing.
func (a *Accessories) handleTargetUpdate(target int) {
	action, ok := actionForTarget(target)
	if !ok {
		a.logWarn("homekit target out of range", "target", target)
		return
	}

	result, err := a.door.Execute(action, hoermann.ActionParams{}, Source)
	if err != nil || result == hoermann.Dropped {
		a.logWarn("homekit command not executed", "command", action, "result", result.String(), "error", err)
		a.Door.Opener.TargetDoorState.SetValue(TargetDoorState(a.door.Snapshot()))
	}
}

// handleLampUpdate switches the lamp.
func (a *Accessories) handleLampUpdate(on bool) {
	result, err := a.door.Execute(hoermann.ActionLight, hoermann.ActionParams{On: &on}, Source)
	if err != nil || result == hoermann.Dropped {
		a.logWarn("homekit light command not executed", "on", on, "result", result.String(), "error", err)
		a.Lamp.Lightbulb.On.SetValue(a.door.Snapshot().LightOn)
	}
}

func (a *Accessories) logWarn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
