// Package hoermann implements the register-level logic of a Hörmann HCP2
// garage door bus peer.
//
// The door drive is the bus master. It periodically writes its status into
// a block of holding registers on this peer and reads back two command
// registers. This package decodes those status writes into a DoorState and
// turns door requests into timed press/release pulses on the command
// registers.
//
// # Architecture
//
//	┌──────────────┐  fc16/fc23  ┌──────────────┐  write hooks  ┌──────────────┐
//	│ Hörmann drive│◄───────────►│ RegisterBank │──────────────►│    Engine    │
//	│   (master)   │   RS-485    │              │◄──────────────│ (Sequencer)  │
//	└──────────────┘             └──────────────┘  cmd writes   └──────────────┘
//
// The package never frames Modbus itself. A transport (see internal/modbus)
// feeds master writes into RegisterBank.Apply and serves master reads from
// RegisterBank.ReadRange.
//
// # Commands
//
// A Command is two register values to write as a "press" followed, after
// at least Profile.KeypressDelay, by two "release" values. Only one command
// may be in flight. Requests made while one is armed are dropped, not
// queued.
//
// # Staleness
//
// Every decoded write from the drive refreshes DoorState.LastResponse. When
// no write has been decoded for Profile.DeadReportTimeout the state is
// marked invalid until the next one arrives.
//
// # Thread Safety
//
// Engine serialises bus callbacks, ticks and API calls behind one mutex.
// DoorState and Sequencer are not safe on their own and are only used
// through the Engine.
package hoermann
