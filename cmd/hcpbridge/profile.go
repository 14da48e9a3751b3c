package main

import (
	"fmt"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/config"
)

// doorProfile converts the door section of config.yaml into the engine's
// register map and decoding profile. Empty tables keep the built-in ones.
func doorProfile(cfg config.DoorConfig) (hoermann.RegisterMap, hoermann.Profile, error) {
	regMap := hoermann.RegisterMap{
		CommandBase: uint16(cfg.Registers.CommandBase),
		Counter:     uint16(cfg.Registers.Counter),
		StatusBase:  uint16(cfg.Registers.StatusBase),
	}

	profile := hoermann.DefaultProfile()
	profile.PositionFullScale = uint8(cfg.PositionFullScale)
	profile.LightMask = uint8(cfg.LightMask)
	profile.RelayMask = uint8(cfg.RelayMask)
	profile.SeekTolerance = cfg.SeekTolerance
	profile.KeypressDelay = cfg.GetKeypressDelay()
	profile.DeadReportTimeout = cfg.GetDeadReportTimeout()

	if len(cfg.MotionCodes) > 0 {
		profile.MotionCodes = make(map[uint8]hoermann.MotionState, len(cfg.MotionCodes))
		for code, name := range cfg.MotionCodes {
			state, err := hoermann.ParseMotionState(name)
			if err != nil {
				return regMap, profile, fmt.Errorf("door.motion_codes[0x%02X]: %w", code, err)
			}
			profile.MotionCodes[uint8(code)] = state
		}
	}

	if len(cfg.RemoteCommands) > 0 {
		profile.RemoteCommands = make(map[uint8]hoermann.CommandID, len(cfg.RemoteCommands))
		for code, name := range cfg.RemoteCommands {
			id, err := hoermann.ParseCommandID(name)
			if err != nil {
				return regMap, profile, fmt.Errorf("door.remote_commands[0x%02X]: %w", code, err)
			}
			profile.RemoteCommands[uint8(code)] = id
		}
	}

	if err := regMap.Validate(); err != nil {
		return regMap, profile, err
	}
	if err := profile.Validate(); err != nil {
		return regMap, profile, err
	}
	return regMap, profile, nil
}
