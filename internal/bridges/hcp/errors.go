package hcp

import "errors"

// Domain errors for the HCP bridge package.
var (
	// ErrNoDoor is returned by NewBridge without a door engine.
	ErrNoDoor = errors.New("hcp: door engine is required")

	// ErrNoMQTT is returned by NewBridge without an MQTT client.
	ErrNoMQTT = errors.New("hcp: MQTT client is required")

	// ErrNoDoorID is returned by NewBridge without a door id.
	ErrNoDoorID = errors.New("hcp: door id is required")
)
