package hcp

import (
	"time"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
)

// Protocol identifies this bridge in message payloads.
const Protocol = "hcp"

// CommandMessage is sent to the bridge to operate the door.
// Topic: graylogic/command/hcp/{door_id}
type CommandMessage struct {
	// ID correlates the command with its ack. Generated when empty.
	ID string `json:"id"`

	// Timestamp is when the command was issued.
	Timestamp time.Time `json:"timestamp"`

	// Command is a hoermann action name (open, close, stop, set_position, ...).
	Command string `json:"command"`

	// Parameters holds position for set_position and on for light.
	Parameters hoermann.ActionParams `json:"parameters"`

	// Source indicates where the command originated ("api", "automation", ...).
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted means the command was armed or was not needed.
	AckAccepted AckStatus = "accepted"

	// AckFailed means the command was not executed.
	AckFailed AckStatus = "failed"
)

// Error codes for failed commands and requests.
const (
	ErrCodeBusy              = "BUSY"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeInvalidAction     = "INVALID_ACTION"
)

// AckMessage answers a CommandMessage.
// Topic: graylogic/ack/hcp/{door_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DoorID    string    `json:"door_id"`
	Command   string    `json:"command"`
	Status    AckStatus `json:"status"`

	// Result is the engine outcome: armed, skipped or dropped.
	Result string `json:"result,omitempty"`

	// Skipped is set when the door already satisfied the command.
	Skipped bool `json:"skipped,omitempty"`

	Protocol string    `json:"protocol"`
	Error    *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateMessage carries a door snapshot.
// Topic: graylogic/state/hcp/{door_id}
// QoS: configured, Retained: Yes
type StateMessage struct {
	DoorID    string            `json:"door_id"`
	Timestamp time.Time         `json:"timestamp"`
	Protocol  string            `json:"protocol"`
	State     hoermann.Snapshot `json:"state"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge status.
// Topic: graylogic/health/hcp
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string         `json:"bridge"`
	Timestamp     time.Time      `json:"timestamp"`
	Status        HealthStatus   `json:"status"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Door          *DoorHealth    `json:"door,omitempty"`
	Bus           *BusStatistics `json:"bus,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}

// DoorHealth summarises the door link in a health message.
type DoorHealth struct {
	ID           string               `json:"id"`
	Valid        bool                 `json:"valid"`
	Motion       hoermann.MotionState `json:"motion"`
	LastResponse *time.Time           `json:"last_response,omitempty"`
}

// BusStatistics contains Modbus slave counters.
type BusStatistics struct {
	Requests    uint64     `json:"requests"`
	Exceptions  uint64     `json:"exceptions"`
	LastRequest *time.Time `json:"last_request,omitempty"`
}

// Request actions.
const (
	ActionReadState = "read_state"
)

// RequestMessage asks the bridge for data.
// Topic: graylogic/request/hcp/{door_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
}

// ResponseMessage answers a RequestMessage.
// Topic: graylogic/response/hcp/{door_id}
type ResponseMessage struct {
	RequestID string             `json:"request_id"`
	Timestamp time.Time          `json:"timestamp"`
	Success   bool               `json:"success"`
	State     *hoermann.Snapshot `json:"state,omitempty"`
	Error     *AckError          `json:"error,omitempty"`
}

// NewAckMessage builds the ack for a command outcome.
//
// Parameters:
//   - cmd: The command being answered
//   - doorID: Door the command addressed
//   - result: Engine outcome; ignored when err is non-nil
//   - err: Validation error from the engine, if any
func NewAckMessage(cmd CommandMessage, doorID string, result hoermann.RequestResult, err error) AckMessage {
	ack := AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DoorID:    doorID,
		Command:   cmd.Command,
		Protocol:  Protocol,
	}

	if err != nil {
		ack.Status = AckFailed
		ack.Error = &AckError{Code: errorCode(err), Message: err.Error()}
		return ack
	}

	ack.Result = result.String()
	switch result {
	case hoermann.Armed:
		ack.Status = AckAccepted
	case hoermann.Skipped:
		ack.Status = AckAccepted
		ack.Skipped = true
	default:
		ack.Status = AckFailed
		ack.Error = &AckError{Code: ErrCodeBusy, Message: "another command is in flight"}
	}
	return ack
}

// NewStateMessage wraps a snapshot for publishing.
func NewStateMessage(doorID string, snap hoermann.Snapshot) StateMessage {
	return StateMessage{
		DoorID:    doorID,
		Timestamp: time.Now().UTC(),
		Protocol:  Protocol,
		State:     snap,
	}
}
