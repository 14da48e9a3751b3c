package mqtt

import "fmt"

// TopicPrefix is the root of every topic the bridge uses.
//
// Bridge topics use the flat scheme graylogic/{category}/{protocol}/{id}.
const TopicPrefix = "graylogic"

// Protocol is the protocol segment of every HCP bridge topic.
const Protocol = "hcp"

// Topics provides builders for the bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DoorState("garage-door")
//	// Returns: "graylogic/state/hcp/garage-door"
type Topics struct{}

// DoorState is the retained state topic of a door.
func (Topics) DoorState(doorID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, doorID)
}

// DoorCommand is the topic a door accepts commands on.
func (Topics) DoorCommand(doorID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, doorID)
}

// DoorAck is the topic command acknowledgements are published to.
func (Topics) DoorAck(doorID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, Protocol, doorID)
}

// DoorRequest is the topic for state read-back requests.
func (Topics) DoorRequest(doorID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, Protocol, doorID)
}

// DoorResponse is the topic read-back responses are published to.
func (Topics) DoorResponse(doorID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, Protocol, doorID)
}

// Health is the retained bridge health topic.
func (Topics) Health() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// Availability is the retained online/offline topic of a client, also used
// as its Last Will.
func (Topics) Availability(clientID string) string {
	return fmt.Sprintf("%s/system/%s/availability", TopicPrefix, clientID)
}

// AllDoorCommands matches commands for every door on this protocol.
func (Topics) AllDoorCommands() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, Protocol)
}
