package mqtt

import (
	"fmt"
	"strings"
)

// maxPayloadSize bounds a single message (64 KiB). Door payloads are tiny.
const maxPayloadSize = 64 << 10

// Publish sends a message to a concrete (wildcard-free) topic and waits
// for the broker acknowledgement.
//
// Parameters:
//   - topic: Concrete topic, e.g. mqtt.Topics{}.DoorState("garage-door")
//   - payload: Message payload, typically JSON
//   - qos: 0, 1 or 2
//   - retained: Whether the broker keeps the message for new subscribers
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected or ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validatePublish(topic, payload, qos); err != nil {
		return err
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishRetained publishes a retained message with the configured QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}

func validatePublish(topic string, payload []byte, qos byte) error {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	return nil
}
