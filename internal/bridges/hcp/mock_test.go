package hcp

import (
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/modbus"
)

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// mockMQTT implements MQTTClient and HealthPublisher for testing.
type mockMQTT struct {
	mu        sync.Mutex
	connected bool
	failNext  bool
	messages  []publishedMessage
	handlers  map[string]mqtt.MessageHandler
}

func newMockMQTT(connected bool) *mockMQTT {
	return &mockMQTT{connected: connected, handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return errors.New("broker unavailable")
	}
	m.messages = append(m.messages, publishedMessage{topic: topic, payload: payload, qos: qos, retained: retained})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockMQTT) deliver(topic string, payload []byte) error {
	m.mu.Lock()
	h := m.handlers[topic]
	m.mu.Unlock()
	if h == nil {
		return errors.New("no handler for " + topic)
	}
	return h(topic, payload)
}

func (m *mockMQTT) failNextPublish() {
	m.mu.Lock()
	m.failNext = true
	m.mu.Unlock()
}

func (m *mockMQTT) getMessages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]publishedMessage, len(m.messages))
	copy(result, m.messages)
	return result
}

func (m *mockMQTT) onTopic(topic string) []publishedMessage {
	var out []publishedMessage
	for _, msg := range m.getMessages() {
		if msg.topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

// fakeDoor implements Door with scripted results.
type fakeDoor struct {
	mu      sync.Mutex
	snap    hoermann.Snapshot
	result  hoermann.RequestResult
	err     error
	actions []string
}

func newFakeDoor() *fakeDoor {
	return &fakeDoor{
		snap:   hoermann.Snapshot{Motion: hoermann.Closed, Valid: true, Changed: true},
		result: hoermann.Armed,
	}
}

func (d *fakeDoor) Perform(action string, _ hoermann.ActionParams) (hoermann.RequestResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, action)
	if d.err != nil {
		return 0, d.err
	}
	return d.result, nil
}

func (d *fakeDoor) Snapshot() hoermann.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

func (d *fakeDoor) Drain() hoermann.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.snap
	d.snap.Changed = false
	d.snap.DebugPending = false
	return s
}

func (d *fakeDoor) update(fn func(s *hoermann.Snapshot)) {
	d.mu.Lock()
	fn(&d.snap)
	d.mu.Unlock()
}

type fakeBus struct{ stats modbus.Stats }

func (b fakeBus) Stats() modbus.Stats { return b.stats }

type fakeDoorSource struct {
	id   string
	snap hoermann.Snapshot
}

func (f fakeDoorSource) DoorID() string              { return f.id }
func (f fakeDoorSource) Snapshot() hoermann.Snapshot { return f.snap }

var testLastResponse = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
