package hcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	defaultPollInterval = 100 * time.Millisecond

	// SourceMQTT is the command source recorded for MQTT commands without one.
	SourceMQTT = "mqtt"
)

// Logger is the logging interface used by the bridge.
// Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MQTTClient is the subset of the MQTT client the bridge needs.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Door is the engine surface the bridge drives. *hoermann.Engine satisfies it.
type Door interface {
	Perform(action string, p hoermann.ActionParams) (hoermann.RequestResult, error)
	Snapshot() hoermann.Snapshot
	Drain() hoermann.Snapshot
}

// StateObserver receives every snapshot the bridge publishes.
type StateObserver interface {
	ObserveDoorState(doorID string, snap hoermann.Snapshot)
}

// StateObserverFunc adapts a function to StateObserver.
type StateObserverFunc func(doorID string, snap hoermann.Snapshot)

// ObserveDoorState calls f.
func (f StateObserverFunc) ObserveDoorState(doorID string, snap hoermann.Snapshot) {
	f(doorID, snap)
}

// CommandObserver receives the outcome of every command, whatever its source.
type CommandObserver interface {
	ObserveDoorCommand(doorID, action, source string, result hoermann.RequestResult, err error)
}

// CommandObserverFunc adapts a function to CommandObserver.
type CommandObserverFunc func(doorID, action, source string, result hoermann.RequestResult, err error)

// ObserveDoorCommand calls f.
func (f CommandObserverFunc) ObserveDoorCommand(doorID, action, source string, result hoermann.RequestResult, err error) {
	f(doorID, action, source, result, err)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// DoorID names the door in topics and payloads. Required.
	DoorID string

	// Door is the engine. Required.
	Door Door

	// MQTTClient is the broker connection. Required.
	MQTTClient MQTTClient

	// QoS for state and ack messages. Default 1.
	QoS byte

	// PollInterval is how often the publisher drains the engine. Default 100ms.
	PollInterval time.Duration

	// Health is optional; when set the bridge starts and stops it.
	Health *HealthReporter

	// Logger is optional.
	Logger Logger
}

// Bridge translates between the door engine and MQTT.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	doorID string
	door   Door
	mqtt   MQTTClient
	qos    byte
	poll   time.Duration
	health *HealthReporter

	observers    []StateObserver
	cmdObservers []CommandObserver
	observerMu   sync.RWMutex

	// Publisher state, guarded by pubMu.
	pubMu        sync.Mutex
	published    bool
	lastValid    bool
	republishDue bool

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge. Call Start to subscribe and begin publishing.
//
// Parameters:
//   - opts: Bridge configuration
//
// Returns:
//   - *Bridge: Bridge ready to start
//   - error: ErrNoDoorID, ErrNoDoor or ErrNoMQTT
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.DoorID == "" {
		return nil, ErrNoDoorID
	}
	if opts.Door == nil {
		return nil, ErrNoDoor
	}
	if opts.MQTTClient == nil {
		return nil, ErrNoMQTT
	}

	qos := opts.QoS
	if qos == 0 {
		qos = 1
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	return &Bridge{
		doorID: opts.DoorID,
		door:   opts.Door,
		mqtt:   opts.MQTTClient,
		qos:    qos,
		poll:   poll,
		health: opts.Health,
		done:   make(chan struct{}),
		logger: opts.Logger,
	}, nil
}

// AddObserver registers a sink for published snapshots.
// Observers run on the publisher goroutine and should return quickly.
func (b *Bridge) AddObserver(o StateObserver) {
	b.observerMu.Lock()
	b.observers = append(b.observers, o)
	b.observerMu.Unlock()
}

// AddCommandObserver registers a sink for command outcomes.
func (b *Bridge) AddCommandObserver(o CommandObserver) {
	b.observerMu.Lock()
	b.cmdObservers = append(b.cmdObservers, o)
	b.observerMu.Unlock()
}

// Start subscribes to the door's command and request topics, starts health
// reporting and launches the publisher loop.
func (b *Bridge) Start(ctx context.Context) error {
	if b.health != nil {
		if err := b.health.PublishStarting(); err != nil {
			b.logError("failed to publish starting status", err)
		}
	}

	topics := mqtt.Topics{}
	if err := b.mqtt.Subscribe(topics.DoorCommand(b.doorID), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	if err := b.mqtt.Subscribe(topics.DoorRequest(b.doorID), b.qos, b.handleRequest); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}

	if b.health != nil {
		b.health.Start(ctx)
	}

	b.wg.Add(1)
	go b.publishLoop(ctx)

	b.logInfo("bridge started", "door_id", b.doorID, "poll_interval", b.poll.String())
	return nil
}

// Stop halts the publisher and health reporting. Safe to call repeatedly.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
		if b.health != nil {
			b.health.Stop()
		}
		b.logInfo("bridge stopped")
	})
}

// DoorID returns the door this bridge serves.
func (b *Bridge) DoorID() string {
	return b.doorID
}

// Snapshot returns the current door state without touching its latches.
func (b *Bridge) Snapshot() hoermann.Snapshot {
	return b.door.Snapshot()
}

// Execute runs an action on the door and notifies command observers.
// It is the single entry point for MQTT, HTTP and HomeKit commands.
func (b *Bridge) Execute(action string, p hoermann.ActionParams, source string) (hoermann.RequestResult, error) {
	result, err := b.door.Perform(action, p)

	if err != nil {
		b.logWarn("command rejected", "command", action, "source", source, "error", err)
	} else {
		b.logInfo("command executed", "command", action, "source", source, "result", result.String())
	}

	b.observerMu.RLock()
	observers := b.cmdObservers
	b.observerMu.RUnlock()
	for _, o := range observers {
		o.ObserveDoorCommand(b.doorID, action, source, result, err)
	}
	return result, err
}

// handleCommand processes a command message. Malformed payloads are logged
// and dropped; every parsed command gets an ack.
func (b *Bridge) handleCommand(_ string, payload []byte) error {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	source := cmd.Source
	if source == "" {
		source = SourceMQTT
	}

	result, err := b.Execute(cmd.Command, cmd.Parameters, source)
	b.publishJSON(mqtt.Topics{}.DoorAck(b.doorID), NewAckMessage(cmd, b.doorID, result, err), false)
	return nil
}

// handleRequest answers read-back requests on the response topic.
func (b *Bridge) handleRequest(_ string, payload []byte) error {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	resp := ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
	}
	switch req.Action {
	case ActionReadState:
		snap := b.door.Snapshot()
		resp.Success = true
		resp.State = &snap
	default:
		resp.Error = &AckError{
			Code:    ErrCodeInvalidAction,
			Message: fmt.Sprintf("unknown action: %q", req.Action),
		}
	}

	b.publishJSON(mqtt.Topics{}.DoorResponse(b.doorID), resp, false)
	return nil
}

// errorCode maps an engine validation error to an ack error code.
func errorCode(err error) string {
	if errors.Is(err, hoermann.ErrMissingParameter) {
		return ErrCodeInvalidParameters
	}
	return ErrCodeInvalidCommand
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logError("failed to marshal message", err)
		return false
	}
	if err := b.mqtt.Publish(topic, payload, b.qos, retained); err != nil {
		b.logError("failed to publish", err)
		return false
	}
	return true
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, args ...any) {
	if l := b.getLogger(); l != nil {
		l.Info(msg, args...)
	}
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if l := b.getLogger(); l != nil {
		l.Warn(msg, args...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if l := b.getLogger(); l != nil {
		l.Error(msg, "error", err)
	}
}
