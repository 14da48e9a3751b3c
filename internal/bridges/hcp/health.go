package hcp

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/modbus"
)

const defaultHealthInterval = 30 * time.Second

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// BusStatsSource provides Modbus slave counters. *modbus.Server satisfies it.
type BusStatsSource interface {
	Stats() modbus.Stats
}

// DoorStatusSource provides the door state without clearing latches.
type DoorStatusSource interface {
	DoorID() string
	Snapshot() hoermann.Snapshot
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// BridgeID is the bridge identifier for health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Bus provides Modbus counters. Optional.
	Bus BusStatsSource

	// Door provides the door state. Optional.
	Door DoorStatusSource
}

// HealthReporter publishes the bridge status at a fixed interval.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	bus       BusStatsSource

	door   DoorStatusSource
	doorMu sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a health reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		bus:       cfg.Bus,
		door:      cfg.Door,
		done:      make(chan struct{}),
	}
}

// SetDoor attaches the door after construction; the bridge and its health
// reporter reference each other.
func (h *HealthReporter) SetDoor(door DoorStatusSource) {
	h.doorMu.Lock()
	h.door = door
	h.doorMu.Unlock()
}

// Start begins periodic health reporting.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop halts reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) getDoor() DoorStatusSource {
	h.doorMu.RLock()
	defer h.doorMu.RUnlock()
	return h.door
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	if door := h.getDoor(); door != nil && !door.Snapshot().Valid {
		return HealthDegraded, "door not responding"
	}

	return HealthHealthy, ""
}

// Report builds the health message for the given status.
func (h *HealthReporter) Report(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Bridge:        h.bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Reason:        reason,
	}

	if door := h.getDoor(); door != nil {
		snap := door.Snapshot()
		dh := &DoorHealth{ID: door.DoorID(), Valid: snap.Valid, Motion: snap.Motion}
		if !snap.LastResponse.IsZero() {
			t := snap.LastResponse.UTC()
			dh.LastResponse = &t
		}
		msg.Door = dh
	}

	if h.bus != nil {
		stats := h.bus.Stats()
		bs := &BusStatistics{Requests: stats.Requests, Exceptions: stats.Exceptions}
		if !stats.LastRequest.IsZero() {
			t := stats.LastRequest.UTC()
			bs.LastRequest = &t
		}
		msg.Bus = bs
	}
	return msg
}

// Status returns the current health message without publishing it.
func (h *HealthReporter) Status() HealthMessage {
	status, reason := h.determineStatus()
	return h.Report(status, reason)
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.Report(status, reason))
	if err != nil {
		return err
	}
	return h.publisher.Publish(mqtt.Topics{}.Health(), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
