package hcp

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/mqtt"
)

// publishLoop drains the engine every poll interval until stopped.
func (b *Bridge) publishLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	// Publish the initial state so the retained topic is never empty.
	b.PublishIfDue()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			b.PublishIfDue()
		}
	}
}

// PublishIfDue drains the engine and publishes the snapshot when it
// changed, when validity flipped, when a debug message is pending, or when
// the previous publish failed. It reports whether a snapshot went out.
//
// Observers are notified whenever the snapshot is due, even if the MQTT
// publish fails.
func (b *Bridge) PublishIfDue() bool {
	snap := b.door.Drain()

	b.pubMu.Lock()
	validFlip := !b.published || snap.Valid != b.lastValid
	retry := b.republishDue
	b.published = true
	b.lastValid = snap.Valid
	due := snap.Changed || validFlip || snap.DebugPending || retry
	b.pubMu.Unlock()

	if !due {
		return false
	}

	if snap.DebugPending && snap.DebugMessage != "" {
		b.logWarn("door debug", "door_id", b.doorID, "message", snap.DebugMessage)
	}
	if validFlip && !snap.Valid {
		b.logWarn("door state invalid, drive is silent", "door_id", b.doorID)
	}

	ok := b.publishJSON(mqtt.Topics{}.DoorState(b.doorID), NewStateMessage(b.doorID, snap), true)

	b.pubMu.Lock()
	b.republishDue = !ok
	b.pubMu.Unlock()

	// A retry of the same snapshot has already been observed.
	if snap.Changed || validFlip || snap.DebugPending {
		b.observerMu.RLock()
		observers := b.observers
		b.observerMu.RUnlock()
		for _, o := range observers {
			o.ObserveDoorState(b.doorID, snap)
		}
	}
	return ok
}
