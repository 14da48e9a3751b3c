package main

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/audit"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/bridges/hcp"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/history"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/logging"
)

// historyWriteTimeout bounds a single history insert.
const historyWriteTimeout = 2 * time.Second

// historyRecorder records every published snapshot. Snapshots taken while
// the drive is silent are attributed to the watchdog.
func historyRecorder(repo *history.SQLiteRepository, log *logging.Logger) hcp.StateObserver {
	return hcp.StateObserverFunc(func(doorID string, snap hoermann.Snapshot) {
		source := history.SourceBus
		if !snap.Valid {
			source = history.SourceWatchdog
		}

		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := repo.Record(ctx, doorID, snap, source); err != nil {
			log.Warn("history write failed", "door_id", doorID, "error", err)
		}
	})
}

// auditRecorder appends every command to the audit trail, including the
// ones the engine rejected.
func auditRecorder(repo audit.Repository, log *logging.Logger) hcp.CommandObserver {
	return hcp.CommandObserverFunc(func(doorID, action, source string, result hoermann.RequestResult, err error) {
		entry := &audit.CommandLog{
			DoorID:  doorID,
			Command: action,
			Source:  source,
			Result:  result.String(),
		}
		if err != nil {
			entry.Result = audit.ResultRejected
			entry.Error = err.Error()
		}

		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := repo.Create(ctx, entry); err != nil {
			log.Warn("command log write failed", "door_id", doorID, "error", err)
		}
	})
}

// influxStateWriter sends published snapshots to InfluxDB.
func influxStateWriter(client *influxdb.Client) hcp.StateObserver {
	return hcp.StateObserverFunc(func(doorID string, snap hoermann.Snapshot) {
		client.WriteDoorState(doorID, snap, time.Now())
	})
}

// influxCommandWriter sends command outcomes to InfluxDB.
func influxCommandWriter(client *influxdb.Client) hcp.CommandObserver {
	return hcp.CommandObserverFunc(func(doorID, action, source string, result hoermann.RequestResult, err error) {
		outcome := result.String()
		if err != nil {
			outcome = audit.ResultRejected
		}
		client.WriteDoorCommand(doorID, action, source, outcome, time.Now())
	})
}

// pruneHistory deletes events older than retention once a day until ctx
// is cancelled.
func pruneHistory(ctx context.Context, repo *history.SQLiteRepository, retention time.Duration, log *logging.Logger) {
	prune := func() {
		n, err := repo.Prune(ctx, retention)
		if err != nil {
			log.Warn("history prune failed", "error", err)
			return
		}
		if n > 0 {
			log.Info("history pruned", "deleted", n, "retention", retention.String())
		}
	}

	prune()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
