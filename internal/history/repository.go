package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// timestampLayout is fixed-width so text order matches time order.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Sources of a recorded snapshot.
const (
	// SourceBus marks a change decoded from a drive write.
	SourceBus = "bus"

	// SourceWatchdog marks the door going stale after the drive fell silent.
	SourceWatchdog = "watchdog"
)

// Entry is one row of the door event log.
type Entry struct {
	ID              int64                `json:"id"`
	DoorID          string               `json:"door_id"`
	Motion          hoermann.MotionState `json:"motion"`
	CurrentPosition float64              `json:"current_position"`
	TargetPosition  float64              `json:"target_position"`
	LightOn         bool                 `json:"light_on"`
	RelayOn         bool                 `json:"relay_on"`
	Valid           bool                 `json:"valid"`
	Source          string               `json:"source"`
	CreatedAt       time.Time            `json:"created_at"`
}

// SQLiteRepository stores door events in the door_events table.
//
// The table is created by the embedded migrations.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record appends a snapshot to the log.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - doorID: Door identifier
//   - snap: Door snapshot to persist
//   - source: Origin of the change (SourceBus when empty)
//
// Returns:
//   - error: ErrDoorIDRequired, or the underlying database error
func (r *SQLiteRepository) Record(ctx context.Context, doorID string, snap hoermann.Snapshot, source string) error {
	if doorID == "" {
		return ErrDoorIDRequired
	}
	if source == "" {
		source = SourceBus
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO door_events
		 (door_id, motion, current_position, target_position, light_on, relay_on, valid, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doorID,
		snap.Motion.String(),
		snap.CurrentPosition,
		snap.TargetPosition,
		snap.LightOn,
		snap.RelayOn,
		snap.Valid,
		source,
		r.now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting door event: %w", err)
	}
	return nil
}

// List returns the most recent events for a door, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - doorID: Door identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Entry: Entries ordered by created_at DESC
//   - error: ErrDoorIDRequired, or the underlying query error
func (r *SQLiteRepository) List(ctx context.Context, doorID string, limit int) ([]Entry, error) {
	if doorID == "" {
		return nil, ErrDoorIDRequired
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, door_id, motion, current_position, target_position,
		        light_on, relay_on, valid, source, created_at
		 FROM door_events
		 WHERE door_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		doorID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying door events: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e         Entry
			motion    string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.DoorID, &motion, &e.CurrentPosition, &e.TargetPosition,
			&e.LightOn, &e.RelayOn, &e.Valid, &e.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning door event: %w", err)
		}

		if e.Motion, err = hoermann.ParseMotionState(motion); err != nil {
			return nil, fmt.Errorf("door event %d: %w", e.ID, err)
		}
		if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("door event %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating door events: %w", err)
	}
	return entries, nil
}

// Prune deletes events older than olderThan and returns how many went.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := r.now().UTC().Add(-olderThan).Format(timestampLayout)
	result, err := r.db.ExecContext(ctx, "DELETE FROM door_events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting door events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}
	t, err := time.Parse(timestampLayout, value)
	if err == nil {
		return t, nil
	}
	if t, rfcErr := time.Parse(time.RFC3339Nano, value); rfcErr == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
