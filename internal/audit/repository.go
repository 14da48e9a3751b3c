// Package audit records every door command in the door_commands table so
// operators can see who moved the door and what the engine answered.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Results stored for a command.
const (
	ResultRejected = "rejected"
)

// timestampLayout is fixed-width so text order matches time order.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// CommandLog is one audited door command.
type CommandLog struct {
	ID        string    `json:"id"`
	DoorID    string    `json:"door_id"`
	Command   string    `json:"command"`
	Source    string    `json:"source"`
	Result    string    `json:"result"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which command logs to return.
type Filter struct {
	DoorID string // optional
	Source string // optional: mqtt, api, homekit, ...
	Result string // optional: armed, skipped, dropped, rejected
	Limit  int    // default 50, max 200
	Offset int
}

// ListResult contains the paginated command logs.
type ListResult struct {
	Logs   []CommandLog `json:"logs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// Repository defines the command log operations.
type Repository interface {
	Create(ctx context.Context, log *CommandLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores command logs in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new command log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a command log. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, log *CommandLog) error {
	if log.ID == "" {
		log.ID = "cmd-" + uuid.NewString()[:8]
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO door_commands (id, door_id, command, source, result, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.DoorID, log.Command, log.Source, log.Result,
		nullableString(log.Error),
		log.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command log: %w", err)
	}
	return nil
}

// nullableString maps "" to NULL for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns command logs matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) { //nolint:gocognit // WHERE clause assembly from filter fields
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.DoorID != "" {
		conditions = append(conditions, "door_id = ?")
		args = append(args, filter.DoorID)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.Result != "" {
		conditions = append(conditions, "result = ?")
		args = append(args, filter.Result)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM door_commands %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command logs: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		"SELECT id, door_id, command, source, result, error, created_at FROM door_commands %s ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command logs: %w", err)
	}
	defer rows.Close()

	logs := []CommandLog{}
	for rows.Next() {
		var log CommandLog
		var errText sql.NullString
		var createdAt string

		if err := rows.Scan(&log.ID, &log.DoorID, &log.Command, &log.Source, &log.Result, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command log: %w", err)
		}
		if errText.Valid {
			log.Error = errText.String
		}

		t, err := time.Parse(timestampLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command log timestamp %q: %w", createdAt, err)
		}
		log.CreatedAt = t

		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command logs: %w", err)
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
