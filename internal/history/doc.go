// Package history persists door state changes to SQLite.
//
// Each published door snapshot becomes one row in door_events. The API
// serves the most recent rows and the bridge prunes rows past the
// configured retention.
//
// Usage:
//
//	repo := history.NewSQLiteRepository(db.DB)
//	err := repo.Record(ctx, "garage-door", snap, history.SourceBus)
//	entries, err := repo.List(ctx, "garage-door", 20)
package history
