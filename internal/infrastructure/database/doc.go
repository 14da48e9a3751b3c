// Package database provides the SQLite connection used by the bridge's
// door event log.
//
// This package manages:
//   - The connection, with WAL mode and a busy timeout
//   - Versioned schema migrations read from an fs.FS
//
// The pool is limited to one connection because SQLite has a single writer.
// Database files are created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or carry a default.
package database
