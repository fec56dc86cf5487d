// Package database provides SQLite connectivity for the taskt runtime.
//
// It is used for two things: the run-history store, and the connections
// opened by the database_* script commands.
//
// This package manages:
//   - Connections with WAL mode and a busy timeout
//   - In-memory databases (Path ":memory:")
//   - Schema migrations loaded from an fs.FS
//
// Migration files are named VERSION_description.up.sql with an optional
// matching .down.sql; versions sort lexically.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
