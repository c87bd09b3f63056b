// Package database provides the SQLite store behind Trailobot Core's goal
// history.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Embedded, versioned schema migrations
//   - Health checks and lifecycle management
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files live in the top-level migrations package and are named
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql.
package database
