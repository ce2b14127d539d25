// Package database provides SQLite connectivity for the switch state store.
//
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Forward and backward schema migrations read from an fs.FS
//   - Health checks used by the /health endpoint
//
// All queries use parameterised statements. The database file is
// chmod'ed to 0600 after open.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "data/webhook.db", WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
