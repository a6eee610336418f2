// Package database owns the hub's SQLite file: opening it with WAL and a
// busy timeout, applying the embedded schema migrations, and exposing an
// sqlx view for repositories that scan into structs.
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	err = db.Migrate(ctx, migrations.FS)
//
// Migrations only add: new columns are nullable or defaulted, and down
// files exist for development rollbacks through "grayhub migrate down".
package database
