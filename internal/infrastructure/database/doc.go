// Package database provides SQLite connectivity and schema migrations for
// TrainLink.
//
// The loco store lives in a single SQLite file opened in WAL mode with a
// busy timeout. Schema changes ship as embedded migration pairs
// (YYYYMMDD_HHMMSS_name.up.sql / .down.sql) registered by the migrations
// package, and applied versions are tracked in schema_migrations.
//
// # Architecture
//
//	┌──────────────┐   Open/Migrate   ┌──────────────────────────────┐
//	│ cmd/trainlink│ ───────────────▶ │ database.DB (*sql.DB, 1 conn)│
//	└──────────────┘                  └──────────────┬───────────────┘
//	                                                 │
//	        ┌────────────────────────┬───────────────┴──────────┐
//	        ▼                        ▼                          ▼
//	┌───────────────┐   ┌─────────────────────────┐   ┌──────────────────┐
//	│ migrations/   │   │ schema_migrations table │   │ locos table      │
//	│ (embed.FS)    │   │ (applied versions)      │   │ (SQLiteRepository│
//	└───────────────┘   └─────────────────────────┘   └──────────────────┘
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
//	repo := loco.NewSQLiteRepository(db.DB)
//
// All queries use parameterised statements. The database file is created
// with mode 0600.
package database
