// Package database provides a unified interface for connecting to object
// registry backends.
//
// # Supported Backends
//
//   - PostgreSQL: pgx connection pool, tags cascade with their object
//   - SQLite: single-connection database for development and single-node deployments
//
// # Usage
//
//	cfg := database.Config{
//	    Type:   "sqlite",
//	    DSN:    "ephemera.db",
//	    Tables: ephemera.Tables{Objects: "ephemera_objects", Tags: "ephemera_tags"},
//	}
//
//	db, err := database.Open(ctx, cfg, true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	registry := db.GetRepo()
//
// Open pings the backend, optionally runs migrations and always validates
// the schema. Connect only opens the connection.
//
// # Subpackages
//
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/sqlite: SQLite implementation using modernc.org/sqlite
//   - database/internal/registrytest: behaviour suite shared by both backends
package database
