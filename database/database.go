package database

import (
	"context"
	"fmt"

	"github.com/sagarc03/ephemera"
	"github.com/sagarc03/ephemera/database/postgres"
	"github.com/sagarc03/ephemera/database/sqlite"
)

// Config holds the configuration for connecting to a registry backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" yaml:"dsn" validate:"required"`
	// Tables names the objects and tags tables
	Tables ephemera.Tables `mapstructure:"tables" yaml:"tables"`
	// AutoMigrate creates missing tables when the server starts
	AutoMigrate bool `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

// Database is an open registry backend.
type Database interface {
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
	// Migrate creates missing tables and indexes. It is safe to run repeatedly.
	Migrate(ctx context.Context) error
	// Validate checks that existing tables match the expected layout.
	Validate(ctx context.Context) error
	// GetRepo returns the ObjectRegistry backed by this connection.
	GetRepo() ephemera.ObjectRegistry
	// Close releases the connection.
	Close() error
}

// Connect opens the configured backend. It neither migrates nor validates;
// callers decide which of the two a command needs.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("connect: unsupported database type: %q", cfg.Type)
	}
}

// Open connects, migrates when asked to, and validates the schema.
// The returned Database is ready to serve; close it when done.
func Open(ctx context.Context, cfg Config, migrate bool) (Database, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if migrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate %s: %w", cfg.Type, err)
		}
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate %s schema: %w", cfg.Type, err)
	}

	return db, nil
}
