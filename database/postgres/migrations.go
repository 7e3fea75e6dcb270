package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/ephemera"
)

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, pool *pgxpool.Pool) error
	Down      func(ctx context.Context, pool *pgxpool.Pool) error
}

// getTableMigrations returns all table migrations in dependency order.
func getTableMigrations(tables ephemera.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.Objects,
			Up:        createObjectsTable(tables.Objects),
			Down:      dropTable(tables.Objects),
		},
		{
			TableName: tables.Tags,
			Up:        createTagsTable(tables.Tags, tables.Objects),
			Down:      dropTable(tables.Tags),
		},
	}
}

func Migrate(ctx context.Context, pool *pgxpool.Pool, tables ephemera.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, pool); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func DropTables(ctx context.Context, pool *pgxpool.Pool, tables ephemera.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, pool); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createObjectsTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexExpiresAt := pgx.Identifier{fmt.Sprintf("idx_%s_expires_at", tableName)}.Sanitize()
		indexOwnerList := pgx.Identifier{fmt.Sprintf("idx_%s_owner_list", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				token TEXT NOT NULL UNIQUE,
				original_name TEXT NOT NULL,
				mime_type TEXT NOT NULL,
				size_bytes BIGINT NOT NULL,
				stored_ref TEXT NOT NULL,
				password_hash TEXT,
				owner_id TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				expires_at TIMESTAMPTZ NOT NULL,
				download_count BIGINT NOT NULL DEFAULT 0
			);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (expires_at);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (owner_id, created_at DESC)
			WHERE (owner_id IS NOT NULL);
		`,
			quotedTable,
			indexExpiresAt, quotedTable,
			indexOwnerList, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create objects table: %w", err)
		}
		return nil
	}
}

func createTagsTable(tableName, objectsTable string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexName := pgx.Identifier{fmt.Sprintf("idx_%s_name", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				object_id UUID NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				PRIMARY KEY (object_id, name)
			);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (name);
		`,
			quotedTable, pgx.Identifier{objectsTable}.Sanitize(),
			indexName, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create tags table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		sql := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pgx.Identifier{tableName}.Sanitize())
		_, err := pool.Exec(ctx, sql)
		return err
	}
}
