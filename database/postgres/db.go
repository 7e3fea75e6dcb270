package postgres

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/ephemera"
)

type columnInfo struct {
	name       string
	dataType   string
	isNullable bool
}

// SchemaError reports how an existing table differs from the expected layout.
type SchemaError struct {
	Table      string
	Missing    []string
	Mismatched []string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "table %s schema validation failed:\n", e.Table)

	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "  missing columns: %s\n", strings.Join(e.Missing, ", "))
	}

	if len(e.Mismatched) > 0 {
		fmt.Fprintf(&b, "  mismatched columns:\n")
		for _, msg := range e.Mismatched {
			fmt.Fprintf(&b, "    - %s\n", msg)
		}
	}

	return b.String()
}

func validateTableSchema(ctx context.Context, pool *pgxpool.Pool, tableName string, expectedSchema map[string]columnInfo) error {
	if !ephemera.IsValidTableName(tableName) {
		return fmt.Errorf("validate table schema: invalid table name: %s", tableName)
	}

	exists, err := tableExists(ctx, pool, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: %w", err)
	}

	if !exists {
		return fmt.Errorf("validate table schema: table %s does not exist", tableName)
	}

	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := pool.Query(ctx, query, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: query columns: %w", err)
	}
	defer rows.Close()

	actualColumns := make(map[string]columnInfo)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return fmt.Errorf("validate table schema: scan column: %w", err)
		}
		actualColumns[name] = columnInfo{
			name:       name,
			dataType:   strings.ToLower(dataType),
			isNullable: nullable == "YES",
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate table schema: rows error: %w", err)
	}

	schemaErr := &SchemaError{Table: tableName}

	for colName, expected := range expectedSchema {
		got, ok := actualColumns[colName]
		if !ok {
			schemaErr.Missing = append(schemaErr.Missing, colName)
			continue
		}

		if got.dataType != expected.dataType {
			schemaErr.Mismatched = append(schemaErr.Mismatched,
				fmt.Sprintf("%s: expected %s, got %s", colName, expected.dataType, got.dataType))
		}

		if got.isNullable != expected.isNullable {
			schemaErr.Mismatched = append(schemaErr.Mismatched,
				fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", colName, expected.isNullable, got.isNullable))
		}
	}

	if len(schemaErr.Missing) == 0 && len(schemaErr.Mismatched) == 0 {
		return nil
	}

	slices.Sort(schemaErr.Missing)
	slices.Sort(schemaErr.Mismatched)

	return schemaErr
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = current_schema()
			AND table_name = $1
		)
	`
	err := pool.QueryRow(ctx, query, tableName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return exists, nil
}

type tableValidation struct {
	tableName      string
	expectedSchema map[string]columnInfo
}

var objectsTableSchema = map[string]columnInfo{
	"id":             {"id", "uuid", false},
	"token":          {"token", "text", false},
	"original_name":  {"original_name", "text", false},
	"mime_type":      {"mime_type", "text", false},
	"size_bytes":     {"size_bytes", "bigint", false},
	"stored_ref":     {"stored_ref", "text", false},
	"password_hash":  {"password_hash", "text", true},
	"owner_id":       {"owner_id", "text", true},
	"created_at":     {"created_at", "timestamp with time zone", false},
	"expires_at":     {"expires_at", "timestamp with time zone", false},
	"download_count": {"download_count", "bigint", false},
}

var tagsTableSchema = map[string]columnInfo{
	"object_id": {"object_id", "uuid", false},
	"name":      {"name", "text", false},
}

func getTableValidations(tables ephemera.Tables) []tableValidation {
	return []tableValidation{
		{tableName: tables.Objects, expectedSchema: objectsTableSchema},
		{tableName: tables.Tags, expectedSchema: tagsTableSchema},
	}
}

func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables ephemera.Tables) error {
	for _, validation := range getTableValidations(tables) {
		if err := validateTableSchema(ctx, pool, validation.tableName, validation.expectedSchema); err != nil {
			return fmt.Errorf("validate schema %s: %w", validation.tableName, err)
		}
	}

	return nil
}
