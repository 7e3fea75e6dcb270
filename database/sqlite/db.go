package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

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

func validateTableSchema(ctx context.Context, db *sql.DB, tableName string, expectedSchema map[string]columnInfo) error {
	if !ephemera.IsValidTableName(tableName) {
		return fmt.Errorf("validate table schema: invalid table name: %s", tableName)
	}

	exists, err := tableExists(ctx, db, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: %w", err)
	}

	if !exists {
		return fmt.Errorf("validate table schema: table %s does not exist", tableName)
	}

	actual, err := tableColumns(ctx, db, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: %w", err)
	}

	schemaErr := &SchemaError{Table: tableName}

	for colName, expected := range expectedSchema {
		got, ok := actual[colName]
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

	// map iteration order is random
	slices.Sort(schemaErr.Missing)
	slices.Sort(schemaErr.Mismatched)

	return schemaErr
}

// tableColumns reads the declared columns through PRAGMA table_info.
func tableColumns(ctx context.Context, db *sql.DB, tableName string) (map[string]columnInfo, error) {
	query := fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(tableName))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make(map[string]columnInfo)
	for rows.Next() {
		var (
			cid       int
			name      string
			dataType  string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}

		columns[name] = columnInfo{
			name:       name,
			dataType:   strings.ToLower(dataType),
			isNullable: notNull == 0,
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return columns, nil
}

func tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var name string
	query := `SELECT name FROM sqlite_master WHERE type='table' AND name=?`
	err := db.QueryRowContext(ctx, query, tableName).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return true, nil
}

type tableValidation struct {
	tableName      string
	expectedSchema map[string]columnInfo
}

var objectsTableSchema = map[string]columnInfo{
	"id":             {"id", "text", false},
	"token":          {"token", "text", false},
	"original_name":  {"original_name", "text", false},
	"mime_type":      {"mime_type", "text", false},
	"size_bytes":     {"size_bytes", "integer", false},
	"stored_ref":     {"stored_ref", "text", false},
	"password_hash":  {"password_hash", "text", true},
	"owner_id":       {"owner_id", "text", true},
	"created_at":     {"created_at", "text", false},
	"expires_at":     {"expires_at", "text", false},
	"download_count": {"download_count", "integer", false},
}

var tagsTableSchema = map[string]columnInfo{
	"object_id": {"object_id", "text", false},
	"name":      {"name", "text", false},
}

func getTableValidations(tables ephemera.Tables) []tableValidation {
	return []tableValidation{
		{tableName: tables.Objects, expectedSchema: objectsTableSchema},
		{tableName: tables.Tags, expectedSchema: tagsTableSchema},
	}
}

func ValidateSchema(ctx context.Context, db *sql.DB, tables ephemera.Tables) error {
	validations := getTableValidations(tables)

	for _, validation := range validations {
		if err := validateTableSchema(ctx, db, validation.tableName, validation.expectedSchema); err != nil {
			return fmt.Errorf("validate schema %s: %w", validation.tableName, err)
		}
	}

	return nil
}
