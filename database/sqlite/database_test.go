package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/ephemera"
	"github.com/sagarc03/ephemera/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestDatabase_Migrate(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent - can run multiple times", func(t *testing.T) {
		db, err := sqlite.Connect(ctx, ":memory:", testTables(t))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		assert.NoError(t, db.Migrate(ctx), "first migrate should succeed")
		assert.NoError(t, db.Migrate(ctx), "second migrate should succeed")
		assert.NoError(t, db.Validate(ctx))
	})
}

func TestDatabase_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("error - tables do not exist", func(t *testing.T) {
		db, err := sqlite.Connect(ctx, ":memory:", testTables(t))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		err = db.Validate(ctx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("error - foreign table layout", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "foreign.db")
		tables := testTables(t)

		raw, err := sql.Open("sqlite", path)
		require.NoError(t, err)
		_, err = raw.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %q (id TEXT, token INTEGER NOT NULL)`, tables.Objects))
		require.NoError(t, err)
		require.NoError(t, raw.Close())

		db, err := sqlite.Connect(ctx, path, tables)
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		err = db.Validate(ctx)
		require.Error(t, err)

		var schemaErr *sqlite.SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, tables.Objects, schemaErr.Table)
		assert.Contains(t, schemaErr.Missing, "expires_at")
		assert.Contains(t, schemaErr.Mismatched, "token: expected text, got integer")
		assert.Contains(t, schemaErr.Mismatched, "id: expected nullable=false, got nullable=true")
	})
}

func TestDatabase_FileBacked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ephemera.db")
	tables := ephemera.Tables{Objects: "objects", Tags: "object_tags"}

	db, err := sqlite.Connect(ctx, path, tables)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	token, err := ephemera.NewToken()
	require.NoError(t, err)
	now := time.Now()
	obj := ephemera.StoredObject{
		ID:           uuid.New(),
		Token:        token,
		OriginalName: "persist.txt",
		MimeType:     "text/plain",
		StoredRef:    "persist.txt",
		Owner:        ephemera.OwnedBy("alice"),
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
		Tags:         []string{"keep"},
	}
	_, err = db.GetRepo().Insert(ctx, obj)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := sqlite.Connect(ctx, path, tables)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	require.NoError(t, reopened.Validate(ctx))

	got, err := reopened.GetRepo().FindByID(ctx, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, "persist.txt", got.OriginalName)
	assert.Equal(t, []string{"keep"}, got.Tags)
}

func TestDropTables(t *testing.T) {
	ctx := context.Background()
	tables := testTables(t)

	raw, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	raw.SetMaxOpenConns(1)
	defer func() { _ = raw.Close() }()

	require.NoError(t, sqlite.Migrate(ctx, raw, tables))
	require.NoError(t, sqlite.ValidateSchema(ctx, raw, tables))

	require.NoError(t, sqlite.DropTables(ctx, raw, tables))
	assert.Error(t, sqlite.ValidateSchema(ctx, raw, tables))

	assert.NoError(t, sqlite.DropTables(ctx, raw, tables), "dropping missing tables is a no-op")
}
