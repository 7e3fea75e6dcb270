package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/ephemera"
	"github.com/sagarc03/ephemera/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(prefix string) database.Config {
	return database.Config{
		Type: "sqlite",
		DSN:  ":memory:",
		Tables: ephemera.Tables{
			Objects: prefix + "_objects",
			Tags:    prefix + "_tags",
		},
	}
}

func setupTestDB(t *testing.T, prefix string) database.Database {
	t.Helper()

	db, err := database.Connect(context.Background(), newTestConfig(prefix))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestConnect_SQLite(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t, "ping_test")
	assert.NoError(t, db.Ping(context.Background()))
}

func TestConnect_InvalidType(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{"invalid", ""} {
		cfg := newTestConfig("invalid")
		cfg.Type = typ

		_, err := database.Connect(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database type")
	}
}

func TestConnect_InvalidTables(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig("tables")
	cfg.Tables.Tags = "drop table; --"

	_, err := database.Connect(context.Background(), cfg)
	assert.Error(t, err)
}

func TestDatabase_Validate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := setupTestDB(t, "validate_test")

	assert.Error(t, db.Validate(ctx), "validate should fail without tables")

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "migrate should be idempotent")
	assert.NoError(t, db.Validate(ctx), "validate should pass after migration")
}

func TestDatabase_GetRepo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := setupTestDB(t, "getrepo_test")
	require.NoError(t, db.Migrate(ctx))

	repo := db.GetRepo()
	require.NotNil(t, repo)

	token, err := ephemera.NewToken()
	require.NoError(t, err)

	now := time.Now()
	created, err := repo.Insert(ctx, ephemera.StoredObject{
		ID:           uuid.New(),
		Token:        token,
		OriginalName: "notes.txt",
		MimeType:     "text/plain",
		SizeBytes:    5,
		StoredRef:    "notes.txt",
		CreatedAt:    now,
		ExpiresAt:    now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	got, err := repo.FindLiveByToken(ctx, token, now)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestDatabase_Close(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := database.Connect(ctx, newTestConfig("close_test"))
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(ctx), "ping should fail after close")
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("migrates and validates", func(t *testing.T) {
		db, err := database.Open(ctx, newTestConfig("open_test"), true)
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		assert.NoError(t, db.Validate(ctx))
	})

	t.Run("without migration the schema check fails", func(t *testing.T) {
		_, err := database.Open(ctx, newTestConfig("open_nomigrate"), false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validate sqlite schema")
	})
}
