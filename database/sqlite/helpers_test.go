package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/sagarc03/ephemera"
	"github.com/sagarc03/ephemera/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	assert.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// testTables returns unique table names so tests never collide.
func testTables(t *testing.T) ephemera.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return ephemera.Tables{
		Objects: "objects_" + suffix,
		Tags:    "tags_" + suffix,
	}
}

// setupTestRepo creates a migrated in-memory registry.
func setupTestRepo(t *testing.T) ephemera.ObjectRegistry {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", testTables(t))
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = db.Close() })

	err = db.Migrate(ctx)
	require.NoError(t, err, "failed to migrate")

	return db.GetRepo()
}
