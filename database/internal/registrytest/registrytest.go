// Package registrytest holds the behaviour every ephemera.ObjectRegistry
// backend must share. Backend packages call Run from their own tests.
package registrytest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/ephemera"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty, migrated registry that is torn down with t.
type Factory func(t *testing.T) ephemera.ObjectRegistry

var base = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

// NewObject returns a valid object created at base+offset that lives for ttl.
func NewObject(t *testing.T, owner ephemera.Owner, offset, ttl time.Duration, tags ...string) ephemera.StoredObject {
	t.Helper()

	token, err := ephemera.NewToken()
	require.NoError(t, err)

	created := base.Add(offset)
	if tags == nil {
		tags = []string{}
	}

	return ephemera.StoredObject{
		ID:           uuid.New(),
		Token:        token,
		OriginalName: "file-" + token[:6] + ".txt",
		MimeType:     "text/plain",
		SizeBytes:    128,
		StoredRef:    token + ".txt",
		Owner:        owner,
		CreatedAt:    created,
		ExpiresAt:    created.Add(ttl),
		Tags:         tags,
	}
}

func insert(t *testing.T, repo ephemera.ObjectRegistry, obj ephemera.StoredObject) ephemera.StoredObject {
	t.Helper()
	stored, err := repo.Insert(context.Background(), obj)
	require.NoError(t, err, "insert")
	return stored
}

func ids(objs []ephemera.StoredObject) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.ID)
	}
	return out
}

// Run exercises the full ObjectRegistry contract against newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("Insert", func(t *testing.T) { testInsert(t, newRepo) })
	t.Run("FindLiveByToken", func(t *testing.T) { testFindLiveByToken(t, newRepo) })
	t.Run("ListLiveByOwner", func(t *testing.T) { testListLiveByOwner(t, newRepo) })
	t.Run("FindByID", func(t *testing.T) { testFindByID(t, newRepo) })
	t.Run("IncrementDownloadCount", func(t *testing.T) { testIncrementDownloadCount(t, newRepo) })
	t.Run("DeleteByID", func(t *testing.T) { testDeleteByID(t, newRepo) })
	t.Run("ListExpired", func(t *testing.T) { testListExpired(t, newRepo) })
}

func testInsert(t *testing.T, newRepo Factory) {
	t.Run("round trips every field", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		obj := NewObject(t, ephemera.OwnedBy("alice"), 0, time.Hour, "work", "urgent")
		obj.PasswordHash = "$2a$04$abcdefghijklmnopqrstuu"

		stored := insert(t, repo, obj)
		assert.Equal(t, obj.ID, stored.ID)
		assert.Equal(t, []string{"urgent", "work"}, stored.Tags)

		got, err := repo.FindByID(ctx, obj.ID)
		require.NoError(t, err)

		assert.Equal(t, obj.Token, got.Token)
		assert.Equal(t, obj.OriginalName, got.OriginalName)
		assert.Equal(t, obj.MimeType, got.MimeType)
		assert.Equal(t, obj.SizeBytes, got.SizeBytes)
		assert.Equal(t, obj.StoredRef, got.StoredRef)
		assert.Equal(t, obj.PasswordHash, got.PasswordHash)
		assert.Equal(t, obj.Owner, got.Owner)
		assert.True(t, obj.CreatedAt.Equal(got.CreatedAt), "created_at %s != %s", obj.CreatedAt, got.CreatedAt)
		assert.True(t, obj.ExpiresAt.Equal(got.ExpiresAt), "expires_at %s != %s", obj.ExpiresAt, got.ExpiresAt)
		assert.Equal(t, int64(0), got.DownloadCount)
		assert.Equal(t, []string{"urgent", "work"}, got.Tags)
	})

	t.Run("anonymous owner and no password", func(t *testing.T) {
		repo := newRepo(t)

		obj := insert(t, repo, NewObject(t, ephemera.Anonymous(), 0, time.Hour))

		got, err := repo.FindByID(context.Background(), obj.ID)
		require.NoError(t, err)
		assert.True(t, got.Owner.IsAnonymous())
		assert.False(t, got.HasPassword())
		assert.Empty(t, got.Tags)
		assert.NotNil(t, got.Tags)
	})

	t.Run("duplicate token", func(t *testing.T) {
		repo := newRepo(t)

		first := insert(t, repo, NewObject(t, ephemera.Anonymous(), 0, time.Hour))

		dup := NewObject(t, ephemera.Anonymous(), 0, time.Hour)
		dup.Token = first.Token

		_, err := repo.Insert(context.Background(), dup)
		assert.ErrorIs(t, err, ephemera.ErrDuplicateToken)

		_, err = repo.FindByID(context.Background(), dup.ID)
		assert.ErrorIs(t, err, ephemera.ErrNotFound, "nothing of the rejected row persists")
	})
}

func testFindLiveByToken(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()

	obj := insert(t, repo, NewObject(t, ephemera.Anonymous(), 0, time.Hour))

	t.Run("live", func(t *testing.T) {
		got, err := repo.FindLiveByToken(ctx, obj.Token, base.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, obj.ID, got.ID)
	})

	t.Run("expiry instant is not live", func(t *testing.T) {
		_, err := repo.FindLiveByToken(ctx, obj.Token, obj.ExpiresAt)
		assert.ErrorIs(t, err, ephemera.ErrNotFound)
	})

	t.Run("after expiry", func(t *testing.T) {
		_, err := repo.FindLiveByToken(ctx, obj.Token, obj.ExpiresAt.Add(time.Second))
		assert.ErrorIs(t, err, ephemera.ErrNotFound)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := repo.FindLiveByToken(ctx, "AAAAAAAAAAAAAAAAAAAAAA", base)
		assert.ErrorIs(t, err, ephemera.ErrNotFound)
	})
}

func testListLiveByOwner(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()
	now := base.Add(10 * time.Minute)

	oldest := insert(t, repo, NewObject(t, ephemera.OwnedBy("alice"), 1*time.Minute, time.Hour, "work"))
	middle := insert(t, repo, NewObject(t, ephemera.OwnedBy("alice"), 2*time.Minute, time.Hour, "personal"))
	newest := insert(t, repo, NewObject(t, ephemera.OwnedBy("alice"), 3*time.Minute, time.Hour, "work", "urgent"))
	insert(t, repo, NewObject(t, ephemera.OwnedBy("alice"), 0, 5*time.Minute, "work")) // expired at now
	insert(t, repo, NewObject(t, ephemera.OwnedBy("bob"), 4*time.Minute, time.Hour, "work"))
	insert(t, repo, NewObject(t, ephemera.Anonymous(), 4*time.Minute, time.Hour, "work"))

	t.Run("newest first, live only", func(t *testing.T) {
		got, err := repo.ListLiveByOwner(ctx, "alice", "", now)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{newest.ID, middle.ID, oldest.ID}, ids(got))
	})

	t.Run("tag filter", func(t *testing.T) {
		got, err := repo.ListLiveByOwner(ctx, "alice", "work", now)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{newest.ID, oldest.ID}, ids(got))

		for _, o := range got {
			assert.True(t, o.HasTag("work"))
		}
		assert.Equal(t, []string{"urgent", "work"}, got[0].Tags, "all tags are returned, not only the filter")
	})

	t.Run("unknown tag", func(t *testing.T) {
		got, err := repo.ListLiveByOwner(ctx, "alice", "nope", now)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NotNil(t, got)
	})

	t.Run("other owner", func(t *testing.T) {
		got, err := repo.ListLiveByOwner(ctx, "bob", "", now)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("unknown owner", func(t *testing.T) {
		got, err := repo.ListLiveByOwner(ctx, "carol", "", now)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func testFindByID(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()

	expired := insert(t, repo, NewObject(t, ephemera.OwnedBy("alice"), -2*time.Hour, time.Hour))

	got, err := repo.FindByID(ctx, expired.ID)
	require.NoError(t, err, "expired rows are still found by id")
	assert.Equal(t, expired.Token, got.Token)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ephemera.ErrNotFound)
}

func testIncrementDownloadCount(t *testing.T, newRepo Factory) {
	t.Run("increments", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		obj := insert(t, repo, NewObject(t, ephemera.Anonymous(), 0, time.Hour))

		require.NoError(t, repo.IncrementDownloadCount(ctx, obj.ID))
		require.NoError(t, repo.IncrementDownloadCount(ctx, obj.ID))

		got, err := repo.FindByID(ctx, obj.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.DownloadCount)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		obj := insert(t, repo, NewObject(t, ephemera.Anonymous(), 0, time.Hour))

		const n = 20
		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.IncrementDownloadCount(ctx, obj.ID))
			}()
		}
		wg.Wait()

		got, err := repo.FindByID(ctx, obj.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(n), got.DownloadCount)
	})

	t.Run("unknown id", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.IncrementDownloadCount(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ephemera.ErrNotFound)
	})
}

func testDeleteByID(t *testing.T, newRepo Factory) {
	t.Run("removes row and tags", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		obj := insert(t, repo, NewObject(t, ephemera.OwnedBy("alice"), 0, time.Hour, "work"))

		deleted, err := repo.DeleteByID(ctx, obj.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = repo.FindByID(ctx, obj.ID)
		assert.ErrorIs(t, err, ephemera.ErrNotFound)

		got, err := repo.ListLiveByOwner(ctx, "alice", "work", base)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("idempotent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		obj := insert(t, repo, NewObject(t, ephemera.Anonymous(), 0, time.Hour))

		deleted, err := repo.DeleteByID(ctx, obj.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.DeleteByID(ctx, obj.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("token is reusable after delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		obj := insert(t, repo, NewObject(t, ephemera.Anonymous(), 0, time.Hour, "a"))
		_, err := repo.DeleteByID(ctx, obj.ID)
		require.NoError(t, err)

		again := NewObject(t, ephemera.Anonymous(), 0, time.Hour, "a")
		again.Token = obj.Token
		_, err = repo.Insert(ctx, again)
		assert.NoError(t, err)
	})
}

func testListExpired(t *testing.T, newRepo Factory) {
	repo := newRepo(t)
	ctx := context.Background()
	asOf := base.Add(time.Hour)

	expiredEarly := insert(t, repo, NewObject(t, ephemera.Anonymous(), 0, 10*time.Minute))
	expiredExactly := insert(t, repo, NewObject(t, ephemera.OwnedBy("alice"), 0, time.Hour))
	insert(t, repo, NewObject(t, ephemera.OwnedBy("alice"), 0, 2*time.Hour))

	got, err := repo.ListExpired(ctx, asOf)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{expiredEarly.ID, expiredExactly.ID}, ids(got))

	got, err = repo.ListExpired(ctx, base)
	require.NoError(t, err)
	assert.Empty(t, got)
}
