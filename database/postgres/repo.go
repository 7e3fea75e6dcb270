// Package postgres implements ephemera.ObjectRegistry on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/ephemera"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Tables is an alias for ephemera.Tables for package compatibility.
type Tables = ephemera.Tables

type Repo struct {
	pool    *pgxpool.Pool
	objects string
	tags    string
}

func NewRepo(pool *pgxpool.Pool, tables Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{pool: pool, objects: tables.Objects, tags: tables.Tags}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repo) selectObjects() string {
	return fmt.Sprintf(`
		SELECT o.id, o.token, o.original_name, o.mime_type, o.size_bytes, o.stored_ref,
			o.password_hash, o.owner_id, o.created_at, o.expires_at, o.download_count,
			COALESCE((SELECT array_agg(t.name ORDER BY t.name) FROM %s t WHERE t.object_id = o.id), '{}')
		FROM %s o`,
		pgx.Identifier{r.tags}.Sanitize(), pgx.Identifier{r.objects}.Sanitize())
}

func scanObject(row pgx.Row) (ephemera.StoredObject, error) {
	var (
		obj          ephemera.StoredObject
		passwordHash *string
		ownerID      *string
	)

	err := row.Scan(
		&obj.ID, &obj.Token, &obj.OriginalName, &obj.MimeType, &obj.SizeBytes, &obj.StoredRef,
		&passwordHash, &ownerID, &obj.CreatedAt, &obj.ExpiresAt, &obj.DownloadCount, &obj.Tags,
	)
	if err != nil {
		return ephemera.StoredObject{}, err
	}

	if passwordHash != nil {
		obj.PasswordHash = *passwordHash
	}
	if ownerID != nil {
		obj.Owner = ephemera.OwnedBy(*ownerID)
	}
	if obj.Tags == nil {
		obj.Tags = []string{}
	}

	obj.CreatedAt = obj.CreatedAt.UTC()
	obj.ExpiresAt = obj.ExpiresAt.UTC()

	return obj, nil
}

func (r *Repo) queryObjects(ctx context.Context, query string, args ...any) ([]ephemera.StoredObject, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]ephemera.StoredObject, 0)
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		items = append(items, obj)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return items, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *Repo) Insert(ctx context.Context, obj ephemera.StoredObject) (ephemera.StoredObject, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ephemera.StoredObject{}, fmt.Errorf("insert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ownerID, _ := obj.Owner.ID()

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, token, original_name, mime_type, size_bytes, stored_ref,
			password_hash, owner_id, created_at, expires_at, download_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, expires_at
	`, pgx.Identifier{r.objects}.Sanitize())

	err = tx.QueryRow(ctx, insertQuery,
		obj.ID, obj.Token, obj.OriginalName, obj.MimeType, obj.SizeBytes, obj.StoredRef,
		nullable(obj.PasswordHash), nullable(ownerID), obj.CreatedAt, obj.ExpiresAt, obj.DownloadCount,
	).Scan(&obj.CreatedAt, &obj.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ephemera.StoredObject{}, fmt.Errorf("insert: %w", ephemera.ErrDuplicateToken)
		}
		return ephemera.StoredObject{}, fmt.Errorf("insert: %w", err)
	}

	tags := obj.Tags
	if tags == nil {
		tags = []string{}
	}

	tagQuery := fmt.Sprintf(`
		INSERT INTO %s (object_id, name)
		SELECT $1::uuid, name FROM unnest($2::text[]) AS name
		ON CONFLICT DO NOTHING
		RETURNING name
	`, pgx.Identifier{r.tags}.Sanitize())

	rows, err := tx.Query(ctx, tagQuery, obj.ID, tags)
	if err != nil {
		return ephemera.StoredObject{}, fmt.Errorf("insert: tags: %w", err)
	}
	stored, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return ephemera.StoredObject{}, fmt.Errorf("insert: tags: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ephemera.StoredObject{}, fmt.Errorf("insert: commit: %w", err)
	}

	obj.Tags = sortedUnique(stored)
	obj.CreatedAt = obj.CreatedAt.UTC()
	obj.ExpiresAt = obj.ExpiresAt.UTC()

	return obj, nil
}

func (r *Repo) FindLiveByToken(ctx context.Context, token string, now time.Time) (ephemera.StoredObject, error) {
	query := r.selectObjects() + ` WHERE o.token = $1 AND o.expires_at > $2`

	obj, err := scanObject(r.pool.QueryRow(ctx, query, token, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ephemera.StoredObject{}, ephemera.ErrNotFound
		}
		return ephemera.StoredObject{}, fmt.Errorf("find live by token: %w", err)
	}

	return obj, nil
}

func (r *Repo) ListLiveByOwner(ctx context.Context, ownerID, tag string, now time.Time) ([]ephemera.StoredObject, error) {
	query := r.selectObjects() + ` WHERE o.owner_id = $1 AND o.expires_at > $2`
	args := []any{ownerID, now}

	if tag != "" {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM %s f WHERE f.object_id = o.id AND f.name = $3)`,
			pgx.Identifier{r.tags}.Sanitize())
		args = append(args, tag)
	}

	query += ` ORDER BY o.created_at DESC, o.id DESC`

	items, err := r.queryObjects(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list live by owner: %w", err)
	}

	return items, nil
}

func (r *Repo) FindByID(ctx context.Context, id uuid.UUID) (ephemera.StoredObject, error) {
	query := r.selectObjects() + ` WHERE o.id = $1`

	obj, err := scanObject(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ephemera.StoredObject{}, ephemera.ErrNotFound
		}
		return ephemera.StoredObject{}, fmt.Errorf("find by id: %w", err)
	}

	return obj, nil
}

func (r *Repo) IncrementDownloadCount(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET download_count = download_count + 1
		WHERE id = $1
	`, pgx.Identifier{r.objects}.Sanitize())

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("increment download count: %w", ephemera.ErrNotFound)
	}

	return nil
}

// DeleteByID relies on ON DELETE CASCADE to remove the object's tags.
func (r *Repo) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, pgx.Identifier{r.objects}.Sanitize())

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete by id: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *Repo) ListExpired(ctx context.Context, asOf time.Time) ([]ephemera.StoredObject, error) {
	query := r.selectObjects() + ` WHERE o.expires_at <= $1 ORDER BY o.expires_at, o.id`

	items, err := r.queryObjects(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}

	return items, nil
}

func sortedUnique(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
