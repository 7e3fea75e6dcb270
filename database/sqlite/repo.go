// Package sqlite implements ephemera.ObjectRegistry on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/ephemera"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width and always UTC so that text comparison in SQL
// orders the same way as the instants.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

type repo struct {
	db      *sql.DB
	objects string
	tags    string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *repo) selectObjects() string {
	return fmt.Sprintf( //nolint:gosec // G201: table names are validated
		`SELECT o.id, o.token, o.original_name, o.mime_type, o.size_bytes, o.stored_ref,
			o.password_hash, o.owner_id, o.created_at, o.expires_at, o.download_count,
			(SELECT group_concat(t.name, ',') FROM %s t WHERE t.object_id = o.id)
		FROM %s o`, quoteIdentifier(r.tags), quoteIdentifier(r.objects))
}

func scanObject(s rowScanner) (ephemera.StoredObject, error) {
	var (
		obj                  ephemera.StoredObject
		idStr                string
		passwordHash         sql.NullString
		ownerID              sql.NullString
		createdAt, expiresAt string
		tags                 sql.NullString
	)

	err := s.Scan(
		&idStr, &obj.Token, &obj.OriginalName, &obj.MimeType, &obj.SizeBytes, &obj.StoredRef,
		&passwordHash, &ownerID, &createdAt, &expiresAt, &obj.DownloadCount, &tags,
	)
	if err != nil {
		return ephemera.StoredObject{}, err
	}

	obj.ID, err = uuid.Parse(idStr)
	if err != nil {
		return ephemera.StoredObject{}, fmt.Errorf("parse uuid: %w", err)
	}

	obj.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return ephemera.StoredObject{}, fmt.Errorf("parse created_at: %w", err)
	}

	obj.ExpiresAt, err = time.Parse(timeLayout, expiresAt)
	if err != nil {
		return ephemera.StoredObject{}, fmt.Errorf("parse expires_at: %w", err)
	}

	obj.PasswordHash = passwordHash.String
	if ownerID.Valid {
		obj.Owner = ephemera.OwnedBy(ownerID.String)
	}

	obj.Tags = []string{}
	if tags.Valid && tags.String != "" {
		obj.Tags = strings.Split(tags.String, ",")
		slices.Sort(obj.Tags)
	}

	return obj, nil
}

func (r *repo) queryObjects(ctx context.Context, query string, args ...any) ([]ephemera.StoredObject, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := make([]ephemera.StoredObject, 0)
	for rows.Next() {
		obj, scanErr := scanObject(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan: %w", scanErr)
		}
		items = append(items, obj)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return items, nil
}

func (r *repo) Insert(ctx context.Context, obj ephemera.StoredObject) (ephemera.StoredObject, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ephemera.StoredObject{}, fmt.Errorf("insert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var passwordHash, ownerID sql.NullString
	if obj.PasswordHash != "" {
		passwordHash = sql.NullString{String: obj.PasswordHash, Valid: true}
	}
	if id, ok := obj.Owner.ID(); ok {
		ownerID = sql.NullString{String: id, Valid: true}
	}

	insertQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, token, original_name, mime_type, size_bytes, stored_ref,
			password_hash, owner_id, created_at, expires_at, download_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, quoteIdentifier(r.objects))

	_, err = tx.ExecContext(ctx, insertQuery,
		obj.ID.String(), obj.Token, obj.OriginalName, obj.MimeType, obj.SizeBytes, obj.StoredRef,
		passwordHash, ownerID, formatTime(obj.CreatedAt), formatTime(obj.ExpiresAt), obj.DownloadCount,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ephemera.StoredObject{}, fmt.Errorf("insert: %w", ephemera.ErrDuplicateToken)
		}
		return ephemera.StoredObject{}, fmt.Errorf("insert: %w", err)
	}

	tagQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT OR IGNORE INTO %s (object_id, name) VALUES (?, ?)`, quoteIdentifier(r.tags))

	tags := make([]string, 0, len(obj.Tags))
	for _, tag := range obj.Tags {
		if _, err := tx.ExecContext(ctx, tagQuery, obj.ID.String(), tag); err != nil {
			return ephemera.StoredObject{}, fmt.Errorf("insert: tag %q: %w", tag, err)
		}
		if !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}

	if err := tx.Commit(); err != nil {
		return ephemera.StoredObject{}, fmt.Errorf("insert: commit: %w", err)
	}

	slices.Sort(tags)
	obj.Tags = tags
	obj.CreatedAt = obj.CreatedAt.UTC()
	obj.ExpiresAt = obj.ExpiresAt.UTC()

	return obj, nil
}

func (r *repo) FindLiveByToken(ctx context.Context, token string, now time.Time) (ephemera.StoredObject, error) {
	query := r.selectObjects() + ` WHERE o.token = ? AND o.expires_at > ?`

	obj, err := scanObject(r.db.QueryRowContext(ctx, query, token, formatTime(now)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ephemera.StoredObject{}, ephemera.ErrNotFound
		}
		return ephemera.StoredObject{}, fmt.Errorf("find live by token: %w", err)
	}

	return obj, nil
}

func (r *repo) ListLiveByOwner(ctx context.Context, ownerID, tag string, now time.Time) ([]ephemera.StoredObject, error) {
	query := r.selectObjects() + ` WHERE o.owner_id = ? AND o.expires_at > ?`
	args := []any{ownerID, formatTime(now)}

	if tag != "" {
		query += fmt.Sprintf( //nolint:gosec // G201: table name is validated
			` AND EXISTS (SELECT 1 FROM %s f WHERE f.object_id = o.id AND f.name = ?)`, quoteIdentifier(r.tags))
		args = append(args, tag)
	}

	query += ` ORDER BY o.created_at DESC, o.id DESC`

	items, err := r.queryObjects(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list live by owner: %w", err)
	}

	return items, nil
}

func (r *repo) FindByID(ctx context.Context, id uuid.UUID) (ephemera.StoredObject, error) {
	query := r.selectObjects() + ` WHERE o.id = ?`

	obj, err := scanObject(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ephemera.StoredObject{}, ephemera.ErrNotFound
		}
		return ephemera.StoredObject{}, fmt.Errorf("find by id: %w", err)
	}

	return obj, nil
}

func (r *repo) IncrementDownloadCount(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET download_count = download_count + 1 WHERE id = ?`, quoteIdentifier(r.objects))

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment download count: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("increment download count: %w", ephemera.ErrNotFound)
	}

	return nil
}

func (r *repo) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("delete by id: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// foreign keys are off by default in SQLite, so tags go explicitly
	tagQuery := fmt.Sprintf(`DELETE FROM %s WHERE object_id = ?`, quoteIdentifier(r.tags)) //nolint:gosec // table name is validated
	if _, err := tx.ExecContext(ctx, tagQuery, id.String()); err != nil {
		return false, fmt.Errorf("delete by id: tags: %w", err)
	}

	objectQuery := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, quoteIdentifier(r.objects)) //nolint:gosec // table name is validated
	result, err := tx.ExecContext(ctx, objectQuery, id.String())
	if err != nil {
		return false, fmt.Errorf("delete by id: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete by id: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("delete by id: commit: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *repo) ListExpired(ctx context.Context, asOf time.Time) ([]ephemera.StoredObject, error) {
	query := r.selectObjects() + ` WHERE o.expires_at <= ? ORDER BY o.expires_at, o.id`

	items, err := r.queryObjects(ctx, query, formatTime(asOf))
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}

	return items, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}

	return false
}
