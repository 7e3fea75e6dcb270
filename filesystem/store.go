// Package filesystem provides a local disk blob store for ephemera.
// It writes atomically through temp files and keeps every blob as a single
// randomly named file directly under the storage root.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/sagarc03/ephemera"
)

// Store provides file system blob operations.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Put atomically writes content to a new randomly named file using a temp
// file and rename. The extension of suggestedName is kept so the stored file
// stays recognizable on disk. The operation respects context cancellation
// and removes the temp file on any failure.
func (s *Store) Put(ctx context.Context, content io.Reader, suggestedName string) (ephemera.PutResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ephemera.PutResult{}, ctxErr
	}

	ref, err := ephemera.NewStoredRef(suggestedName)
	if err != nil {
		return ephemera.PutResult{}, err
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return ephemera.PutResult{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	written, err := io.Copy(t, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return ephemera.PutResult{}, fmt.Errorf("could not copy file contents: %w", err)
	}

	if err = t.Sync(); err != nil {
		return ephemera.PutResult{}, fmt.Errorf("could not sync written file: %w", err)
	}

	if err = t.Close(); err != nil {
		return ephemera.PutResult{}, fmt.Errorf("could not close written file: %w", err)
	}

	if renameErr := s.root.Rename(tmpFile, ref); renameErr != nil {
		return ephemera.PutResult{}, fmt.Errorf("failed to rename file: %w", renameErr)
	}

	success = true

	return ephemera.PutResult{StoredRef: ref, BytesWritten: written}, nil
}

// Open opens a blob for reading. Returns ephemera.ErrNotFound if it does not exist.
func (s *Store) Open(ctx context.Context, ref string) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !ephemera.IsValidStoredRef(ref) {
		return nil, fmt.Errorf("open %q: %w", ref, ephemera.ErrNotFound)
	}

	f, err := s.root.Open(ref)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ephemera.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return f, nil
}

// Delete removes a blob. A blob that does not exist is not an error.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !ephemera.IsValidStoredRef(ref) {
		return fmt.Errorf("delete %q: %w: invalid reference", ref, ephemera.ErrInvalidInput)
	}

	err := s.root.Remove(ref)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not delete file: %w", err)
	}
	return nil
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}
