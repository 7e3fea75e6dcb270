package ephemera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ObjectRegistry defines the interface for durable object metadata.
// Implementations must handle concurrent access safely; every mutation is
// scoped to a single row and must be atomic for that row.
//
// All methods accept a context for cancellation and timeout control.
type ObjectRegistry interface {
	// Insert stores a new object together with its tags.
	//
	// Returns:
	//   - StoredObject: The stored entry as persisted
	//   - error: ErrDuplicateToken if the token (or id) already exists, or other database errors
	Insert(ctx context.Context, obj StoredObject) (StoredObject, error)

	// FindLiveByToken looks up an object by its public token.
	// Objects whose expiry is not after now are treated as absent even if
	// their row still exists.
	//
	// Returns:
	//   - error: ErrNotFound if the token is unknown or expired
	FindLiveByToken(ctx context.Context, token string, now time.Time) (StoredObject, error)

	// ListLiveByOwner returns the live objects owned by ownerID, newest first.
	// An empty tag disables tag filtering; otherwise only objects carrying the
	// tag are returned.
	ListLiveByOwner(ctx context.Context, ownerID, tag string, now time.Time) ([]StoredObject, error)

	// FindByID looks up an object by its internal id regardless of expiry.
	//
	// Returns:
	//   - error: ErrNotFound if no row exists
	FindByID(ctx context.Context, id uuid.UUID) (StoredObject, error)

	// IncrementDownloadCount atomically adds one to the object's download count.
	//
	// Returns:
	//   - error: ErrNotFound if no row exists, or other database errors
	IncrementDownloadCount(ctx context.Context, id uuid.UUID) error

	// DeleteByID removes the object row and its tags if present.
	//
	// Returns:
	//   - bool: true if a row was deleted, false if it was already gone
	//   - error: Any database error
	DeleteByID(ctx context.Context, id uuid.UUID) (bool, error)

	// ListExpired returns every object with expiry at or before asOf.
	ListExpired(ctx context.Context, asOf time.Time) ([]StoredObject, error)
}

// BlobStore defines the interface for raw byte storage.
// It knows nothing about tokens or expiry; objects are addressed by the
// opaque reference returned from Put.
//
// All methods accept a context for cancellation and timeout control.
type BlobStore interface {
	// Put streams content into a new blob.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - content: io.Reader providing the data; it is consumed, never buffered whole
	//   - suggestedName: Original file name, used only to derive the reference's extension
	//
	// Returns:
	//   - PutResult: The new reference and number of bytes written
	//   - error: Any storage or I/O error; no blob remains on error
	Put(ctx context.Context, content io.Reader, suggestedName string) (PutResult, error)

	// Open returns a reader for the blob.
	//
	// Returns:
	//   - io.ReadSeekCloser: Reader for blob content; the caller must close it
	//   - error: ErrNotFound if the blob does not exist
	Open(ctx context.Context, ref string) (io.ReadSeekCloser, error)

	// Delete removes the blob. Deleting a blob that does not exist succeeds.
	Delete(ctx context.Context, ref string) error
}

// Clock returns the current time. It is injected so expiry can be tested.
type Clock func() time.Time

// ServiceConfig holds configuration options for Service.
type ServiceConfig struct {
	Policy         UploadPolicy
	Hasher         PasswordHasher // default: bcrypt, cost 10
	Clock          Clock          // default: time.Now
	Observer       Observer
	CleanupTimeout time.Duration // Timeout for blob cleanup after a failed upload (default: 30s)
}

// Service implements the ingestion pipeline and the read and delete paths
// on top of an ObjectRegistry and a BlobStore.
type Service struct {
	repo           ObjectRegistry
	blobs          BlobStore
	policy         UploadPolicy
	hasher         PasswordHasher
	access         *AccessController
	clock          Clock
	observer       Observer
	cleanupTimeout time.Duration
	validate       *validator.Validate
}

func NewService(repo ObjectRegistry, blobs BlobStore, cfg ServiceConfig) (*Service, error) {
	if repo == nil || blobs == nil {
		return nil, errors.New("new service: registry and blob store are required")
	}

	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("new service: %w", err)
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = NewBcryptHasher(DefaultBcryptCost)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}

	return &Service{
		repo:           repo,
		blobs:          blobs,
		policy:         cfg.Policy,
		hasher:         hasher,
		access:         NewAccessController(hasher),
		clock:          clock,
		observer:       observer,
		cleanupTimeout: cleanupTimeout,
		validate:       validator.New(),
	}, nil
}

// Ingest validates an upload, streams its content to the blob store and
// registers it, returning the stored object with its new token.
//
// The method performs the following steps:
//  1. Validates the request (name, password length)
//  2. Rejects forbidden extensions before any byte is written
//  3. Computes the expiry and hashes the password, if any
//  4. Streams content to the blob store, bounded by the size limit
//  5. Inserts the registry entry
//
// Either both the blob and the registry entry persist, or neither does: a
// size violation or a failed insert deletes the blob before the error is
// returned, using a detached context so cleanup survives cancellation.
//
// Error types returned:
//   - ErrInvalidInput: Request failed validation
//   - ErrPolicyViolation: Forbidden file type
//   - ErrTooLarge: Content exceeded the size limit (wraps ErrPolicyViolation)
//   - ErrDuplicateToken: Registry rejected the token
//   - Wrapped storage errors: Issues writing to the blob store
func (s *Service) Ingest(ctx context.Context, req IngestRequest, content io.Reader) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, fmt.Errorf("ingest: %w", err)
	}

	if content == nil {
		return StoredObject{}, fmt.Errorf("ingest: %w: content cannot be nil", ErrInvalidInput)
	}

	if err := s.validate.Struct(req); err != nil {
		s.observer.IngestRejected(RejectInvalid)
		return StoredObject{}, fmt.Errorf("ingest: %w: %w", ErrInvalidInput, err)
	}

	// bcrypt only reads the first 72 bytes; validator counts runes
	if len(req.Password) > 72 {
		s.observer.IngestRejected(RejectInvalid)
		return StoredObject{}, fmt.Errorf("ingest: %w: password longer than 72 bytes", ErrInvalidInput)
	}

	if err := s.policy.CheckName(req.OriginalName); err != nil {
		s.observer.IngestRejected(RejectForbiddenType)
		return StoredObject{}, fmt.Errorf("ingest %s: %w", req.OriginalName, err)
	}

	token, err := NewToken()
	if err != nil {
		return StoredObject{}, fmt.Errorf("ingest: %w", err)
	}

	var passwordHash string
	if req.Password != "" {
		passwordHash, err = s.hasher.Hash(req.Password)
		if err != nil {
			return StoredObject{}, fmt.Errorf("ingest: %w", err)
		}
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = DetectContentType(req.OriginalName)
	}

	limit := s.policy.MaxSizeBytes
	body := content
	if limit > 0 {
		// one byte past the limit tells an exact fit from an overflow
		body = io.LimitReader(content, limit+1)
	}

	put, err := s.blobs.Put(ctx, body, req.OriginalName)
	if err != nil {
		return StoredObject{}, fmt.Errorf("ingest %s: write failed: %w", req.OriginalName, err)
	}

	if limit > 0 && put.BytesWritten > limit {
		s.observer.IngestRejected(RejectTooLarge)
		if delErr := s.discardBlob(put.StoredRef); delErr != nil {
			return StoredObject{}, fmt.Errorf("ingest %s: %w (limit %d bytes) and cleanup failed: %w", req.OriginalName, ErrTooLarge, limit, delErr)
		}
		return StoredObject{}, fmt.Errorf("ingest %s: %w (limit %d bytes)", req.OriginalName, ErrTooLarge, limit)
	}

	createdAt := s.clock().UTC()
	obj := StoredObject{
		ID:           uuid.New(),
		Token:        token,
		OriginalName: req.OriginalName,
		MimeType:     mimeType,
		SizeBytes:    put.BytesWritten,
		StoredRef:    put.StoredRef,
		PasswordHash: passwordHash,
		Owner:        req.Owner,
		CreatedAt:    createdAt,
		ExpiresAt:    s.policy.ExpiresAt(createdAt, req.ExpiresInDays),
		Tags:         NormalizeTags(req.Tags),
	}

	created, insertErr := s.repo.Insert(ctx, obj)
	if insertErr != nil {
		if delErr := s.discardBlob(put.StoredRef); delErr != nil {
			return StoredObject{}, fmt.Errorf("ingest %s: registry insert failed (%w) and cleanup failed: %w", req.OriginalName, insertErr, delErr)
		}
		return StoredObject{}, fmt.Errorf("ingest %s: registry insert failed: %w", req.OriginalName, insertErr)
	}

	s.observer.ObjectIngested(created.SizeBytes)
	slog.Debug("object ingested", "id", created.ID, "size", created.SizeBytes, "owner", created.Owner, "expires_at", created.ExpiresAt)

	return created, nil
}

// discardBlob deletes a blob left behind by a rejected upload. It uses a
// background context since the request context may already be cancelled.
func (s *Service) discardBlob(ref string) error {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
	defer cancel()

	return s.blobs.Delete(cleanupCtx, ref)
}

func (s *Service) findLive(ctx context.Context, token string) (StoredObject, error) {
	if !IsValidToken(token) {
		return StoredObject{}, ErrNotFound
	}
	return s.repo.FindLiveByToken(ctx, token, s.clock())
}

// Metadata returns the public view of a live object.
func (s *Service) Metadata(ctx context.Context, token string) (ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return ObjectMetadata{}, fmt.Errorf("metadata: %w", err)
	}

	obj, err := s.findLive(ctx, token)
	if err != nil {
		return ObjectMetadata{}, fmt.Errorf("metadata: %w", err)
	}

	return obj.Metadata(), nil
}

// Download authorizes a read and opens the object's content.
//
// The download count is incremented only once the password has been
// accepted and the blob opened. Counting is best-effort: a failure is logged
// and the read still succeeds.
//
// The caller is responsible for closing the returned reader.
func (s *Service) Download(ctx context.Context, token, password string) (StoredObject, io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, nil, fmt.Errorf("download: %w", err)
	}

	obj, err := s.findLive(ctx, token)
	if err != nil {
		return StoredObject{}, nil, fmt.Errorf("download: %w", err)
	}

	if err := s.access.AuthorizeRead(obj, password); err != nil {
		return StoredObject{}, nil, fmt.Errorf("download: %w", err)
	}

	f, err := s.blobs.Open(ctx, obj.StoredRef)
	if err != nil {
		// a purge may have removed the blob after the lookup
		return StoredObject{}, nil, fmt.Errorf("download: %w", err)
	}

	if err := s.repo.IncrementDownloadCount(ctx, obj.ID); err != nil {
		slog.Warn("failed to increment download count", "id", obj.ID, "err", err)
	} else {
		obj.DownloadCount++
	}

	s.observer.ObjectDownloaded(obj.SizeBytes)

	return obj, f, nil
}

// VerifyPassword checks a password against a live object. Objects without a
// password accept any value.
func (s *Service) VerifyPassword(ctx context.Context, token, password string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	obj, err := s.findLive(ctx, token)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	if err := s.access.AuthorizeRead(obj, password); err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	return nil
}

// ListOwned returns the owner's live objects, newest first, optionally
// restricted to a tag.
func (s *Service) ListOwned(ctx context.Context, ownerID, tag string) ([]StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list owned: %w", err)
	}

	if ownerID == "" {
		return nil, fmt.Errorf("list owned: %w: owner cannot be empty", ErrInvalidInput)
	}

	normalized := ""
	if tag != "" {
		normalized = NormalizeTag(tag)
		if normalized == "" {
			// no stored tag can match an overlong or blank filter
			return []StoredObject{}, nil
		}
	}

	objs, err := s.repo.ListLiveByOwner(ctx, ownerID, normalized, s.clock())
	if err != nil {
		return nil, fmt.Errorf("list owned: %w", err)
	}

	return objs, nil
}

// Delete removes an object on behalf of its owner.
//
// Expired objects that have not been purged yet can still be deleted. The
// blob is removed before the registry row so a failure never leaves bytes
// without metadata; a blob that is already gone is not an error, nor is a row
// removed concurrently by the reaper.
//
// Error types returned:
//   - ErrNotFound: No object with this id
//   - ErrForbidden: The requester is not the owner (always for anonymous uploads)
func (s *Service) Delete(ctx context.Context, id uuid.UUID, requesterID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	obj, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	if err := s.access.AuthorizeDelete(obj, requesterID); err != nil {
		return fmt.Errorf("delete object %s: %w", id, err)
	}

	if err := s.remove(ctx, obj); err != nil {
		return fmt.Errorf("delete object %s: %w", id, err)
	}

	return nil
}

// Remove deletes an object regardless of owner, for operator takedowns. It
// follows the same blob-then-row order as Delete.
//
// Error types returned:
//   - ErrNotFound: No object with this id
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}

	obj, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("remove object: %w", err)
	}

	if err := s.remove(ctx, obj); err != nil {
		return fmt.Errorf("remove object %s: %w", id, err)
	}

	return nil
}

func (s *Service) remove(ctx context.Context, obj StoredObject) error {
	if err := s.blobs.Delete(ctx, obj.StoredRef); err != nil {
		return fmt.Errorf("blob: %w", err)
	}

	deleted, err := s.repo.DeleteByID(ctx, obj.ID)
	if err != nil {
		return err
	}

	if deleted {
		s.observer.ObjectDeleted()
	}

	return nil
}
