// Package s3store provides an S3-compatible blob store for ephemera,
// backed by minio-go. Every blob is a single object in one bucket, keyed by
// its stored reference under an optional prefix.
package s3store

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sagarc03/ephemera"
)

// partSize bounds the buffer minio-go allocates per part when the upload
// length is unknown.
const partSize = 16 << 20

// Config holds the connection settings for an S3-compatible endpoint.
type Config struct {
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint" validate:"required"`
	Bucket       string `mapstructure:"bucket" yaml:"bucket" validate:"required"`
	AccessKey    string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey    string `mapstructure:"secret_key" yaml:"secret_key"`
	Region       string `mapstructure:"region" yaml:"region"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix"`
	UseSSL       bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	CreateBucket bool   `mapstructure:"create_bucket" yaml:"create_bucket"`
}

// Store keeps blobs as objects in a single bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewClient creates a minio client for the endpoint in cfg.
func NewClient(cfg Config) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("new s3 client: %w", err)
	}
	return client, nil
}

// New connects to the bucket named in cfg, creating it when CreateBucket is
// set. It fails if the bucket does not exist and may not be created.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	if err := ensureBucket(ctx, client, cfg.Bucket, cfg.Region, cfg.CreateBucket); err != nil {
		return nil, err
	}

	return NewStore(client, cfg.Bucket, cfg.Prefix), nil
}

// NewStore wraps an existing client. The bucket must already exist.
func NewStore(client *minio.Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket, region string, create bool) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}

	if !create {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func (s *Store) key(ref string) string {
	return s.prefix + ref
}

// Put streams content into a new object. The length is unknown up front so
// minio-go uploads it in parts; an aborted upload leaves no object behind.
func (s *Store) Put(ctx context.Context, content io.Reader, suggestedName string) (ephemera.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return ephemera.PutResult{}, err
	}

	ref, err := ephemera.NewStoredRef(suggestedName)
	if err != nil {
		return ephemera.PutResult{}, err
	}

	info, err := s.client.PutObject(ctx, s.bucket, s.key(ref), content, -1, minio.PutObjectOptions{
		ContentType: ephemera.DetectContentType(suggestedName),
		PartSize:    partSize,
	})
	if err != nil {
		return ephemera.PutResult{}, fmt.Errorf("put object %s: %w", ref, err)
	}

	return ephemera.PutResult{StoredRef: ref, BytesWritten: info.Size}, nil
}

// Open returns a reader for the object. The object is stat'ed first so a
// missing key surfaces as ephemera.ErrNotFound here rather than on first read.
func (s *Store) Open(ctx context.Context, ref string) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !ephemera.IsValidStoredRef(ref) {
		return nil, fmt.Errorf("open %q: %w", ref, ephemera.ErrNotFound)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.key(ref), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", ref, err)
	}

	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if isNotFound(err) {
			return nil, ephemera.ErrNotFound
		}
		return nil, fmt.Errorf("stat object %s: %w", ref, err)
	}

	return obj, nil
}

// Delete removes the object. S3 deletes are idempotent, so a missing key
// succeeds.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !ephemera.IsValidStoredRef(ref) {
		return fmt.Errorf("delete %q: %w: invalid reference", ref, ephemera.ErrInvalidInput)
	}

	err := s.client.RemoveObject(ctx, s.bucket, s.key(ref), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("remove object %s: %w", ref, err)
	}
	return nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
