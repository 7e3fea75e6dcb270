package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sagarc03/ephemera"
	"github.com/sagarc03/ephemera/config"
	"github.com/sagarc03/ephemera/filesystem"
	"github.com/sagarc03/ephemera/redislock"
	"github.com/sagarc03/ephemera/s3store"
)

// openBlobStore opens the configured blob store. The returned func releases
// it and is safe to call when err is non-nil.
func openBlobStore(ctx context.Context, cfg *config.Config) (ephemera.BlobStore, func(), error) {
	switch cfg.Storage.Type {
	case "s3":
		store, err := s3store.New(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, func() {}, fmt.Errorf("open s3 storage: %w", err)
		}
		slog.Info("using s3 storage", "endpoint", cfg.Storage.S3.Endpoint, "bucket", cfg.Storage.S3.Bucket)
		return store, func() {}, nil

	default:
		if err := os.MkdirAll(cfg.Storage.Path, 0o750); err != nil {
			return nil, func() {}, fmt.Errorf("create storage directory: %w", err)
		}

		root, err := os.OpenRoot(cfg.Storage.Path)
		if err != nil {
			return nil, func() {}, fmt.Errorf("open storage root: %w", err)
		}

		slog.Info("using filesystem storage", "path", cfg.Storage.Path)
		return filesystem.NewFileStorage(root), func() { _ = root.Close() }, nil
	}
}

// openLocker connects the reaper lock, or returns nil when reaper.lock.type
// is none.
func openLocker(ctx context.Context, cfg *config.Config) (ephemera.Locker, func(), error) {
	if cfg.Reaper.Lock.Type != "redis" {
		return nil, func() {}, nil
	}

	client := redislock.NewClient(cfg.Reaper.Lock.Redis)
	locker := redislock.New(client)

	if err := locker.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, func() {}, fmt.Errorf("connect redis lock: %w", err)
	}

	slog.Info("using redis reaper lock", "addr", cfg.Reaper.Lock.Redis.Addr, "key", cfg.Reaper.Lock.Key)
	return locker, func() { _ = client.Close() }, nil
}

func newService(cfg *config.Config, repo ephemera.ObjectRegistry, blobs ephemera.BlobStore, observer ephemera.Observer) (*ephemera.Service, error) {
	service, err := ephemera.NewService(repo, blobs, ephemera.ServiceConfig{
		Policy:         cfg.Upload.Policy(),
		Observer:       observer,
		CleanupTimeout: time.Duration(cfg.Service.CleanupTimeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return service, nil
}

func newReaper(cfg *config.Config, repo ephemera.ObjectRegistry, blobs ephemera.BlobStore, observer ephemera.Observer, locker ephemera.Locker) *ephemera.Reaper {
	return ephemera.NewReaper(repo, blobs, ephemera.ReaperConfig{
		Observer: observer,
		Locker:   locker,
		LockKey:  cfg.Reaper.Lock.Key,
		LockTTL:  cfg.Reaper.Lock.TTL,
	})
}
