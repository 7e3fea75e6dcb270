package ephemera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Locker grants exclusive, time-bounded ownership of a named lock across
// processes. Acquire returns acquired=false, without error, when another
// holder owns the lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// ReaperConfig holds configuration options for Reaper.
type ReaperConfig struct {
	Clock    Clock
	Observer Observer
	Locker   Locker        // optional, coordinates passes across processes
	LockKey  string        // default: "ephemera:reaper"
	LockTTL  time.Duration // default: 10m
}

// Reaper physically removes expired objects and their blobs. It holds no
// state of its own beyond the guard that keeps passes from overlapping.
type Reaper struct {
	repo     ObjectRegistry
	blobs    BlobStore
	clock    Clock
	observer Observer
	locker   Locker
	lockKey  string
	lockTTL  time.Duration

	running sync.Mutex
}

func NewReaper(repo ObjectRegistry, blobs BlobStore, cfg ReaperConfig) *Reaper {
	r := &Reaper{
		repo:     repo,
		blobs:    blobs,
		clock:    cfg.Clock,
		observer: cfg.Observer,
		locker:   cfg.Locker,
		lockKey:  cfg.LockKey,
		lockTTL:  cfg.LockTTL,
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	if r.lockKey == "" {
		r.lockKey = "ephemera:reaper"
	}
	if r.lockTTL <= 0 {
		r.lockTTL = 10 * time.Minute
	}
	return r
}

// Run performs one purge pass over the objects expired as of now.
//
// For each expired object the blob is deleted first, then the registry row.
// Per-object failures are logged and skipped: a blob that cannot be deleted
// does not keep its row alive, and a row that cannot be deleted does not stop
// the pass. Only rows actually removed by this pass are counted, so running
// twice in a row purges nothing the second time.
//
// Returns:
//   - int: Number of objects purged
//   - error: ErrReapInProgress if another pass holds the reaper, or a listing error
func (r *Reaper) Run(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("reap: %w", err)
	}

	if !r.running.TryLock() {
		return 0, fmt.Errorf("reap: %w", ErrReapInProgress)
	}
	defer r.running.Unlock()

	if r.locker != nil {
		release, acquired, err := r.locker.Acquire(ctx, r.lockKey, r.lockTTL)
		if err != nil {
			r.observer.ReapFailed()
			return 0, fmt.Errorf("reap: acquire lock: %w", err)
		}
		if !acquired {
			return 0, fmt.Errorf("reap: %w", ErrReapInProgress)
		}
		defer func() {
			// release even when ctx is already done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				slog.Warn("failed to release reaper lock", "key", r.lockKey, "err", err)
			}
		}()
	}

	started := time.Now()
	asOf := r.clock()

	expired, err := r.repo.ListExpired(ctx, asOf)
	if err != nil {
		r.observer.ReapFailed()
		return 0, fmt.Errorf("reap: %w", err)
	}

	purged, failed := 0, 0
	for _, obj := range expired {
		if err := ctx.Err(); err != nil {
			r.observer.ReapCompleted(purged, failed, time.Since(started))
			return purged, fmt.Errorf("reap: %w", err)
		}

		if err := r.blobs.Delete(ctx, obj.StoredRef); err != nil {
			slog.Warn("reap: failed to delete blob", "id", obj.ID, "ref", obj.StoredRef, "err", err)
		}

		deleted, err := r.repo.DeleteByID(ctx, obj.ID)
		if err != nil {
			failed++
			slog.Warn("reap: failed to delete registry entry", "id", obj.ID, "err", err)
			continue
		}

		if deleted {
			purged++
		}
	}

	r.observer.ReapCompleted(purged, failed, time.Since(started))
	slog.Info("reap complete", "expired", len(expired), "purged", purged, "failed", failed, "as_of", asOf)

	return purged, nil
}

// Start runs a pass every interval until ctx is done. When runOnStart is set
// the first pass happens immediately. Pass errors are logged; Start only
// returns once ctx is cancelled.
func (r *Reaper) Start(ctx context.Context, interval time.Duration, runOnStart bool) error {
	if interval <= 0 {
		return fmt.Errorf("start reaper: interval must be positive, got %s", interval)
	}

	slog.Info("reaper started", "interval", interval, "run_on_start", runOnStart)

	if runOnStart {
		r.runLogged(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reaper stopped")
			return nil
		case <-ticker.C:
			r.runLogged(ctx)
		}
	}
}

func (r *Reaper) runLogged(ctx context.Context) {
	if _, err := r.Run(ctx); err != nil {
		switch {
		case errors.Is(err, ErrReapInProgress):
			slog.Debug("reap skipped", "err", err)
		case ctx.Err() != nil:
			// shutting down
		default:
			slog.Error("reap failed", "err", err)
		}
	}
}
