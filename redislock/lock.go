// Package redislock implements ephemera.Locker on Redis so that only one
// process at a time runs a reaper pass.
//
// A lock is a key set with NX and a TTL holding a random owner value.
// Release deletes the key only while it still holds that value, so a holder
// whose lock expired can never remove a lock taken over by someone else.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrNotHeld is returned by release when the lock expired or changed hands.
var ErrNotHeld = errors.New("lock not held")

// Config holds the Redis connection settings.
type Config struct {
	Addr     string `mapstructure:"addr" yaml:"addr" validate:"required"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db" validate:"gte=0"`
}

// Locker hands out Redis-backed locks.
type Locker struct {
	client redis.UniversalClient
}

// NewClient creates a Redis client for cfg.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func New(client redis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// Ping verifies that Redis is reachable.
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Acquire tries once to take the lock for ttl. It does not wait: a lock held
// by someone else yields acquired=false and a nil error.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if ttl <= 0 {
		return nil, false, fmt.Errorf("acquire %s: ttl must be positive, got %s", key, ttl)
	}

	owner := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{key}, owner).Int()
		if err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		if n == 0 {
			return fmt.Errorf("release %s: %w", key, ErrNotHeld)
		}
		return nil
	}

	return release, true, nil
}
