package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisLocker is a Locker shared by every process pointed at the same Redis.
// Keys expire after ttl so a crashed holder cannot block a business forever.
type RedisLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
	log    zerolog.Logger
}

// NewRedisLocker wraps an existing go-redis client.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, log zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		locker: redislock.New(client),
		ttl:    ttl,
		retry:  100 * time.Millisecond,
		prefix: "creditscore:lock:",
		log:    log,
	}
}

// NewRedisClient connects to addr and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("NewRedisClient: ping %s: %w", addr, err)
	}
	return rdb, nil
}

// Lock retries until the key is obtained, ctx is done, or one ttl elapses.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	waitCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.ttl)
		defer cancel()
	}

	lk, err := l.locker.Obtain(waitCtx, l.prefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, apperr.Newf(apperr.KindConflict, "lock.Lock", "%s is busy, try again later", key)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("lock.Lock: obtain %s: %w", key, err)
	}

	return func() {
		if err := lk.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn().Err(err).Str("key", key).Msg("Failed to release lock")
		}
	}, nil
}

var _ Locker = (*RedisLocker)(nil)
