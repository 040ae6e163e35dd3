package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultRedisPrefix = "tasks:lock:"
	DefaultTTL         = 5 * time.Second
	defaultRetry       = 25 * time.Millisecond
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// Deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis serializes callers per user across processes with a lease that
// expires after ttl, so a crashed holder can't block the user forever.
type Redis struct {
	logger zerolog.Logger
	client RedisClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

func NewRedis(logger zerolog.Logger, client RedisClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		logger: logger,
		client: client,
		prefix: prefix,
		ttl:    ttl,
		retry:  defaultRetry,
	}
}

// Lock polls until the lease is acquired or ctx is done.
func (l *Redis) Lock(ctx context.Context, userID string) (func(), error) {
	key := l.prefix + userID
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrLockNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}

	l.logger.Trace().
		Str("key", key).
		Msg("acquired lock")

	return func() {
		// The caller's ctx may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.ttl)
		defer cancel()

		err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
		if err != nil {
			l.logger.Error().
				Err(err).
				Str("key", key).
				Msg("failed to release lock")
		}
	}, nil
}
