package lock

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL          = 30 * time.Second
	defaultRetryBackoff = 50 * time.Millisecond
	keyPrefix           = "tractor-shop:lock:"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by someone else is left alone.
var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// RedisConfig controls lock expiry and polling.
type RedisConfig struct {
	// TTL bounds how long a crashed holder can keep the lock.
	TTL time.Duration
	// RetryBackoff is the delay between acquisition attempts.
	RetryBackoff time.Duration
}

// Redis is a distributed lock built on SET NX with a random token.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedis creates a Redis locker using client.
func NewRedis(client *redis.Client, cfg RedisConfig) *Redis {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	return &Redis{client: client, ttl: cfg.TTL, retry: cfg.RetryBackoff}
}

// WithLock runs fn while holding the lock for key. The lock is released even
// if fn fails.
func (l *Redis) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	key = keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return errors.Wrapf(err, "acquire lock %s", key)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	defer l.release(key, token)

	return fn(ctx)
}

func (l *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
}
