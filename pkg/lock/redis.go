package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agenda/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL       = 30 * time.Second
	DefaultRetryWait = 50 * time.Millisecond
)

var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Redis is a lock shared by every process talking to the same Redis. Each
// holder owns a random token; release only deletes the key while the token
// still matches, so an expired holder cannot free someone else's lock.
type Redis struct {
	rdb       redis.UniversalClient
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
	log       *logger.Logger
}

func NewRedis(rdb redis.UniversalClient, prefix string, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		rdb:       rdb,
		prefix:    prefix,
		ttl:       ttl,
		retryWait: DefaultRetryWait,
		log:       log,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	name := r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, name, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, name, ctx.Err())
		case <-time.After(r.retryWait):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.rdb, []string{name}, token).Err(); err != nil {
				r.log.Warn("Failed to release lock", "key", name, "error", err)
			}
		})
	}, nil
}
