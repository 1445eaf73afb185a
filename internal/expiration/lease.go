package expiration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease keeps concurrent instances from running redundant sweeps. Sweeping
// stays correct without it.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// releaseScript deletes the key only while it still holds our owner token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is a SET NX PX lease with compare-and-delete release
type RedisLease struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	owner  string
}

func NewRedisLease(client *redis.Client, key string, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLease{
		client: client,
		key:    key,
		ttl:    ttl,
		owner:  uuid.NewString(),
	}
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire sweep lease: %w", err)
	}
	return ok, nil
}

func (l *RedisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err(); err != nil {
		return fmt.Errorf("release sweep lease: %w", err)
	}
	return nil
}
