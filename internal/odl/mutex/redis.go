// Package mutex provides non-blocking, lease-based locks that keep two
// workers from processing the same collection at once.
package mutex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"circulation/internal/odl/ports"
)

// DefaultTTL is the lease used when none is configured.
const DefaultTTL = 15 * time.Minute

var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// Key builds the coordination key for a task over one collection.
func Key(prefix, task string, collectionID int64) string {
	return fmt.Sprintf("%s::Lock::%s::Collection::%d", prefix, task, collectionID)
}

// RedisLocker is a lock on one Redis key. Ownership is proven by a random
// token, so only the acquirer can release or extend the lease.
type RedisLocker struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration
}

// NewRedis builds a locker for key with the given lease.
func NewRedis(client redis.UniversalClient, key string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

func (l *RedisLocker) Key() string {
	return l.key
}

// Acquire issues SET key token NX PX ttl once.
func (l *RedisLocker) Acquire(ctx context.Context) (bool, error) {
	err := l.client.SetArgs(ctx, l.key, l.token, redis.SetArgs{Mode: "NX", TTL: l.ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	return true, nil
}

// Release deletes the key only if it still carries this locker's token.
func (l *RedisLocker) Release(ctx context.Context) (bool, error) {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return false, fmt.Errorf("release %s: %w", l.key, err)
	}
	return n == 1, nil
}

// Extend resets the lease to ttl if this locker still owns the key.
func (l *RedisLocker) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("extend %s: %w", l.key, err)
	}
	return n == 1, nil
}

// Factory builds Redis lockers scoped to (task, collection).
type Factory struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewFactory(client redis.UniversalClient, prefix string, ttl time.Duration) *Factory {
	return &Factory{client: client, prefix: prefix, ttl: ttl}
}

func (f *Factory) ForCollection(task string, collectionID int64) ports.Locker {
	return NewRedis(f.client, Key(f.prefix, task, collectionID), f.ttl)
}
