package mutex

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"circulation/internal/odl/ports"
	"circulation/pkg/platform/clock"
)

type lease struct {
	token   string
	expires time.Time
}

// LocalFactory hands out in-process lockers that share one lease table. It
// serves single-process deployments and tests.
type LocalFactory struct {
	mu     sync.Mutex
	leases map[string]lease
	prefix string
	ttl    time.Duration
	clock  clock.Clock
}

func NewLocalFactory(prefix string, ttl time.Duration, c clock.Clock) *LocalFactory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if c == nil {
		c = clock.NewSystem()
	}
	return &LocalFactory{
		leases: make(map[string]lease),
		prefix: prefix,
		ttl:    ttl,
		clock:  c,
	}
}

func (f *LocalFactory) ForCollection(task string, collectionID int64) ports.Locker {
	return f.Locker(Key(f.prefix, task, collectionID))
}

// Locker returns a new owner for key.
func (f *LocalFactory) Locker(key string) *LocalLocker {
	return &LocalLocker{factory: f, key: key, token: uuid.NewString()}
}

// Held reports whether key has an unexpired lease.
func (f *LocalFactory) Held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leases[key]
	return ok && f.clock.Now().Before(l.expires)
}

// LocalLocker is one owner's handle on a key of a LocalFactory.
type LocalLocker struct {
	factory *LocalFactory
	key     string
	token   string
}

func (l *LocalLocker) Key() string {
	return l.key
}

func (l *LocalLocker) Acquire(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f := l.factory
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	if cur, ok := f.leases[l.key]; ok && now.Before(cur.expires) {
		return false, nil
	}
	f.leases[l.key] = lease{token: l.token, expires: now.Add(f.ttl)}
	return true, nil
}

func (l *LocalLocker) Release(ctx context.Context) (bool, error) {
	f := l.factory
	f.mu.Lock()
	defer f.mu.Unlock()

	if cur, ok := f.leases[l.key]; ok && cur.token == l.token {
		delete(f.leases, l.key)
		return true, nil
	}
	return false, nil
}

func (l *LocalLocker) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	f := l.factory
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	cur, ok := f.leases[l.key]
	if !ok || cur.token != l.token || !now.Before(cur.expires) {
		return false, nil
	}
	f.leases[l.key] = lease{token: l.token, expires: now.Add(ttl)}
	return true, nil
}
