// Package lock provides short lived mutual exclusion keyed by name.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-ledger/utils"
)

var ErrNotAcquired = errors.New("lock: already held")

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

type Locker interface {
	// TryLock returns ErrNotAcquired without waiting when name is held.
	TryLock(ctx context.Context, name string) (*Lock, error)
}

type Lock struct {
	name    string
	release func(ctx context.Context) error
	once    sync.Once
}

func (l *Lock) Name() string {
	return l.name
}

// Release is safe to call more than once.
func (l *Lock) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() { err = l.release(ctx) })
	return err
}

// RedisLocker holds locks as Redis keys that expire after ttl, so a crashed
// holder cannot block other instances for longer than ttl.
type RedisLocker struct {
	client   redis.Cmdable
	prefix   string
	ttl      time.Duration
	newToken func() (string, error)
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: "lock:",
		ttl:    ttl,
		newToken: func() (string, error) {
			return utils.GenerateCode(16)
		},
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, name string) (*Lock, error) {
	token, err := l.newToken()
	if err != nil {
		return nil, fmt.Errorf("lock token: %w", err)
	}

	key := l.prefix + name
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return &Lock{
		name: name,
		release: func(ctx context.Context) error {
			if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
				return fmt.Errorf("release lock %s: %w", name, err)
			}
			return nil
		},
	}, nil
}

// LocalLocker keeps locks in process memory for single instance deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) TryLock(ctx context.Context, name string) (*Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[name]; ok {
		return nil, ErrNotAcquired
	}
	l.held[name] = struct{}{}

	return &Lock{
		name: name,
		release: func(context.Context) error {
			l.mu.Lock()
			delete(l.held, name)
			l.mu.Unlock()
			return nil
		},
	}, nil
}
