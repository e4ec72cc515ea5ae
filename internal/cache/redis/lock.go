package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

// releaseLua deletes a lock key only while it still holds the caller's
// token, so an expired holder cannot release a lock taken over by another.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager implements domain.LockManager with SET NX PX and a scripted
// conditional release.
type LockManager struct {
	rdb     *redis.Client
	prefix  string
	release *redis.Script
}

// NewLockManager creates a LockManager whose keys live under prefix+"lock:".
func NewLockManager(c *Client, prefix string) *LockManager {
	return &LockManager{
		rdb:     c.Underlying(),
		prefix:  prefix,
		release: redis.NewScript(releaseLua),
	}
}

// Acquire takes the lock named key for ttl. The returned release func is
// idempotent. It returns domain.ErrLockHeld when another holder has it.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lm.prefix + "lock:" + key

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, domain.ErrLockHeld)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be done by the time it releases.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.release.Run(rctx, lm.rdb, []string{lk}, token).Err()
		})
	}, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
