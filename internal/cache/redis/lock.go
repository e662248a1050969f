package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// defaultLockTTL bounds lock lifetime when the caller passes zero, so a
// crashed replica cannot wedge a listing forever.
const defaultLockTTL = 10 * time.Second

// unlockLua releases a lock only when its value matches the holder's token.
// Without the token check a slow holder whose TTL expired could delete a
// lock that was since granted to someone else.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager implements domain.LockManager on Redis SET NX with a TTL and a
// token-checked unlock. MarketService acquires one of these per listing (or
// per asset, for creates) before mutating, so concurrent replicas sharing a
// database cannot interleave writes to the same record; the engine's
// in-process key locks only cover a single replica.
type LockManager struct {
	rdb      *redis.Client
	unlockSc *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:      c.Underlying(),
		unlockSc: redis.NewScript(unlockLua),
	}
}

func lockKey(key string) string {
	return namespaced("lock", key)
}

// Acquire obtains the distributed lock for key, holding it for at most ttl.
// It does not block: if another holder owns the lock it returns
// domain.ErrLockHeld immediately and the caller decides whether to retry.
// The returned release function is safe to call more than once and uses a
// background context so the lock is freed even when the request context is
// already cancelled.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	token := uuid.New().String()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true

		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lm.unlockSc.Run(unlockCtx, lm.rdb, []string{lk}, token).Err()
	}
	return release, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
