package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"masjidgo/internal/repository"
	"masjidgo/pkg/utils"
)

const lockPrefix = "lock:"

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockManager implements repository.LockManager with SET NX PX and a random
// owner token per acquisition. Expiry is left to redis.
type LockManager struct {
	client *redis.Client
}

var _ repository.LockManager = (*LockManager)(nil)

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

func (lm *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := utils.GenerateID()
	ok, err := lm.client.SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock is a compare-and-delete; a key now owned by another token is
// left alone.
func (lm *LockManager) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, lm.client, []string{lockPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (lm *LockManager) IsLocked(ctx context.Context, key string) (bool, error) {
	n, err := lm.client.Exists(ctx, lockPrefix+key).Result()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return n == 1, nil
}
