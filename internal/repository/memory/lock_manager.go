package memory

import (
	"context"
	"sync"
	"time"

	"masjidgo/internal/repository"
	"masjidgo/pkg/utils"
)

// LockManager is a single-process stand-in for the redis lock. It serializes
// check-ins per user ("checkin:<userID>") and batch job runs ("job:<name>").
// A TTL bounds every lock so a holder that never releases cannot wedge the key.
//
// Go Learning Note — Channels for Signaling:
// `done` is a chan struct{} used purely as a broadcast: close(done) wakes
// every receiver at once and struct{} costs zero bytes.
type LockManager struct {
	mu       sync.Mutex
	held     map[string]heldLock
	done     chan struct{}
	stopOnce sync.Once
}

type heldLock struct {
	token  string
	expiry time.Time
}

var _ repository.LockManager = (*LockManager)(nil)

// NewLockManager creates a LockManager and starts the sweeper goroutine that
// drops expired keys every sweep interval. Call Stop to end it.
func NewLockManager(sweep time.Duration) *LockManager {
	if sweep <= 0 {
		sweep = time.Second
	}
	lm := &LockManager{
		held:     make(map[string]heldLock),
		done:     make(chan struct{}),
	}
	go lm.sweep(sweep)
	return lm
}

// AcquireLock is the in-process equivalent of `SET key <token> NX PX ttl`.
// An expired holder counts as free.
func (lm *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := time.Now()
	if h, ok := lm.held[key]; ok && now.Before(h.expiry) {
		return "", false, nil
	}
	token := utils.GenerateID()
	lm.held[key] = heldLock{token: token, expiry: now.Add(ttl)}
	return token, true, nil
}

// ReleaseLock frees key only if token still owns it.
func (lm *LockManager) ReleaseLock(ctx context.Context, key, token string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if h, ok := lm.held[key]; ok && h.token == token {
		delete(lm.held, key)
	}
	return nil
}

func (lm *LockManager) IsLocked(ctx context.Context, key string) (bool, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	h, ok := lm.held[key]
	return ok && time.Now().Before(h.expiry), nil
}

// sweep deletes expired keys until Stop is called.
//
// Go Learning Note — select Statement:
// select blocks until one case can proceed: either the ticker fires (sweep)
// or done is closed (exit). Deleting from a map while ranging over it is
// explicitly allowed by the Go spec.
func (lm *LockManager) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lm.mu.Lock()
			now := time.Now()
			for key, h := range lm.held {
				if !now.Before(h.expiry) {
					delete(lm.held, key)
				}
			}
			lm.mu.Unlock()
		case <-lm.done:
			return
		}
	}
}

// Stop ends the sweeper. It is safe to call more than once.
func (lm *LockManager) Stop() {
	lm.stopOnce.Do(func() { close(lm.done) })
}
