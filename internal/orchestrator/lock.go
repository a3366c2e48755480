package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld means another orchestrator instance currently holds the lock.
var ErrLockHeld = errors.New("orchestrator: stage lock held by another instance")

// releaseScript deletes the lock key only if it still holds our token,
// so a lock that expired and was reacquired by someone else is never
// released out from under them.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// extendScript renews a lock's TTL only if it still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Lock is a single acquisition of a distributed per-job-stage lock.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
	cancel context.CancelFunc
}

// StageLock builds the Redis key for one job's attempt at one stage.
func StageLock(jobID string, stage string) string {
	return "cloudcost:lock:" + jobID + ":" + stage
}

// Acquire attempts to take the lock at key with SET NX PX, returning
// ErrLockHeld if another holder already has it. The lock is automatically
// renewed on a ticker at half its TTL until Release is called, so a stage
// that legitimately runs longer than ttl never loses the lock to itself.
func Acquire(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*Lock, error) {
	token, err := randomToken()
	if err != nil {
		return nil, err
	}

	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	l := &Lock{client: client, key: key, token: token, ttl: ttl, cancel: cancel}
	go l.renewLoop(renewCtx)
	return l, nil
}

func (l *Lock) renewLoop(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extendScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds())
		}
	}
}

// Release stops renewal and deletes the lock, compare-and-delete so it
// never removes a lock some other holder has since acquired.
func (l *Lock) Release(ctx context.Context) error {
	l.cancel()
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
