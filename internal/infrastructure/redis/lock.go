package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a lock could not be acquired within the wait limit.
var ErrLockTimeout = errors.New("timed out waiting for lock")

const lockPrefix = "sync:lock:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a SET NX PX lock shared by every replica.
type Locker struct {
	client *goredis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

// NewLocker creates a lock whose keys expire after ttl and whose Lock gives up
// after wait.
func NewLocker(client *goredis.Client, ttl, wait time.Duration) *Locker {
	return &Locker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		poll:   50 * time.Millisecond,
	}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	redisKey := lockPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s: %w", key, ErrLockTimeout)
		}

		timer := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
