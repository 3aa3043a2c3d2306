package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LoadLockKey builds redis keys for the load-assignment critical section.
// Manifest managers assigning to the same load serialize on it so capacity
// checks stay consistent.
func LoadLockKey(loadID int64) string {
	return fmt.Sprintf("loads:%d:assign:lock", loadID)
}

// ErrLockBusy indicates the critical section is held by someone else.
var ErrLockBusy = errors.New("lock busy")

// Locker is a small redis mutex. Locks carry a TTL so a crashed holder
// releases on its own.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocker builds a Locker whose locks expire after ttl.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl}
}

const (
	lockRetries    = 3
	lockRetryDelay = 50 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// Acquire takes the lock, retrying briefly before giving up with
// ErrLockBusy. The returned release deletes only this holder's token; an
// expired lock already taken over by someone else stays intact.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		if attempt >= lockRetries {
			return nil, fmt.Errorf("acquire %s: %w", key, ErrLockBusy)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
