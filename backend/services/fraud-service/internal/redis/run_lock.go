package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the lock expiry only if it still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RunLock keeps detection runs from overlapping across service replicas. A held
// lock is extended in the background until released, so a run may outlast ttl.
type RunLock struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	renewEvery time.Duration
}

// NewRunLock returns a lock that expires after ttl if its holder dies.
func NewRunLock(client *redis.Client, prefix string, ttl time.Duration) *RunLock {
	return &RunLock{client: client, prefix: prefix, ttl: ttl, renewEvery: ttl / 3}
}

func (l *RunLock) key() string {
	return fmt.Sprintf("%s:runs:lock", l.prefix)
}

// TryLock acquires the lock without waiting. ok is false when another run holds it.
// The lock is kept alive until release is called.
func (l *RunLock) TryLock(ctx context.Context) (release func(context.Context) error, ok bool, err error) {
	token := uuid.NewString()
	ok, err = l.client.SetNX(ctx, l.key(), token, l.ttl).Result()
	if err != nil || !ok {
		return nil, ok, err
	}

	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.keepAlive(renewCtx, token)
	}()

	release = func(ctx context.Context) error {
		stop()
		<-done
		return releaseScript.Run(ctx, l.client, []string{l.key()}, token).Err()
	}
	return release, true, nil
}

// keepAlive extends the lock until ctx is done or the lock is no longer ours.
// Failed extensions are retried on the next tick.
func (l *RunLock) keepAlive(ctx context.Context, token string) {
	if l.renewEvery <= 0 {
		return
	}
	ticker := time.NewTicker(l.renewEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := extendScript.Run(ctx, l.client, []string{l.key()}, token, l.ttl.Milliseconds()).Int()
			if err == nil && n == 0 {
				return
			}
		}
	}
}
