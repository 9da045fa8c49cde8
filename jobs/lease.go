package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/condohub/condohub/internal/shared"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Lease is a Redis lock that keeps one run of a job active across processes.
type Lease struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLease returns a lease helper. A nil client makes every acquire succeed.
func NewLease(client *redis.Client, ttl time.Duration) *Lease {
	return &Lease{client: client, ttl: ttl}
}

// Acquire takes the job lock. The returned release is a no-op when the lock
// was not taken.
func (l *Lease) Acquire(ctx context.Context, job string) (func(context.Context) error, bool, error) {
	noop := func(context.Context) error { return nil }
	if l == nil || l.client == nil {
		return noop, true, nil
	}
	key := shared.JobLockKey(job)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return noop, false, err
	}
	if !ok {
		return noop, false, nil
	}
	release := func(ctx context.Context) error {
		err := releaseScript.Run(ctx, l.client, []string{key}, token).Err()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	return release, true, nil
}
