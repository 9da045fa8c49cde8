package jobs

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/condohub/condohub/internal/shared"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLeaseIsExclusive(t *testing.T) {
	mr, client := newRedis(t)
	lease := NewLease(client, time.Minute)
	ctx := context.Background()

	release, ok, err := lease.Acquire(ctx, TaskOverdueSweep)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists(shared.JobLockKey(TaskOverdueSweep)))

	_, ok, err = lease.Acquire(ctx, TaskOverdueSweep)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = lease.Acquire(ctx, TaskPaymentSync)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, release(ctx))
	require.False(t, mr.Exists(shared.JobLockKey(TaskOverdueSweep)))

	_, ok, err = lease.Acquire(ctx, TaskOverdueSweep)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLeaseReleaseKeepsForeignLock(t *testing.T) {
	mr, client := newRedis(t)
	lease := NewLease(client, time.Minute)
	ctx := context.Background()

	release, ok, err := lease.Acquire(ctx, TaskOverdueSweep)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok, err = lease.Acquire(ctx, TaskOverdueSweep)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, release(ctx))
	require.True(t, mr.Exists(shared.JobLockKey(TaskOverdueSweep)))
}

func TestLeaseWithoutClient(t *testing.T) {
	var lease *Lease
	release, ok, err := lease.Acquire(context.Background(), TaskOverdueSweep)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, release(context.Background()))
}
