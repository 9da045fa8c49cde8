package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/condohub/condohub/internal/jobs"
)

func TestGuardSkipsOverlappingRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	guard := NewGuard(nil, metrics, nil)

	started := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- guard.Do(context.Background(), TaskPaymentSync, func(context.Context) error {
			close(started)
			<-unblock
			return nil
		})
	}()
	<-started

	err := guard.Do(context.Background(), TaskPaymentSync, func(context.Context) error {
		t.Fatal("overlapping run must not execute")
		return nil
	})
	require.ErrorIs(t, err, ErrJobRunning)

	close(unblock)
	require.NoError(t, <-done)

	ran := false
	require.NoError(t, guard.Do(context.Background(), TaskPaymentSync, func(context.Context) error {
		ran = true
		return nil
	}))
	require.True(t, ran)

	count, err := testutil.GatherAndCount(reg, "condohub_jobs_skipped_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestGuardSkipsWhenLeaseHeldElsewhere(t *testing.T) {
	_, client := newRedis(t)
	other := NewLease(client, time.Minute)
	_, ok, err := other.Acquire(context.Background(), TaskOverdueSweep)
	require.NoError(t, err)
	require.True(t, ok)

	guard := NewGuard(NewLease(client, time.Minute), nil, nil)
	err = guard.Do(context.Background(), TaskOverdueSweep, func(context.Context) error {
		t.Fatal("run must be skipped while another process holds the lease")
		return nil
	})
	require.ErrorIs(t, err, ErrJobRunning)
}

func TestGuardReleasesAfterFailure(t *testing.T) {
	_, client := newRedis(t)
	guard := NewGuard(NewLease(client, time.Minute), nil, nil)
	boom := errors.New("boom")

	err := guard.Do(context.Background(), TaskOverdueSweep, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	err = guard.Do(context.Background(), TaskOverdueSweep, func(context.Context) error { return nil })
	require.NoError(t, err)
}
