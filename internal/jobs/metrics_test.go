package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("finance:overdue_sweep").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("finance:overdue_sweep").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("finance:overdue_sweep", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("finance:overdue_sweep", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("finance:overdue_sweep")))
}

func TestCountersIgnoreNonPositive(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddItems("finance:payment_sync", "processed", 0)
	m.AddItems("finance:payment_sync", "processed", 3)
	m.AddLateFees(-1)
	m.AddLateFees(2)
	m.Skipped("finance:payment_sync")

	require.Equal(t, 3.0, testutil.ToFloat64(m.items.WithLabelValues("finance:payment_sync", "processed")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.lateFees))
	require.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues("finance:payment_sync")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("x").End(nil))
	m.Skipped("x")
	m.AddItems("x", "failed", 1)
	m.AddLateFees(1)
}
