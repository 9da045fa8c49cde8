package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/condohub/condohub/internal/audit"
	"github.com/condohub/condohub/internal/billing"
	"github.com/condohub/condohub/internal/bridge"
	jobmetrics "github.com/condohub/condohub/internal/jobs"
	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/ledger/ledgertest"
	"github.com/condohub/condohub/internal/notify/notifytest"
	"github.com/condohub/condohub/internal/platform/clock"
)

type auditRepo struct {
	cutoff  time.Time
	deleted int64
}

func (a *auditRepo) Insert(context.Context, ledger.AuditLog) error { return nil }

func (a *auditRepo) List(context.Context, audit.ListParams) ([]ledger.AuditLog, error) {
	return nil, nil
}

func (a *auditRepo) DeleteBefore(_ context.Context, cutoff time.Time, _ []string) (int64, error) {
	a.cutoff = cutoff
	return a.deleted, nil
}

type runnerFixture struct {
	store   *ledgertest.MemoryStore
	sink    *notifytest.Recorder
	audit   *auditRepo
	reg     *prometheus.Registry
	runner  *Runner
	guard   *Guard
	clock   *clock.Fixed
	metrics *jobmetrics.Metrics
}

func newRunnerFixture(t *testing.T, guard func(*jobmetrics.Metrics) *Guard) *runnerFixture {
	t.Helper()
	f := &runnerFixture{
		store: ledgertest.NewMemoryStore(),
		sink:  &notifytest.Recorder{},
		audit: &auditRepo{deleted: 4},
		reg:   prometheus.NewRegistry(),
		clock: clock.NewFixed(time.Date(2024, 1, 11, 9, 0, 0, 0, time.UTC)),
	}
	f.store.Now = f.clock.Now
	f.metrics = jobmetrics.NewMetrics(f.reg)
	auditSvc := audit.NewService(f.audit, f.clock, nil)
	b := bridge.New(bridge.Config{Store: f.store, Notifications: f.sink, Audit: auditSvc, Clock: f.clock})
	if guard != nil {
		f.guard = guard(f.metrics)
	}
	runner, err := NewRunner(RunnerConfig{
		Billing: billing.NewService(b, billing.Config{}, nil),
		Audit:   auditSvc,
		Guard:   f.guard,
		Metrics: f.metrics,
		Timeout: time.Minute,
	})
	require.NoError(t, err)
	f.runner = runner
	return f
}

func (f *runnerFixture) pending(condo int64, amount string, due time.Time) ledger.Transaction {
	return f.store.SeedTransaction(ledger.Transaction{
		CondominiumID: condo,
		Type:          ledger.TypeIncome,
		Category:      ledger.CategoryCondominiumFee,
		Description:   "Monthly fee",
		Amount:        decimal.RequireFromString(amount),
		DueDate:       due,
		Status:        ledger.StatusPending,
	})
}

func statusOf(t *testing.T, r *Runner, name string) JobStatus {
	t.Helper()
	for _, st := range r.Status() {
		if st.Name == name {
			return st
		}
	}
	t.Fatalf("job %s not registered", name)
	return JobStatus{}
}

func TestRunOverdueCheckNowRecordsStatusAndMetrics(t *testing.T) {
	f := newRunnerFixture(t, nil)
	tx := f.pending(1, "100.00", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	res, err := f.runner.RunOverdueCheckNow(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.Len(t, res.Transactions, 1)

	stored, _ := f.store.Transaction(tx.ID)
	require.Equal(t, ledger.StatusOverdue, stored.Status)

	st := statusOf(t, f.runner, TaskOverdueSweep)
	require.Equal(t, 1, st.Runs)
	require.False(t, st.Running)
	require.Empty(t, st.LastError)
	require.NotNil(t, st.NextRun)

	count, err := testutil.GatherAndCount(f.reg, "condohub_late_fees_applied_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRunOverdueCheckNowSkipsWhileLeaseHeld(t *testing.T) {
	_, client := newRedis(t)
	f := newRunnerFixture(t, func(m *jobmetrics.Metrics) *Guard {
		return NewGuard(NewLease(client, time.Minute), m, nil)
	})
	tx := f.pending(1, "100.00", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	_, ok, err := NewLease(client, time.Minute).Acquire(context.Background(), TaskOverdueSweep)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.runner.RunOverdueCheckNow(context.Background())
	require.ErrorIs(t, err, ErrJobRunning)

	task, err := NewOverdueSweepTask(OverduePayload{})
	require.NoError(t, err)
	require.NoError(t, f.runner.handleOverdueSweep(context.Background(), task))

	stored, _ := f.store.Transaction(tx.ID)
	require.Equal(t, ledger.StatusPending, stored.Status)
	require.Zero(t, statusOf(t, f.runner, TaskOverdueSweep).Runs)
}

func TestRunUpcomingDuesNowDefaultsWindow(t *testing.T) {
	f := newRunnerFixture(t, nil)
	f.pending(1, "80.00", time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC))
	f.pending(1, "80.00", time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))

	res, err := f.runner.RunUpcomingDuesNow(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, billing.DefaultUpcomingDueDays, res.DaysAhead)
	require.Len(t, res.Reminders, 1)
}

func TestRunRetentionNow(t *testing.T) {
	f := newRunnerFixture(t, nil)

	res, err := f.runner.RunRetentionNow(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, DefaultRetentionMonths, res.Months)
	require.EqualValues(t, 4, res.Deleted)
	require.Equal(t, time.Date(2023, 7, 11, 9, 0, 0, 0, time.UTC), f.audit.cutoff)
}

func TestRunEmergencyOverdueProcessingSingleCondominium(t *testing.T) {
	f := newRunnerFixture(t, nil)
	f.pending(7, "100.00", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f.pending(7, "50.00", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))

	res, err := f.runner.RunEmergencyOverdueProcessing(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Total)
	require.Equal(t, 2, res.Processed)
	require.Equal(t, 1, statusOf(t, f.runner, TaskEmergencyOverdue).Runs)
}

func TestHandlersRejectMalformedPayload(t *testing.T) {
	f := newRunnerFixture(t, nil)
	task := asynq.NewTask(TaskUpcomingDues, []byte("{"))
	require.ErrorIs(t, f.runner.handleUpcomingDues(context.Background(), task), asynq.SkipRetry)
}

func TestHandlersCoverSchedule(t *testing.T) {
	f := newRunnerFixture(t, nil)
	types := map[string]bool{}
	for _, h := range f.runner.Handlers() {
		types[h.Type] = true
	}
	for _, job := range Schedule() {
		require.True(t, types[job.Type], job.Type)
	}

	cron, err := CronRegistrations()
	require.NoError(t, err)
	require.Len(t, cron, len(Schedule())-1)
}
