package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/condohub/condohub/internal/audit"
	"github.com/condohub/condohub/internal/billing"
	jobmetrics "github.com/condohub/condohub/internal/jobs"
)

const (
	DefaultJobTimeout      = 30 * time.Minute
	DefaultRetentionMonths = 6
)

// RunnerConfig collects the dependencies of a Runner.
type RunnerConfig struct {
	Billing         *billing.Service
	Audit           *audit.Service
	Registry        *Registry
	Guard           *Guard
	Metrics         *jobmetrics.Metrics
	Logger          *slog.Logger
	Timeout         time.Duration
	RetentionMonths int
	UpcomingDueDays int
}

// Runner executes scheduled and manual job runs through one guard and registry.
type Runner struct {
	billing         *billing.Service
	audit           *audit.Service
	registry        *Registry
	guard           *Guard
	metrics         *jobmetrics.Metrics
	logger          *slog.Logger
	timeout         time.Duration
	retentionMonths int
	upcomingDueDays int
}

// NewRunner registers the finance jobs in cfg.Registry and returns the runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Billing == nil {
		return nil, errors.New("jobs: billing service required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry(time.UTC)
	}
	if cfg.Guard == nil {
		cfg.Guard = NewGuard(nil, cfg.Metrics, cfg.Logger)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultJobTimeout
	}
	if cfg.RetentionMonths <= 0 {
		cfg.RetentionMonths = DefaultRetentionMonths
	}
	if cfg.UpcomingDueDays <= 0 {
		cfg.UpcomingDueDays = billing.DefaultUpcomingDueDays
	}
	for _, job := range Schedule() {
		if err := cfg.Registry.Register(job.Type, job.Spec); err != nil {
			return nil, err
		}
	}
	return &Runner{
		billing:         cfg.Billing,
		audit:           cfg.Audit,
		registry:        cfg.Registry,
		guard:           cfg.Guard,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		timeout:         cfg.Timeout,
		retentionMonths: cfg.RetentionMonths,
		upcomingDueDays: cfg.UpcomingDueDays,
	}, nil
}

// ScheduledJob pairs a task type with its cron spec. Manual-only jobs have no spec.
type ScheduledJob struct {
	Type string
	Spec string
}

// Schedule lists every job known to the runner.
func Schedule() []ScheduledJob {
	return []ScheduledJob{
		{Type: TaskOverdueSweep, Spec: SpecOverdueSweep},
		{Type: TaskUnitPaymentOverdue, Spec: SpecUnitPaymentOverdue},
		{Type: TaskUpcomingDues, Spec: SpecUpcomingDues},
		{Type: TaskPaymentSync, Spec: SpecPaymentSync},
		{Type: TaskAuditRetention, Spec: SpecAuditRetention},
		{Type: TaskEmergencyOverdue},
	}
}

// Status reports the registered jobs.
func (r *Runner) Status() []JobStatus {
	return r.registry.Status()
}

// RunOverdueCheckNow applies late fees to every overdue transaction.
func (r *Runner) RunOverdueCheckNow(ctx context.Context) (billing.OverdueResult, error) {
	return r.runOverdue(ctx, nil)
}

// RunUnitPaymentOverdueNow applies late fees to overdue unit payments.
func (r *Runner) RunUnitPaymentOverdueNow(ctx context.Context) (billing.BatchResult, error) {
	return r.runUnitPayments(ctx, nil)
}

// RunUpcomingDuesNow sends reminders for dues in the next daysAhead days.
// A non-positive daysAhead uses the configured default.
func (r *Runner) RunUpcomingDuesNow(ctx context.Context, daysAhead int) (billing.UpcomingResult, error) {
	return r.runUpcoming(ctx, nil, daysAhead)
}

// RunEmergencyOverdueProcessing sweeps overdue transactions condominium by condominium.
func (r *Runner) RunEmergencyOverdueProcessing(ctx context.Context) (billing.EmergencyResult, error) {
	var out billing.EmergencyResult
	err := r.run(ctx, TaskEmergencyOverdue, func(ctx context.Context) (any, error) {
		res, err := r.billing.ProcessEmergencyOverdue(ctx)
		out = res
		r.metrics.AddItems(TaskEmergencyOverdue, "processed", res.Processed)
		r.metrics.AddItems(TaskEmergencyOverdue, "failed", res.Failed)
		r.metrics.AddLateFees(res.Processed)
		return res, err
	})
	return out, err
}

// RunPaymentSyncNow reconciles recently paid maintenance transactions.
func (r *Runner) RunPaymentSyncNow(ctx context.Context) (billing.BatchResult, error) {
	var out billing.BatchResult
	err := r.run(ctx, TaskPaymentSync, func(ctx context.Context) (any, error) {
		res, err := r.billing.ReconcilePaymentStatus(ctx)
		out = res
		r.recordBatch(TaskPaymentSync, res)
		return res, err
	})
	return out, err
}

// RetentionResult reports the audit rows removed by a retention run.
type RetentionResult struct {
	Months  int   `json:"months"`
	Deleted int64 `json:"deleted"`
}

// RunRetentionNow prunes automated audit entries older than months.
// A non-positive months uses the configured default.
func (r *Runner) RunRetentionNow(ctx context.Context, months int) (RetentionResult, error) {
	if months <= 0 {
		months = r.retentionMonths
	}
	out := RetentionResult{Months: months}
	if r.audit == nil {
		return out, errors.New("jobs: audit service not configured")
	}
	err := r.run(ctx, TaskAuditRetention, func(ctx context.Context) (any, error) {
		deleted, err := r.audit.Cleanup(ctx, months)
		out.Deleted = deleted
		return out, err
	})
	return out, err
}

func (r *Runner) runOverdue(ctx context.Context, condominiumID *int64) (billing.OverdueResult, error) {
	var out billing.OverdueResult
	err := r.run(ctx, TaskOverdueSweep, func(ctx context.Context) (any, error) {
		res, err := r.billing.CheckAndApplyLateFees(ctx, condominiumID)
		out = res
		r.recordBatch(TaskOverdueSweep, res.BatchResult)
		r.metrics.AddLateFees(len(res.Transactions))
		return res.BatchResult, err
	})
	return out, err
}

func (r *Runner) runUnitPayments(ctx context.Context, condominiumID *int64) (billing.BatchResult, error) {
	var out billing.BatchResult
	err := r.run(ctx, TaskUnitPaymentOverdue, func(ctx context.Context) (any, error) {
		res, err := r.billing.CheckOverdueUnitPayments(ctx, condominiumID)
		out = res
		r.recordBatch(TaskUnitPaymentOverdue, res)
		return res, err
	})
	return out, err
}

func (r *Runner) runUpcoming(ctx context.Context, condominiumID *int64, daysAhead int) (billing.UpcomingResult, error) {
	if daysAhead <= 0 {
		daysAhead = r.upcomingDueDays
	}
	var out billing.UpcomingResult
	err := r.run(ctx, TaskUpcomingDues, func(ctx context.Context) (any, error) {
		res, err := r.billing.CheckUpcomingDueDates(ctx, condominiumID, daysAhead)
		out = res
		r.recordBatch(TaskUpcomingDues, res.BatchResult)
		return res.BatchResult, err
	})
	return out, err
}

// run executes fn under the guard with the job deadline, tracking it in the
// registry and metrics.
func (r *Runner) run(ctx context.Context, job string, fn func(context.Context) (any, error)) error {
	logger := r.logger.With(slog.String("job", job))
	return r.guard.Do(ctx, job, func(ctx context.Context) error {
		r.registry.Started(job)
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		logger.Info("job started")
		tracker := r.metrics.Track(job)
		result, err := fn(ctx)
		err = tracker.End(err)
		r.registry.Finished(job, result, err)
		if err != nil {
			logger.Error("job failed", slog.Any("error", err))
			return err
		}
		logger.Info("job finished", slog.Any("result", result))
		return nil
	})
}

func (r *Runner) recordBatch(job string, res billing.BatchResult) {
	r.metrics.AddItems(job, "processed", res.Processed)
	r.metrics.AddItems(job, "failed", res.Failed)
}

// Handlers exposes the runner as asynq handlers.
func (r *Runner) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskOverdueSweep, Handler: r.handleOverdueSweep},
		{Type: TaskUnitPaymentOverdue, Handler: r.handleUnitPaymentOverdue},
		{Type: TaskUpcomingDues, Handler: r.handleUpcomingDues},
		{Type: TaskPaymentSync, Handler: r.handlePaymentSync},
		{Type: TaskEmergencyOverdue, Handler: r.handleEmergencyOverdue},
		{Type: TaskAuditRetention, Handler: r.handleAuditRetention},
	}
}

func (r *Runner) handleOverdueSweep(ctx context.Context, t *asynq.Task) error {
	var payload OverduePayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	_, err := r.runOverdue(ctx, payload.CondominiumID)
	return taskError(err)
}

func (r *Runner) handleUnitPaymentOverdue(ctx context.Context, t *asynq.Task) error {
	var payload OverduePayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	_, err := r.runUnitPayments(ctx, payload.CondominiumID)
	return taskError(err)
}

func (r *Runner) handleUpcomingDues(ctx context.Context, t *asynq.Task) error {
	var payload UpcomingDuesPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	_, err := r.runUpcoming(ctx, payload.CondominiumID, payload.DaysAhead)
	return taskError(err)
}

func (r *Runner) handlePaymentSync(ctx context.Context, _ *asynq.Task) error {
	_, err := r.RunPaymentSyncNow(ctx)
	return taskError(err)
}

func (r *Runner) handleEmergencyOverdue(ctx context.Context, _ *asynq.Task) error {
	_, err := r.RunEmergencyOverdueProcessing(ctx)
	return taskError(err)
}

func (r *Runner) handleAuditRetention(ctx context.Context, t *asynq.Task) error {
	var payload RetentionPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	_, err := r.RunRetentionNow(ctx, payload.Months)
	return taskError(err)
}

// taskError drops overlap skips so asynq does not record them as failures.
func taskError(err error) error {
	if errors.Is(err, ErrJobRunning) {
		return nil
	}
	return err
}
