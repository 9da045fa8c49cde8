package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/condohub/condohub/internal/audit"
	"github.com/condohub/condohub/internal/billing"
	"github.com/condohub/condohub/internal/bridge"
	jobmetrics "github.com/condohub/condohub/internal/jobs"
	"github.com/condohub/condohub/internal/latefee"
	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/notify"
	"github.com/condohub/condohub/internal/platform/clock"
	"github.com/condohub/condohub/internal/reporting"
	"github.com/condohub/condohub/jobs"
)

// Dependencies are the infrastructure handles shared by the API and worker.
type Dependencies struct {
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	Enqueuer   notify.Enqueuer
	JobMetrics *jobmetrics.Metrics
	Logger     *slog.Logger
}

// Services is the assembled finance core.
type Services struct {
	Store         *ledger.PostgresStore
	Notifications *notify.PostgresSink
	Audit         *audit.Service
	Bridge        *bridge.Bridge
	Billing       *billing.Service
	Dashboard     *reporting.Service
	Registry      *jobs.Registry
	Runner        *jobs.Runner
}

// BuildServices wires the finance core from configuration.
func BuildServices(cfg *Config, deps Dependencies) (*Services, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := clock.System{}

	capPct, err := cfg.LateFeeCap()
	if err != nil {
		return nil, err
	}

	var dispatcher notify.Dispatcher
	if deps.Enqueuer != nil {
		dispatcher = notify.NewQueueDispatcher(deps.Enqueuer)
	}
	store := ledger.NewPostgresStore(deps.Pool)
	sink := notify.NewPostgresSink(deps.Pool, dispatcher)
	auditService := audit.NewService(audit.NewPostgresRepository(deps.Pool), clk, logger.With(slog.String("component", "audit")))
	dashboardCache := reporting.NewCache(deps.Redis, cfg.DashboardCacheTTL)

	b := bridge.New(bridge.Config{
		Store:          store,
		Notifications:  sink,
		Audit:          auditService,
		Cache:          dashboardCache,
		Clock:          clk,
		Logger:         logger.With(slog.String("component", "bridge")),
		ExpenseDueDays: cfg.ExpenseDueDays,
	})
	billingService := billing.NewService(b, billing.Config{
		UpcomingDueDays:    cfg.UpcomingDueDays,
		ReconcileWindow:    cfg.ReconcileWindow,
		ReconcileBatchSize: cfg.ReconcileBatchSize,
		EmergencyPause:     cfg.EmergencyPause,
		Policy:             latefee.Standard{CapPercent: capPct},
	}, logger.With(slog.String("component", "billing")))

	registry := jobs.NewRegistry(cfg.Location())
	runner, err := jobs.NewRunner(jobs.RunnerConfig{
		Billing:         billingService,
		Audit:           auditService,
		Registry:        registry,
		Guard:           jobs.NewGuard(jobs.NewLease(deps.Redis, cfg.JobLeaseTTL), deps.JobMetrics, logger),
		Metrics:         deps.JobMetrics,
		Logger:          logger,
		Timeout:         cfg.JobTimeout,
		RetentionMonths: cfg.AuditRetentionMonths,
		UpcomingDueDays: cfg.UpcomingDueDays,
	})
	if err != nil {
		return nil, err
	}

	return &Services{
		Store:         store,
		Notifications: sink,
		Audit:         auditService,
		Bridge:        b,
		Billing:       billingService,
		Dashboard:     reporting.NewService(reporting.NewPostgresRepository(deps.Pool), dashboardCache, clk, logger.With(slog.String("component", "reporting"))),
		Registry:      registry,
		Runner:        runner,
	}, nil
}
