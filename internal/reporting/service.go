package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/platform/clock"
)

const (
	upcomingDueWindow  = 7 * 24 * time.Hour
	upcomingDueLimit   = 10
	pendingApprovalCap = 5
	dateKeyLayout      = "2006-01-02"
)

// Service assembles the unified dashboard.
type Service struct {
	repo   Repository
	cache  *Cache
	clock  clock.Clock
	logger *slog.Logger
	group  singleflight.Group
}

// NewService wires the dashboard service. cache may be nil.
func NewService(repo Repository, cache *Cache, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, clock: clk, logger: logger}
}

// GetUnifiedDashboardMetrics returns finance and maintenance metrics for a
// condominium, served from cache when the condominium has not changed.
func (s *Service) GetUnifiedDashboardMetrics(ctx context.Context, condominiumID int64, r DateRange) (DashboardMetrics, error) {
	if condominiumID <= 0 {
		return DashboardMetrics{}, &ledger.ValidationError{Field: "condominium_id", Reason: "must be positive"}
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return DashboardMetrics{}, &ledger.ValidationError{Field: "end_date", Reason: "must not precede start_date"}
	}

	key, err := s.cache.BuildKey(ctx, condominiumID, rangeKey(r.Start), rangeKey(r.End))
	if err != nil {
		s.logger.Warn("dashboard cache key failed", slog.Int64("condominium_id", condominiumID), slog.Any("error", err))
		return s.build(ctx, condominiumID, r)
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		var out DashboardMetrics
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			return s.build(ctx, condominiumID, r)
		})
		return out, err
	})
	if err != nil {
		return DashboardMetrics{}, err
	}
	return v.(DashboardMetrics), nil
}

// Invalidate drops every cached dashboard of a condominium.
func (s *Service) Invalidate(ctx context.Context, condominiumID int64) error {
	return s.cache.Invalidate(ctx, condominiumID)
}

func (s *Service) build(ctx context.Context, condominiumID int64, r DateRange) (DashboardMetrics, error) {
	now := s.clock.Now()
	from := clock.StartOfDay(now)
	to := from.Add(upcomingDueWindow)

	var (
		txRows      []TransactionAggregateRow
		mntRows     []MaintenanceAggregateRow
		autoRows    []AutoExpenseRow
		upcoming    []UpcomingDueRow
		pendingAppr []PendingApprovalRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txRows, err = s.repo.TransactionAggregates(gctx, condominiumID, r)
		return err
	})
	g.Go(func() error {
		var err error
		mntRows, err = s.repo.MaintenanceAggregates(gctx, condominiumID, r)
		return err
	})
	g.Go(func() error {
		var err error
		autoRows, err = s.repo.AutoExpenseAggregates(gctx, condominiumID, r)
		return err
	})
	g.Go(func() error {
		var err error
		upcoming, err = s.repo.UpcomingDues(gctx, condominiumID, from, to, upcomingDueLimit)
		return err
	})
	g.Go(func() error {
		var err error
		pendingAppr, err = s.repo.PendingFinancialApproval(gctx, condominiumID, pendingApprovalCap)
		return err
	})
	if err := g.Wait(); err != nil {
		return DashboardMetrics{}, fmt.Errorf("reporting: dashboard %d: %w", condominiumID, err)
	}

	if upcoming == nil {
		upcoming = []UpcomingDueRow{}
	}
	if pendingAppr == nil {
		pendingAppr = []PendingApprovalRow{}
	}
	return DashboardMetrics{
		CondominiumID:            condominiumID,
		Financial:                ReduceTransactions(txRows),
		Maintenance:              ReduceMaintenance(mntRows),
		AutoExpenses:             ReduceAutoExpenses(autoRows),
		UpcomingDueDates:         upcoming,
		PendingFinancialApproval: pendingAppr,
	}, nil
}

func rangeKey(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format(dateKeyLayout)
}
