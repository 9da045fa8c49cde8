package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/platform/clock"
)

// Repository persists audit logs.
type Repository interface {
	Insert(ctx context.Context, entry ledger.AuditLog) error
	List(ctx context.Context, params ListParams) ([]ledger.AuditLog, error)
	DeleteBefore(ctx context.Context, cutoff time.Time, actions []string) (int64, error)
}

// Service records and prunes audit logs.
type Service struct {
	repo   Repository
	clock  clock.Clock
	logger *slog.Logger
}

// NewService builds an audit service.
func NewService(repo Repository, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, clock: clk, logger: logger}
}

// Record appends an entry. Entries are never updated.
func (s *Service) Record(ctx context.Context, entry ledger.AuditLog) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if entry.Action == "" || entry.Resource == "" {
		return errors.New("audit: entry requires action and resource")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// Cleanup deletes automated entries older than the given number of months and
// returns how many rows were removed.
func (s *Service) Cleanup(ctx context.Context, olderThanMonths int) (int64, error) {
	if s == nil || s.repo == nil {
		return 0, errors.New("audit: repository not configured")
	}
	if olderThanMonths <= 0 {
		return 0, &ledger.ValidationError{Field: "older_than_months", Reason: "must be positive"}
	}
	cutoff := s.clock.Now().AddDate(0, -olderThanMonths, 0)
	removed, err := s.repo.DeleteBefore(ctx, cutoff, AutomatedActions)
	if err != nil {
		return 0, fmt.Errorf("audit: cleanup: %w", err)
	}
	s.logger.Info("audit retention cleanup",
		slog.Time("cutoff", cutoff),
		slog.Int64("removed", removed),
	)
	return removed, nil
}

// Timeline returns one page of audit entries, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s == nil || s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.List(ctx, ListParams{
		CondominiumID: filters.CondominiumID,
		From:          filters.From,
		To:            filters.To,
		Action:        strings.TrimSpace(filters.Action),
		Resource:      strings.TrimSpace(filters.Resource),
		Offset:        (page - 1) * pageSize,
		Limit:         pageSize + 1,
	})
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every entry matching filters without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]ledger.AuditLog, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	return s.repo.List(ctx, ListParams{
		CondominiumID: filters.CondominiumID,
		From:          filters.From,
		To:            filters.To,
		Action:        strings.TrimSpace(filters.Action),
		Resource:      strings.TrimSpace(filters.Resource),
	})
}
