package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/condohub/condohub/internal/ledger"
)

// EmergencyResult is the outcome of ProcessEmergencyOverdue. Total is the
// overdue backlog measured before the run started.
type EmergencyResult struct {
	Processed    int           `json:"processed"`
	Total        int           `json:"total"`
	Condominiums int           `json:"condominiums"`
	Failed       int           `json:"failed"`
	Failures     []ItemFailure `json:"failures,omitempty"`
}

// ProcessEmergencyOverdue runs the overdue sweep one condominium at a time,
// pausing between condominiums to bound database load.
func (s *Service) ProcessEmergencyOverdue(ctx context.Context) (EmergencyResult, error) {
	now := s.clock.Now()
	filter := ledger.TransactionFilter{
		Statuses:  []ledger.TransactionStatus{ledger.StatusPending},
		DueBefore: &now,
	}
	total, err := s.store.CountTransactions(ctx, filter)
	if err != nil {
		return EmergencyResult{}, fmt.Errorf("billing: count overdue: %w", err)
	}
	condos, err := s.store.ListCondominiumIDs(ctx, filter)
	if err != nil {
		return EmergencyResult{}, fmt.Errorf("billing: list condominiums: %w", err)
	}

	result := EmergencyResult{Total: total}
	for i, condo := range condos {
		if i > 0 && s.cfg.EmergencyPause > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-s.sleep(s.cfg.EmergencyPause):
			}
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		swept, err := s.CheckAndApplyLateFees(ctx, &condo)
		result.Processed += swept.Processed
		result.Failed += swept.Failed
		result.Failures = append(result.Failures, swept.Failures...)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			s.logger.Error("emergency overdue condominium",
				slog.Int64("condominium_id", condo),
				slog.Any("error", err),
			)
			result.Failed++
			result.Failures = append(result.Failures, ItemFailure{ID: condo, Error: err.Error()})
			continue
		}
		result.Condominiums++
		s.logger.Info("emergency overdue condominium processed",
			slog.Int64("condominium_id", condo),
			slog.Int("processed", swept.Processed),
		)
	}
	return result, nil
}
