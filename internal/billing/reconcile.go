package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/condohub/condohub/internal/ledger"
)

// ReconcilePaymentStatus re-syncs maintenance requests whose linked
// transaction was paid within the reconcile window. At most
// ReconcileBatchSize transactions are handled per run.
func (s *Service) ReconcilePaymentStatus(ctx context.Context) (BatchResult, error) {
	since := s.clock.Now().Add(-s.cfg.ReconcileWindow)
	candidates, err := s.store.ListTransactions(ctx, ledger.TransactionFilter{
		Statuses:            []ledger.TransactionStatus{ledger.StatusPaid},
		UpdatedSince:        &since,
		LinkedToMaintenance: true,
		Limit:               s.cfg.ReconcileBatchSize,
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("billing: list paid: %w", err)
	}
	var result BatchResult
	for _, tx := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, err := s.bridge.SyncMaintenancePaymentStatus(ctx, tx.ID); err != nil {
			s.logger.Warn("payment status sync",
				slog.Int64("transaction_id", tx.ID),
				slog.Any("error", err),
			)
			result.fail(tx.ID, err)
			continue
		}
		result.Processed++
	}
	return result, nil
}
