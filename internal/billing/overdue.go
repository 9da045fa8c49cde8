package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/condohub/condohub/internal/audit"
	"github.com/condohub/condohub/internal/bridge"
	"github.com/condohub/condohub/internal/latefee"
	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/notify"
)

// errSkipped marks an item that no longer qualifies once locked.
var errSkipped = errors.New("billing: item no longer eligible")

// OverdueResult is the outcome of an overdue sweep.
type OverdueResult struct {
	BatchResult
	Transactions []ledger.Transaction `json:"transactions"`
}

// CheckAndApplyLateFees marks pending transactions past their due date as
// overdue, applies the late fee and propagates the change to linked
// maintenance requests. A nil condominiumID sweeps every condominium.
func (s *Service) CheckAndApplyLateFees(ctx context.Context, condominiumID *int64) (OverdueResult, error) {
	now := s.clock.Now()
	candidates, err := s.store.ListTransactions(ctx, ledger.TransactionFilter{
		CondominiumID: condominiumID,
		Statuses:      []ledger.TransactionStatus{ledger.StatusPending},
		DueBefore:     &now,
	})
	if err != nil {
		return OverdueResult{}, fmt.Errorf("billing: list overdue: %w", err)
	}

	var result OverdueResult
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		tx, err := s.applyLateFee(ctx, candidate.ID)
		switch {
		case errors.Is(err, errSkipped):
			continue
		case err != nil:
			s.logger.Error("apply late fee",
				slog.Int64("transaction_id", candidate.ID),
				slog.Int64("condominium_id", candidate.CondominiumID),
				slog.Any("error", err),
			)
			result.fail(candidate.ID, err)
			continue
		}
		result.Processed++
		result.Transactions = append(result.Transactions, tx)
	}
	return result, nil
}

func (s *Service) applyLateFee(ctx context.Context, id int64) (ledger.Transaction, error) {
	var (
		updated ledger.Transaction
		effects bridge.Effects
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, store ledger.Store) error {
		tx, err := store.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if tx.Status != ledger.StatusPending || !tx.DueDate.Before(now) {
			return errSkipped
		}
		previousFee := tx.LateFee
		tx.LateFee = s.cfg.Policy.Compute(tx.Amount, tx.DueDate, now)
		tx.Status = ledger.StatusOverdue
		if err := store.UpdateTransaction(ctx, &tx); err != nil {
			return err
		}
		if _, err := s.bridge.SyncTx(ctx, store, tx, &effects); err != nil {
			return err
		}
		condo := tx.CondominiumID
		effects.Touch(condo)
		effects.Record(ledger.AuditLog{
			Action:        audit.ActionApplyLateFee,
			Resource:      "financial_transaction",
			ResourceID:    strconv.FormatInt(tx.ID, 10),
			CondominiumID: &condo,
			OldValues:     map[string]any{"status": string(ledger.StatusPending), "late_fee": previousFee.StringFixed(2)},
			NewValues: map[string]any{
				"status":       string(tx.Status),
				"late_fee":     tx.LateFee.StringFixed(2),
				"total_amount": tx.TotalAmount.StringFixed(2),
			},
			Success: true,
		})
		effects.Notify(overdueNotification(tx, latefee.DaysLate(tx.DueDate, now)))
		updated = tx
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.bridge.Flush(ctx, &effects)
	return updated, nil
}

func overdueNotification(tx ledger.Transaction, daysLate int) notify.Notification {
	return notify.Notification{
		CondominiumID: tx.CondominiumID,
		UserID:        tx.UserID,
		Title:         "Payment overdue",
		Message: fmt.Sprintf("\"%s\" is %d day(s) overdue. A late fee of %s was applied; amount due is now %s.",
			tx.Description, daysLate, notify.FormatBRL(tx.LateFee), notify.FormatBRL(tx.TotalAmount)),
		Type:     notify.TypeOverdue,
		Priority: notify.PriorityHigh,
		Data: map[string]any{
			"transaction_id": tx.ID,
			"days_late":      daysLate,
			"late_fee":       tx.LateFee.StringFixed(2),
			"total_amount":   tx.TotalAmount.StringFixed(2),
			"currency":       notify.CurrencyCode,
		},
	}
}
