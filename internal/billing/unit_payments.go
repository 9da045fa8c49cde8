package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/condohub/condohub/internal/ledger"
)

// CheckOverdueUnitPayments applies the late-fee policy to monthly unit dues
// past their due date. Partially paid dues keep their partial status.
func (s *Service) CheckOverdueUnitPayments(ctx context.Context, condominiumID *int64) (BatchResult, error) {
	now := s.clock.Now()
	payments, err := s.store.ListUnitPayments(ctx, ledger.UnitPaymentFilter{
		CondominiumID: condominiumID,
		Statuses:      []ledger.UnitPaymentStatus{ledger.UnitPaymentPending, ledger.UnitPaymentPartial},
		DueBefore:     &now,
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("billing: list unit payments: %w", err)
	}
	var result BatchResult
	for _, p := range payments {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outstanding := p.Amount.Sub(p.PaidAmount)
		if !outstanding.IsPositive() {
			continue
		}
		p.LateFee = s.cfg.Policy.Compute(outstanding, p.DueDate, now)
		if p.Status == ledger.UnitPaymentPending {
			p.Status = ledger.UnitPaymentOverdue
		}
		if err := s.store.UpdateUnitPayment(ctx, &p); err != nil {
			s.logger.Error("unit payment late fee",
				slog.Int64("unit_payment_id", p.ID),
				slog.Any("error", err),
			)
			result.fail(p.ID, err)
			continue
		}
		result.Processed++
	}
	return result, nil
}
