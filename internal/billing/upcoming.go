package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/condohub/condohub/internal/audit"
	"github.com/condohub/condohub/internal/bridge"
	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/notify"
	"github.com/condohub/condohub/internal/platform/clock"
)

// UpcomingDue describes one reminder sent by CheckUpcomingDueDates.
type UpcomingDue struct {
	TransactionID    int64           `json:"transaction_id"`
	CondominiumID    int64           `json:"condominium_id"`
	DueDate          time.Time       `json:"due_date"`
	DaysUntilDue     int             `json:"days_until_due"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	MaintenanceTitle string          `json:"maintenance_title,omitempty"`
}

// UpcomingResult is the outcome of CheckUpcomingDueDates.
type UpcomingResult struct {
	BatchResult
	DaysAhead int           `json:"days_ahead"`
	Reminders []UpcomingDue `json:"reminders"`
}

// CheckUpcomingDueDates reminds payers of pending transactions due within
// daysAhead days. A non-positive daysAhead uses the configured default.
func (s *Service) CheckUpcomingDueDates(ctx context.Context, condominiumID *int64, daysAhead int) (UpcomingResult, error) {
	if daysAhead <= 0 {
		daysAhead = s.cfg.UpcomingDueDays
	}
	today := clock.StartOfDay(s.clock.Now())
	until := today.AddDate(0, 0, daysAhead)
	candidates, err := s.store.ListTransactions(ctx, ledger.TransactionFilter{
		CondominiumID:  condominiumID,
		Statuses:       []ledger.TransactionStatus{ledger.StatusPending},
		DueFrom:        &today,
		DueTo:          &until,
		OrderByDueDate: true,
	})
	if err != nil {
		return UpcomingResult{}, fmt.Errorf("billing: list upcoming: %w", err)
	}

	result := UpcomingResult{DaysAhead: daysAhead}
	for _, tx := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		reminder, err := s.remind(ctx, tx, today)
		if err != nil {
			s.logger.Error("upcoming due reminder", slog.Int64("transaction_id", tx.ID), slog.Any("error", err))
			result.fail(tx.ID, err)
			continue
		}
		result.Processed++
		result.Reminders = append(result.Reminders, reminder)
	}
	return result, nil
}

func (s *Service) remind(ctx context.Context, tx ledger.Transaction, today time.Time) (UpcomingDue, error) {
	reminder := UpcomingDue{
		TransactionID: tx.ID,
		CondominiumID: tx.CondominiumID,
		DueDate:       tx.DueDate,
		DaysUntilDue:  int(clock.StartOfDay(tx.DueDate).Sub(today).Hours() / 24),
		TotalAmount:   tx.TotalAmount,
	}
	if tx.MaintenanceRequestID != nil {
		req, err := s.store.GetMaintenanceRequest(ctx, *tx.MaintenanceRequestID)
		switch {
		case err == nil:
			reminder.MaintenanceTitle = req.Title
		case !errors.Is(err, ledger.ErrNotFound):
			return UpcomingDue{}, err
		}
	}

	message := fmt.Sprintf("\"%s\" of %s is due in %d day(s) on %s.",
		tx.Description, notify.FormatBRL(tx.TotalAmount), reminder.DaysUntilDue, notify.FormatDate(tx.DueDate))
	if reminder.MaintenanceTitle != "" {
		message += " Maintenance: " + reminder.MaintenanceTitle + "."
	}
	condo := tx.CondominiumID
	var effects bridge.Effects
	effects.Notify(notify.Notification{
		CondominiumID: tx.CondominiumID,
		UserID:        tx.UserID,
		Title:         "Payment due soon",
		Message:       message,
		Type:          notify.TypeUpcomingDue,
		Priority:      notify.PriorityNormal,
		Data: map[string]any{
			"transaction_id":    tx.ID,
			"days_until_due":    reminder.DaysUntilDue,
			"total_amount":      tx.TotalAmount.StringFixed(2),
			"currency":          notify.CurrencyCode,
			"maintenance_title": reminder.MaintenanceTitle,
		},
	})
	effects.Record(ledger.AuditLog{
		Action:        audit.ActionNotifyUpcomingDue,
		Resource:      "financial_transaction",
		ResourceID:    strconv.FormatInt(tx.ID, 10),
		CondominiumID: &condo,
		NewValues:     map[string]any{"days_until_due": reminder.DaysUntilDue},
		Success:       true,
	})
	s.bridge.Flush(ctx, &effects)
	return reminder, nil
}
