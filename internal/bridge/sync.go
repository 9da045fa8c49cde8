package bridge

import (
	"context"
	"errors"
	"strconv"

	"github.com/condohub/condohub/internal/audit"
	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/notify"
)

// Sync outcomes.
const (
	SyncStatusSynced    = "synced"
	SyncStatusNotLinked = "no_maintenance_linked"
)

// SyncResult is the outcome of a payment status synchronisation.
type SyncResult struct {
	Status        string               `json:"status"`
	PaymentStatus ledger.PaymentStatus `json:"payment_status,omitempty"`
	RequestID     int64                `json:"maintenance_request_id,omitempty"`
}

// PaymentStatusFor maps a transaction status onto a maintenance payment status.
func PaymentStatusFor(status ledger.TransactionStatus) ledger.PaymentStatus {
	switch status {
	case ledger.StatusPaid:
		return ledger.PaymentPaid
	case ledger.StatusOverdue:
		return ledger.PaymentOverdue
	case ledger.StatusCancelled:
		return ledger.PaymentNotRequired
	default:
		return ledger.PaymentPending
	}
}

// SyncMaintenancePaymentStatus mirrors the status of a transaction onto its
// linked maintenance request.
func (b *Bridge) SyncMaintenancePaymentStatus(ctx context.Context, transactionID int64) (SyncResult, error) {
	var (
		result  SyncResult
		effects Effects
	)
	err := b.store.WithTx(ctx, func(ctx context.Context, store ledger.Store) error {
		tx, err := store.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		result, err = b.SyncTx(ctx, store, tx, &effects)
		return err
	})
	if err != nil {
		b.failed(ctx, audit.ActionSyncPaymentStatus, "financial_transaction", transactionID, 0, err)
		return SyncResult{}, err
	}
	b.Flush(ctx, &effects)
	return result, nil
}

// SyncTx performs the synchronisation inside the caller's transaction using the
// already loaded tx. Side effects are appended to effects for the caller to
// flush after commit.
func (b *Bridge) SyncTx(ctx context.Context, store ledger.Store, tx ledger.Transaction, effects *Effects) (SyncResult, error) {
	if tx.MaintenanceRequestID == nil {
		return SyncResult{Status: SyncStatusNotLinked}, nil
	}
	req, err := store.GetMaintenanceRequest(ctx, *tx.MaintenanceRequestID)
	if errors.Is(err, ledger.ErrNotFound) {
		return SyncResult{Status: SyncStatusNotLinked}, nil
	}
	if err != nil {
		return SyncResult{}, err
	}

	previous := req.PaymentStatus
	next := PaymentStatusFor(tx.Status)
	req.PaymentStatus = next
	switch tx.Status {
	case ledger.StatusPaid:
		actual := tx.TotalAmount
		req.ActualCost = &actual
	case ledger.StatusCancelled:
		req.FinancialTransactionID = nil
	}
	if err := store.UpdateMaintenanceRequest(ctx, &req); err != nil {
		return SyncResult{}, err
	}

	condo := req.CondominiumID
	effects.Touch(condo)
	effects.Record(ledger.AuditLog{
		Action:        audit.ActionSyncPaymentStatus,
		Resource:      "maintenance_request",
		ResourceID:    strconv.FormatInt(req.ID, 10),
		CondominiumID: &condo,
		OldValues:     map[string]any{"payment_status": string(previous)},
		NewValues: map[string]any{
			"payment_status": string(next),
			"transaction_id": tx.ID,
		},
		Success: true,
	})
	if next == ledger.PaymentPaid && previous != ledger.PaymentPaid {
		requester := req.UserID
		effects.Notify(notify.Notification{
			CondominiumID: req.CondominiumID,
			UserID:        &requester,
			Title:         "Maintenance payment confirmed",
			Message:       "Payment of " + notify.FormatBRL(tx.TotalAmount) + " for \"" + req.Title + "\" was confirmed.",
			Type:          notify.TypePaymentConfirmed,
			Priority:      notify.PriorityNormal,
			Data: map[string]any{
				"transaction_id":         tx.ID,
				"maintenance_request_id": req.ID,
				"amount":                 tx.TotalAmount.StringFixed(2),
				"currency":               notify.CurrencyCode,
			},
		})
	}
	return SyncResult{Status: SyncStatusSynced, PaymentStatus: next, RequestID: req.ID}, nil
}
