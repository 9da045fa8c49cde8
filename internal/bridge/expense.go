package bridge

import (
	"context"
	"errors"
	"strconv"

	"github.com/condohub/condohub/internal/audit"
	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/notify"
	"github.com/condohub/condohub/internal/platform/clock"
)

// CreateMaintenanceExpense creates the pending expense transaction of a
// maintenance request and links both records.
func (b *Bridge) CreateMaintenanceExpense(ctx context.Context, requestID, actingUserID int64) (ledger.Transaction, error) {
	var (
		created ledger.Transaction
		effects Effects
	)
	err := b.store.WithTx(ctx, func(ctx context.Context, store ledger.Store) error {
		req, err := store.GetMaintenanceRequest(ctx, requestID)
		if err != nil {
			return err
		}
		created, err = b.createExpense(ctx, store, &req, actingUserID, &effects)
		return err
	})
	if err != nil {
		b.failed(ctx, audit.ActionAutoCreateExpense, "maintenance_request", requestID, actingUserID, err)
		return ledger.Transaction{}, err
	}
	b.Flush(ctx, &effects)
	return created, nil
}

// createExpense runs inside the caller's transaction. req is updated in place.
func (b *Bridge) createExpense(ctx context.Context, store ledger.Store, req *ledger.MaintenanceRequest, actingUserID int64, effects *Effects) (ledger.Transaction, error) {
	existing, err := store.FindTransactionByMaintenanceRequest(ctx, req.ID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if existing != nil {
		return ledger.Transaction{}, &ledger.DuplicateLinkError{MaintenanceRequestID: req.ID, TransactionID: existing.ID}
	}
	amount := req.EstimatedCostOrZero()
	if amount.IsNegative() {
		return ledger.Transaction{}, &ledger.ValidationError{Field: "estimated_cost", Reason: "must not be negative"}
	}

	now := b.clock.Now()
	requestID := req.ID
	requester := req.UserID
	tx := ledger.Transaction{
		CondominiumID:        req.CondominiumID,
		UnitID:               req.UnitID,
		UserID:               &requester,
		Type:                 ledger.TypeExpense,
		Category:             ledger.CategoryMaintenance,
		Description:          "Maintenance: " + req.Title,
		Amount:               amount,
		DueDate:              clock.StartOfDay(now).AddDate(0, 0, b.dueDays),
		Status:               ledger.StatusPending,
		MaintenanceRequestID: &requestID,
		AutoGenerated:        true,
		RecurrenceType:       ledger.RecurrenceOneTime,
	}
	if actingUserID > 0 {
		actor := actingUserID
		tx.ApprovedBy = &actor
		tx.ApprovedAt = &now
		tx.CreatedBy = &actor
	}
	if err := store.CreateTransaction(ctx, &tx); err != nil {
		return ledger.Transaction{}, err
	}

	req.FinancialTransactionID = &tx.ID
	req.PaymentStatus = ledger.PaymentPending
	if err := store.UpdateMaintenanceRequest(ctx, req); err != nil {
		return ledger.Transaction{}, err
	}

	condo := req.CondominiumID
	effects.Touch(condo)
	effects.Record(ledger.AuditLog{
		Action:        audit.ActionAutoCreateExpense,
		Resource:      "financial_transaction",
		ResourceID:    strconv.FormatInt(tx.ID, 10),
		UserID:        actorPtr(actingUserID),
		CondominiumID: &condo,
		NewValues: map[string]any{
			"maintenance_request_id": req.ID,
			"amount":                 tx.Amount.StringFixed(2),
			"due_date":               tx.DueDate.Format("2006-01-02"),
			"status":                 string(tx.Status),
		},
		Success: true,
	})
	effects.Notify(notify.Notification{
		CondominiumID: req.CondominiumID,
		UserID:        &requester,
		Title:         "Maintenance expense created",
		Message: "An expense of " + notify.FormatBRL(tx.TotalAmount) + " was created for \"" + req.Title +
			"\", due on " + notify.FormatDate(tx.DueDate) + ".",
		Type:     notify.TypeMaintenanceExpense,
		Priority: notify.PriorityNormal,
		Data: map[string]any{
			"transaction_id":         tx.ID,
			"maintenance_request_id": req.ID,
			"amount":                 tx.TotalAmount.StringFixed(2),
			"currency":               notify.CurrencyCode,
			"due_date":               tx.DueDate.Format("2006-01-02"),
		},
	})
	return tx, nil
}

// ApproveResult is the outcome of ApproveMaintenanceRequest.
type ApproveResult struct {
	Request     ledger.MaintenanceRequest `json:"request"`
	Transaction *ledger.Transaction       `json:"transaction,omitempty"`
}

// ApproveMaintenanceRequest moves a pending request to approved and, when it
// carries a positive estimated cost, creates its expense in the same unit of work.
func (b *Bridge) ApproveMaintenanceRequest(ctx context.Context, requestID, actingUserID int64) (ApproveResult, error) {
	var (
		result  ApproveResult
		effects Effects
	)
	err := b.store.WithTx(ctx, func(ctx context.Context, store ledger.Store) error {
		req, err := store.GetMaintenanceRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != ledger.MaintenancePending {
			return &ledger.ValidationError{Field: "status", Reason: "only pending requests can be approved, got " + string(req.Status)}
		}
		previous := req.Status
		req.Status = ledger.MaintenanceApproved
		if !req.EstimatedCostOrZero().IsPositive() {
			req.PaymentStatus = ledger.PaymentNotRequired
		}
		if err := store.UpdateMaintenanceRequest(ctx, &req); err != nil {
			return err
		}
		if req.EstimatedCostOrZero().IsPositive() {
			tx, err := b.createExpense(ctx, store, &req, actingUserID, &effects)
			if err != nil {
				return err
			}
			result.Transaction = &tx
		}
		condo := req.CondominiumID
		effects.Touch(condo)
		effects.Record(ledger.AuditLog{
			Action:        audit.ActionApproveRequest,
			Resource:      "maintenance_request",
			ResourceID:    strconv.FormatInt(req.ID, 10),
			UserID:        actorPtr(actingUserID),
			CondominiumID: &condo,
			OldValues:     map[string]any{"status": string(previous)},
			NewValues:     map[string]any{"status": string(req.Status)},
			Success:       true,
		})
		result.Request = req
		return nil
	})
	if err != nil {
		b.failed(ctx, audit.ActionApproveRequest, "maintenance_request", requestID, actingUserID, err)
		return ApproveResult{}, err
	}
	b.Flush(ctx, &effects)
	return result, nil
}

// failed records a failed mutation unless the target did not exist.
func (b *Bridge) failed(ctx context.Context, action, resource string, id, actingUserID int64, err error) {
	if errors.Is(err, ledger.ErrNotFound) {
		return
	}
	b.recordFailure(ctx, ledger.AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: strconv.FormatInt(id, 10),
		UserID:     actorPtr(actingUserID),
	}, err)
}

func actorPtr(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}
