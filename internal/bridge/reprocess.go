package bridge

import (
	"context"
	"errors"
	"strconv"

	"github.com/condohub/condohub/internal/audit"
	"github.com/condohub/condohub/internal/ledger"
)

// Action selects what Reprocess does.
type Action string

const (
	ActionSync     Action = "sync"
	ActionRecreate Action = "recreate"
	ActionUnlink   Action = "unlink"
)

// ParseAction validates a reprocess action name.
func ParseAction(raw string) (Action, error) {
	switch a := Action(raw); a {
	case ActionSync, ActionRecreate, ActionUnlink:
		return a, nil
	default:
		return "", &ledger.ValidationError{Field: "action", Reason: "must be one of [sync recreate unlink]"}
	}
}

// ReprocessResult is the outcome of Reprocess.
type ReprocessResult struct {
	Action        Action               `json:"action"`
	Status        string               `json:"status"`
	PaymentStatus ledger.PaymentStatus `json:"payment_status,omitempty"`
	Transaction   *ledger.Transaction  `json:"transaction,omitempty"`
}

// Reprocess statuses besides the sync outcomes.
const (
	ReprocessNoTransaction = "no_linked_transaction"
	ReprocessRecreated     = "recreated"
	ReprocessRemoved       = "removed"
	ReprocessUnlinked      = "unlinked"
)

// Reprocess repairs the link between a maintenance request and its transaction.
func (b *Bridge) Reprocess(ctx context.Context, requestID int64, action Action, actingUserID int64) (ReprocessResult, error) {
	if _, err := ParseAction(string(action)); err != nil {
		return ReprocessResult{}, err
	}
	var (
		result  ReprocessResult
		effects Effects
	)
	err := b.store.WithTx(ctx, func(ctx context.Context, store ledger.Store) error {
		req, err := store.GetMaintenanceRequest(ctx, requestID)
		if err != nil {
			return err
		}
		switch action {
		case ActionSync:
			result, err = b.reprocessSync(ctx, store, req, &effects)
		case ActionRecreate:
			result, err = b.reprocessRecreate(ctx, store, req, actingUserID, &effects)
		case ActionUnlink:
			result, err = b.reprocessUnlink(ctx, store, req, actingUserID, &effects)
		}
		return err
	})
	if err != nil {
		b.failed(ctx, "reprocess_"+string(action), "maintenance_request", requestID, actingUserID, err)
		return ReprocessResult{}, err
	}
	b.Flush(ctx, &effects)
	result.Action = action
	return result, nil
}

func (b *Bridge) reprocessSync(ctx context.Context, store ledger.Store, req ledger.MaintenanceRequest, effects *Effects) (ReprocessResult, error) {
	if req.FinancialTransactionID == nil {
		return ReprocessResult{Status: ReprocessNoTransaction}, nil
	}
	tx, err := store.GetTransaction(ctx, *req.FinancialTransactionID)
	if err != nil {
		return ReprocessResult{}, err
	}
	synced, err := b.SyncTx(ctx, store, tx, effects)
	if err != nil {
		return ReprocessResult{}, err
	}
	condo := req.CondominiumID
	effects.Record(ledger.AuditLog{
		Action:        audit.ActionReprocessSync,
		Resource:      "maintenance_request",
		ResourceID:    strconv.FormatInt(req.ID, 10),
		CondominiumID: &condo,
		NewValues:     map[string]any{"status": synced.Status, "payment_status": string(synced.PaymentStatus)},
		Success:       true,
	})
	return ReprocessResult{Status: synced.Status, PaymentStatus: synced.PaymentStatus, Transaction: &tx}, nil
}

func (b *Bridge) reprocessRecreate(ctx context.Context, store ledger.Store, req ledger.MaintenanceRequest, actingUserID int64, effects *Effects) (ReprocessResult, error) {
	removed, err := b.removeLinkedTransactions(ctx, store, req)
	if err != nil {
		return ReprocessResult{}, err
	}
	req.FinancialTransactionID = nil
	req.PaymentStatus = ledger.PaymentNotRequired

	condo := req.CondominiumID
	effects.Touch(condo)
	effects.Record(ledger.AuditLog{
		Action:        audit.ActionReprocessRecreate,
		Resource:      "maintenance_request",
		ResourceID:    strconv.FormatInt(req.ID, 10),
		UserID:        actorPtr(actingUserID),
		CondominiumID: &condo,
		OldValues:     map[string]any{"removed_transaction_ids": removed},
		Success:       true,
	})

	if !req.EstimatedCostOrZero().IsPositive() {
		if err := store.UpdateMaintenanceRequest(ctx, &req); err != nil {
			return ReprocessResult{}, err
		}
		return ReprocessResult{Status: ReprocessRemoved, PaymentStatus: req.PaymentStatus}, nil
	}
	tx, err := b.createExpense(ctx, store, &req, actingUserID, effects)
	if err != nil {
		return ReprocessResult{}, err
	}
	return ReprocessResult{Status: ReprocessRecreated, PaymentStatus: req.PaymentStatus, Transaction: &tx}, nil
}

// removeLinkedTransactions deletes the transaction the request points to and
// any transaction still carrying the request id from an earlier unlink.
func (b *Bridge) removeLinkedTransactions(ctx context.Context, store ledger.Store, req ledger.MaintenanceRequest) ([]int64, error) {
	var removed []int64
	if req.FinancialTransactionID != nil {
		if err := store.DeleteTransaction(ctx, *req.FinancialTransactionID); err != nil && !isNotFound(err) {
			return nil, err
		} else if err == nil {
			removed = append(removed, *req.FinancialTransactionID)
		}
	}
	orphan, err := store.FindTransactionByMaintenanceRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if orphan != nil {
		if err := store.DeleteTransaction(ctx, orphan.ID); err != nil {
			return nil, err
		}
		removed = append(removed, orphan.ID)
	}
	return removed, nil
}

// reprocessUnlink clears the request side of the link only. The transaction
// keeps its maintenance_request_id as provenance.
func (b *Bridge) reprocessUnlink(ctx context.Context, store ledger.Store, req ledger.MaintenanceRequest, actingUserID int64, effects *Effects) (ReprocessResult, error) {
	previous := req.FinancialTransactionID
	req.FinancialTransactionID = nil
	req.PaymentStatus = ledger.PaymentNotRequired
	if err := store.UpdateMaintenanceRequest(ctx, &req); err != nil {
		return ReprocessResult{}, err
	}
	condo := req.CondominiumID
	old := map[string]any{}
	if previous != nil {
		old["financial_transaction_id"] = *previous
	}
	effects.Touch(condo)
	effects.Record(ledger.AuditLog{
		Action:        audit.ActionReprocessUnlink,
		Resource:      "maintenance_request",
		ResourceID:    strconv.FormatInt(req.ID, 10),
		UserID:        actorPtr(actingUserID),
		CondominiumID: &condo,
		OldValues:     old,
		NewValues:     map[string]any{"payment_status": string(req.PaymentStatus)},
		Success:       true,
	})
	return ReprocessResult{Status: ReprocessUnlinked, PaymentStatus: req.PaymentStatus}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ledger.ErrNotFound)
}
