package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/condohub/condohub/internal/ledger"
)

// DateRange optionally bounds dashboard queries. Zero values are open ends.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// TransactionAggregateRow is one (status, type, auto_generated) group.
type TransactionAggregateRow struct {
	Status        ledger.TransactionStatus
	Type          ledger.TransactionType
	AutoGenerated bool
	Count         int
	Amount        decimal.Decimal
	LateFee       decimal.Decimal
	Total         decimal.Decimal
}

// MaintenanceAggregateRow is one (status, payment_status) group.
type MaintenanceAggregateRow struct {
	Status        ledger.MaintenanceStatus
	PaymentStatus ledger.PaymentStatus
	Count         int
	EstimatedCost decimal.Decimal
	ActualCost    decimal.Decimal
}

// AutoExpenseRow groups auto-generated maintenance expenses by status.
type AutoExpenseRow struct {
	Status ledger.TransactionStatus
	Count  int
	Total  decimal.Decimal
}

// UpcomingDueRow is a pending transaction due soon.
type UpcomingDueRow struct {
	TransactionID int64           `json:"transaction_id"`
	Description   string          `json:"description"`
	Type          string          `json:"type"`
	DueDate       time.Time       `json:"due_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// PendingApprovalRow is an approved maintenance request still lacking a
// financial transaction.
type PendingApprovalRow struct {
	RequestID     int64           `json:"maintenance_request_id"`
	Title         string          `json:"title"`
	Priority      string          `json:"priority"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	CreatedAt     time.Time       `json:"created_at"`
}
