package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates the direction of a financial transaction.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// TransactionStatus enumerates financial transaction statuses.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusPaid      TransactionStatus = "paid"
	StatusOverdue   TransactionStatus = "overdue"
	StatusCancelled TransactionStatus = "cancelled"
)

// Category classifies a transaction.
type Category string

const (
	CategoryCondominiumFee Category = "condominium_fee"
	CategoryMaintenance    Category = "maintenance"
	CategoryUtilities      Category = "utilities"
	CategoryCleaning       Category = "cleaning"
	CategorySecurity       Category = "security"
	CategoryInsurance      Category = "insurance"
	CategoryReserveFund    Category = "reserve_fund"
	CategoryFine           Category = "fine"
	CategoryOther          Category = "other"
)

// PaymentMethod enumerates accepted settlement methods.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodPix          PaymentMethod = "pix"
	MethodPixA         PaymentMethod = "pix_a"
	MethodPixB         PaymentMethod = "pix_b"
	MethodPixC         PaymentMethod = "pix_c"
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodDebitCard    PaymentMethod = "debit_card"
	MethodBankSlip     PaymentMethod = "bank_slip"
	MethodMixed        PaymentMethod = "mixed"
)

// RecurrenceType describes how often a transaction repeats.
type RecurrenceType string

const (
	RecurrenceOneTime   RecurrenceType = "one_time"
	RecurrenceMonthly   RecurrenceType = "monthly"
	RecurrenceQuarterly RecurrenceType = "quarterly"
	RecurrenceYearly    RecurrenceType = "yearly"
)

// Transaction is a single receivable or payable of a condominium.
type Transaction struct {
	ID                   int64             `json:"id"`
	CondominiumID        int64             `json:"condominium_id" validate:"gt=0"`
	UnitID               *int64            `json:"unit_id,omitempty" validate:"omitempty,gt=0"`
	UserID               *int64            `json:"user_id,omitempty" validate:"omitempty,gt=0"`
	Type                 TransactionType   `json:"type" validate:"oneof=income expense"`
	Category             Category          `json:"category" validate:"required"`
	Description          string            `json:"description"`
	Amount               decimal.Decimal   `json:"amount" validate:"gte=0.01"`
	DueDate              time.Time         `json:"due_date" validate:"required"`
	PaidDate             *time.Time        `json:"paid_date,omitempty"`
	Status               TransactionStatus `json:"status" validate:"oneof=pending paid overdue cancelled"`
	PaymentMethod        *PaymentMethod    `json:"payment_method,omitempty" validate:"omitempty,oneof=cash bank_transfer pix pix_a pix_b pix_c credit_card debit_card bank_slip mixed"`
	LateFee              decimal.Decimal   `json:"late_fee" validate:"gte=0"`
	Discount             decimal.Decimal   `json:"discount" validate:"gte=0"`
	TotalAmount          decimal.Decimal   `json:"total_amount"`
	MaintenanceRequestID *int64            `json:"maintenance_request_id,omitempty"`
	AutoGenerated        bool              `json:"auto_generated"`
	IsRecurring          bool              `json:"is_recurring"`
	RecurrenceType       RecurrenceType    `json:"recurrence_type"`
	ApprovedBy           *int64            `json:"approved_by,omitempty"`
	ApprovedAt           *time.Time        `json:"approved_at,omitempty"`
	CashConfirmed        bool              `json:"cash_confirmed"`
	CashConfirmedBy      *int64            `json:"cash_confirmed_by,omitempty"`
	CashConfirmedAt      *time.Time        `json:"cash_confirmed_at,omitempty"`
	MixedPayment         bool              `json:"mixed_payment"`
	PixAmount            decimal.Decimal   `json:"pix_amount"`
	CashAmount           decimal.Decimal   `json:"cash_amount"`
	PrivateExpense       bool              `json:"private_expense"`
	BalanceBefore        *decimal.Decimal  `json:"balance_before,omitempty"`
	BalanceAfter         *decimal.Decimal  `json:"balance_after,omitempty"`
	CreatedBy            *int64            `json:"created_by,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// RecomputeTotal derives TotalAmount from amount, late fee and discount.
func (t *Transaction) RecomputeTotal() {
	t.TotalAmount = t.Amount.Add(t.LateFee).Sub(t.Discount)
}

// ValidateMixedPayment checks that the PIX and cash parts of a mixed payment
// add up to the total. It is a no-op for non mixed payments.
func (t *Transaction) ValidateMixedPayment() error {
	if !t.MixedPayment {
		return nil
	}
	if !t.PixAmount.Add(t.CashAmount).Equal(t.TotalAmount) {
		return &ValidationError{
			Field:  "pix_amount",
			Reason: "pix_amount + cash_amount must equal total_amount " + t.TotalAmount.StringFixed(2),
		}
	}
	return nil
}

// MaintenanceStatus enumerates maintenance request statuses.
type MaintenanceStatus string

const (
	MaintenancePending    MaintenanceStatus = "pending"
	MaintenanceApproved   MaintenanceStatus = "approved"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceCancelled  MaintenanceStatus = "cancelled"
	MaintenanceRejected   MaintenanceStatus = "rejected"
)

// Priority expresses how urgent a maintenance request is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// PaymentStatus mirrors the financial state of a maintenance request.
type PaymentStatus string

const (
	PaymentNotRequired PaymentStatus = "not_required"
	PaymentPending     PaymentStatus = "pending"
	PaymentPartial     PaymentStatus = "partial"
	PaymentPaid        PaymentStatus = "paid"
	PaymentOverdue     PaymentStatus = "overdue"
)

// MaintenanceRequest is a resident initiated repair or service ticket.
type MaintenanceRequest struct {
	ID                     int64             `json:"id"`
	CondominiumID          int64             `json:"condominium_id"`
	UnitID                 *int64            `json:"unit_id,omitempty"`
	UserID                 int64             `json:"user_id"`
	Title                  string            `json:"title"`
	Description            string            `json:"description"`
	Category               string            `json:"category"`
	Priority               Priority          `json:"priority"`
	Status                 MaintenanceStatus `json:"status"`
	EstimatedCost          *decimal.Decimal  `json:"estimated_cost,omitempty" validate:"omitempty,gte=0"`
	ActualCost             *decimal.Decimal  `json:"actual_cost,omitempty" validate:"omitempty,gte=0"`
	FinancialTransactionID *int64            `json:"financial_transaction_id,omitempty"`
	PaymentStatus          PaymentStatus     `json:"payment_status"`
	ScheduledDate          *time.Time        `json:"scheduled_date,omitempty"`
	CompletedDate          *time.Time        `json:"completed_date,omitempty"`
	ResidentRating         *int              `json:"resident_rating,omitempty" validate:"omitempty,min=1,max=5"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// EstimatedCostOrZero returns the estimated cost, treating a missing value as zero.
func (m *MaintenanceRequest) EstimatedCostOrZero() decimal.Decimal {
	if m.EstimatedCost == nil {
		return decimal.Zero
	}
	return *m.EstimatedCost
}

// UnitPaymentStatus enumerates unit dues statuses.
type UnitPaymentStatus string

const (
	UnitPaymentPending   UnitPaymentStatus = "pending"
	UnitPaymentPaid      UnitPaymentStatus = "paid"
	UnitPaymentPartial   UnitPaymentStatus = "partial"
	UnitPaymentOverdue   UnitPaymentStatus = "overdue"
	UnitPaymentCancelled UnitPaymentStatus = "cancelled"
)

// UnitPayment is the monthly dues record of a single unit.
type UnitPayment struct {
	ID             int64             `json:"id"`
	CondominiumID  int64             `json:"condominium_id"`
	UnitID         int64             `json:"unit_id"`
	ReferenceMonth int               `json:"reference_month"`
	ReferenceYear  int               `json:"reference_year"`
	Amount         decimal.Decimal   `json:"amount"`
	LateFee        decimal.Decimal   `json:"late_fee"`
	Discount       decimal.Decimal   `json:"discount"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	PaidAmount     decimal.Decimal   `json:"paid_amount"`
	DueDate        time.Time         `json:"due_date"`
	PaidDate       *time.Time        `json:"paid_date,omitempty"`
	Status         UnitPaymentStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// RecomputeTotal derives TotalAmount from amount, late fee and discount.
func (p *UnitPayment) RecomputeTotal() {
	p.TotalAmount = p.Amount.Add(p.LateFee).Sub(p.Discount)
}

// AuditLog is an immutable record of an action against a resource.
type AuditLog struct {
	ID            int64          `json:"id"`
	Action        string         `json:"action"`
	Resource      string         `json:"resource"`
	ResourceID    string         `json:"resource_id"`
	UserID        *int64         `json:"user_id,omitempty"`
	CondominiumID *int64         `json:"condominium_id,omitempty"`
	OldValues     map[string]any `json:"old_values,omitempty"`
	NewValues     map[string]any `json:"new_values,omitempty"`
	Success       bool           `json:"success"`
	ErrorMessage  string         `json:"error_message"`
	CreatedAt     time.Time      `json:"created_at"`
}
