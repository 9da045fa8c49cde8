package ledger

import (
	"context"
	"time"
)

// Store is the persistence port shared by the bridge, billing and reporting
// layers. Implementations never cache entity state across calls.
type Store interface {
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	FindTransactionByMaintenanceRequest(ctx context.Context, requestID int64) (*Transaction, error)
	CreateTransaction(ctx context.Context, tx *Transaction) error
	UpdateTransaction(ctx context.Context, tx *Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	CountTransactions(ctx context.Context, filter TransactionFilter) (int, error)
	ListCondominiumIDs(ctx context.Context, filter TransactionFilter) ([]int64, error)

	GetMaintenanceRequest(ctx context.Context, id int64) (MaintenanceRequest, error)
	UpdateMaintenanceRequest(ctx context.Context, req *MaintenanceRequest) error

	ListUnitPayments(ctx context.Context, filter UnitPaymentFilter) ([]UnitPayment, error)
	UpdateUnitPayment(ctx context.Context, payment *UnitPayment) error

	// WithTx runs fn inside a single database transaction. Nested calls on the
	// Store handed to fn reuse the outer transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// TransactionFilter narrows transaction queries. Zero values are ignored.
type TransactionFilter struct {
	CondominiumID *int64
	Statuses      []TransactionStatus
	Type          TransactionType
	// DueBefore matches due_date < value.
	DueBefore *time.Time
	// DueFrom and DueTo match due_date inside [from, to].
	DueFrom             *time.Time
	DueTo               *time.Time
	UpdatedSince        *time.Time
	LinkedToMaintenance bool
	AutoGenerated       *bool
	OrderByDueDate      bool
	Limit               int
}

// UnitPaymentFilter narrows unit payment queries.
type UnitPaymentFilter struct {
	CondominiumID *int64
	Statuses      []UnitPaymentStatus
	DueBefore     *time.Time
	Limit         int
}
