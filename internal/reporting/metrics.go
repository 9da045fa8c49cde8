package reporting

import (
	"github.com/shopspring/decimal"

	"github.com/condohub/condohub/internal/ledger"
)

// FinancialSummary reduces transaction aggregates.
type FinancialSummary struct {
	Income             decimal.Decimal `json:"income"`
	Expenses           decimal.Decimal `json:"expenses"`
	Balance            decimal.Decimal `json:"balance"`
	Pending            decimal.Decimal `json:"pending"`
	Overdue            decimal.Decimal `json:"overdue"`
	LateFees           decimal.Decimal `json:"late_fees"`
	TransactionCount   int             `json:"transaction_count"`
	AutoGeneratedCount int             `json:"auto_generated_count"`
}

// MaintenanceSummary reduces maintenance aggregates.
type MaintenanceSummary struct {
	Total           int                              `json:"total"`
	ByStatus        map[ledger.MaintenanceStatus]int `json:"by_status"`
	ByPaymentStatus map[ledger.PaymentStatus]int     `json:"by_payment_status"`
	EstimatedCost   decimal.Decimal                  `json:"estimated_cost"`
	ActualCost      decimal.Decimal                  `json:"actual_cost"`
	AwaitingPayment int                              `json:"awaiting_payment"`
}

// StatusTotal is a count and amount pair.
type StatusTotal struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// AutoExpenseSummary reduces auto-generated maintenance expenses.
type AutoExpenseSummary struct {
	Count    int                                      `json:"count"`
	Total    decimal.Decimal                          `json:"total"`
	ByStatus map[ledger.TransactionStatus]StatusTotal `json:"by_status"`
}

// DashboardMetrics is the unified finance and maintenance dashboard.
type DashboardMetrics struct {
	CondominiumID            int64                `json:"condominium_id"`
	Financial                FinancialSummary     `json:"financial"`
	Maintenance              MaintenanceSummary   `json:"maintenance"`
	AutoExpenses             AutoExpenseSummary   `json:"auto_expenses"`
	UpcomingDueDates         []UpcomingDueRow     `json:"upcoming_due_dates"`
	PendingFinancialApproval []PendingApprovalRow `json:"pending_financial_approval"`
}

// ReduceTransactions folds grouped transaction rows into a summary.
func ReduceTransactions(rows []TransactionAggregateRow) FinancialSummary {
	var s FinancialSummary
	for _, row := range rows {
		s.TransactionCount += row.Count
		s.LateFees = s.LateFees.Add(row.LateFee)
		if row.AutoGenerated {
			s.AutoGeneratedCount += row.Count
		}
		switch row.Status {
		case ledger.StatusPaid:
			if row.Type == ledger.TypeIncome {
				s.Income = s.Income.Add(row.Total)
			} else {
				s.Expenses = s.Expenses.Add(row.Total)
			}
		case ledger.StatusPending:
			s.Pending = s.Pending.Add(row.Total)
		case ledger.StatusOverdue:
			s.Overdue = s.Overdue.Add(row.Total)
		}
	}
	s.Balance = s.Income.Sub(s.Expenses)
	return s
}

// ReduceMaintenance folds grouped maintenance rows into a summary.
func ReduceMaintenance(rows []MaintenanceAggregateRow) MaintenanceSummary {
	s := MaintenanceSummary{
		ByStatus:        make(map[ledger.MaintenanceStatus]int),
		ByPaymentStatus: make(map[ledger.PaymentStatus]int),
	}
	for _, row := range rows {
		s.Total += row.Count
		s.ByStatus[row.Status] += row.Count
		s.ByPaymentStatus[row.PaymentStatus] += row.Count
		s.EstimatedCost = s.EstimatedCost.Add(row.EstimatedCost)
		s.ActualCost = s.ActualCost.Add(row.ActualCost)
		if row.PaymentStatus == ledger.PaymentPending || row.PaymentStatus == ledger.PaymentOverdue {
			s.AwaitingPayment += row.Count
		}
	}
	return s
}

// ReduceAutoExpenses folds auto expense rows into a summary.
func ReduceAutoExpenses(rows []AutoExpenseRow) AutoExpenseSummary {
	s := AutoExpenseSummary{ByStatus: make(map[ledger.TransactionStatus]StatusTotal)}
	for _, row := range rows {
		s.Count += row.Count
		s.Total = s.Total.Add(row.Total)
		entry := s.ByStatus[row.Status]
		entry.Count += row.Count
		entry.Total = entry.Total.Add(row.Total)
		s.ByStatus[row.Status] = entry
	}
	return s
}
