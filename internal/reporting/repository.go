package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/condohub/condohub/internal/ledger"
)

// Repository runs the grouped queries behind the dashboard.
type Repository interface {
	TransactionAggregates(ctx context.Context, condominiumID int64, r DateRange) ([]TransactionAggregateRow, error)
	MaintenanceAggregates(ctx context.Context, condominiumID int64, r DateRange) ([]MaintenanceAggregateRow, error)
	AutoExpenseAggregates(ctx context.Context, condominiumID int64, r DateRange) ([]AutoExpenseRow, error)
	UpcomingDues(ctx context.Context, condominiumID int64, from, to time.Time, limit int) ([]UpcomingDueRow, error)
	PendingFinancialApproval(ctx context.Context, condominiumID int64, limit int) ([]PendingApprovalRow, error)
}

// PostgresRepository implements Repository on pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func rangeClause(column string, r DateRange, args []any) (string, []any) {
	var parts []string
	if !r.Start.IsZero() {
		args = append(args, r.Start)
		parts = append(parts, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if !r.End.IsZero() {
		args = append(args, r.End)
		parts = append(parts, fmt.Sprintf("%s <= $%d", column, len(args)))
	}
	if len(parts) == 0 {
		return "", args
	}
	return " AND " + strings.Join(parts, " AND "), args
}

// TransactionAggregates groups by (status, type, auto_generated), filtered on due_date.
func (r *PostgresRepository) TransactionAggregates(ctx context.Context, condominiumID int64, dr DateRange) ([]TransactionAggregateRow, error) {
	clause, args := rangeClause("due_date", dr, []any{condominiumID})
	rows, err := r.pool.Query(ctx, `SELECT status, type, auto_generated, COUNT(*),
		COALESCE(SUM(amount), 0), COALESCE(SUM(late_fee), 0), COALESCE(SUM(total_amount), 0)
		FROM financial_transactions WHERE condominium_id = $1`+clause+`
		GROUP BY status, type, auto_generated`, args...)
	if err != nil {
		return nil, fmt.Errorf("reporting: transaction aggregates: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TransactionAggregateRow, error) {
		var out TransactionAggregateRow
		err := row.Scan(&out.Status, &out.Type, &out.AutoGenerated, &out.Count, &out.Amount, &out.LateFee, &out.Total)
		return out, err
	})
}

// MaintenanceAggregates groups by (status, payment_status), filtered on created_at.
func (r *PostgresRepository) MaintenanceAggregates(ctx context.Context, condominiumID int64, dr DateRange) ([]MaintenanceAggregateRow, error) {
	clause, args := rangeClause("created_at", dr, []any{condominiumID})
	rows, err := r.pool.Query(ctx, `SELECT status, payment_status, COUNT(*),
		COALESCE(SUM(estimated_cost), 0), COALESCE(SUM(actual_cost), 0)
		FROM maintenance_requests WHERE condominium_id = $1`+clause+`
		GROUP BY status, payment_status`, args...)
	if err != nil {
		return nil, fmt.Errorf("reporting: maintenance aggregates: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MaintenanceAggregateRow, error) {
		var out MaintenanceAggregateRow
		err := row.Scan(&out.Status, &out.PaymentStatus, &out.Count, &out.EstimatedCost, &out.ActualCost)
		return out, err
	})
}

// AutoExpenseAggregates groups auto-generated maintenance expenses by status.
func (r *PostgresRepository) AutoExpenseAggregates(ctx context.Context, condominiumID int64, dr DateRange) ([]AutoExpenseRow, error) {
	clause, args := rangeClause("due_date", dr, []any{condominiumID, string(ledger.TypeExpense)})
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM financial_transactions
		WHERE condominium_id = $1 AND type = $2 AND auto_generated AND maintenance_request_id IS NOT NULL`+clause+`
		GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("reporting: auto expense aggregates: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AutoExpenseRow, error) {
		var out AutoExpenseRow
		err := row.Scan(&out.Status, &out.Count, &out.Total)
		return out, err
	})
}

// UpcomingDues lists pending transactions due in [from, to], earliest first.
func (r *PostgresRepository) UpcomingDues(ctx context.Context, condominiumID int64, from, to time.Time, limit int) ([]UpcomingDueRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, COALESCE(description, ''), type, due_date, total_amount
		FROM financial_transactions
		WHERE condominium_id = $1 AND status = 'pending' AND due_date BETWEEN $2 AND $3
		ORDER BY due_date ASC, id ASC LIMIT $4`, condominiumID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("reporting: upcoming dues: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (UpcomingDueRow, error) {
		var out UpcomingDueRow
		err := row.Scan(&out.TransactionID, &out.Description, &out.Type, &out.DueDate, &out.TotalAmount)
		return out, err
	})
}

// PendingFinancialApproval lists approved requests with a positive estimate and no transaction.
func (r *PostgresRepository) PendingFinancialApproval(ctx context.Context, condominiumID int64, limit int) ([]PendingApprovalRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, priority, estimated_cost, created_at
		FROM maintenance_requests
		WHERE condominium_id = $1 AND status = 'approved' AND financial_transaction_id IS NULL AND estimated_cost > 0
		ORDER BY created_at ASC LIMIT $2`, condominiumID, limit)
	if err != nil {
		return nil, fmt.Errorf("reporting: pending approval: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PendingApprovalRow, error) {
		var out PendingApprovalRow
		err := row.Scan(&out.RequestID, &out.Title, &out.Priority, &out.EstimatedCost, &out.CreatedAt)
		return out, err
	})
}
