package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/condohub/condohub/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// PostgresStore is the PostgreSQL backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

// NewPostgresStore constructs a store bound to the pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

// WithTx wraps fn in a repeatable-read transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PostgresStore{pool: s.pool, q: tx, inTx: true})
	})
}

const transactionColumns = `id, condominium_id, unit_id, user_id, type, category, COALESCE(description, ''),
	amount, due_date, paid_date, status, payment_method, late_fee, discount, total_amount,
	maintenance_request_id, auto_generated, is_recurring, recurrence_type, approved_by, approved_at,
	cash_confirmed, cash_confirmed_by, cash_confirmed_at, mixed_payment,
	COALESCE(pix_amount, 0), COALESCE(cash_amount, 0), private_expense,
	balance_before, balance_after, created_by, created_at, updated_at`

func scanTransaction(row scanner) (Transaction, error) {
	var t Transaction
	var method *string
	var balanceBefore, balanceAfter decimal.NullDecimal
	err := row.Scan(
		&t.ID, &t.CondominiumID, &t.UnitID, &t.UserID, &t.Type, &t.Category, &t.Description,
		&t.Amount, &t.DueDate, &t.PaidDate, &t.Status, &method, &t.LateFee, &t.Discount, &t.TotalAmount,
		&t.MaintenanceRequestID, &t.AutoGenerated, &t.IsRecurring, &t.RecurrenceType, &t.ApprovedBy, &t.ApprovedAt,
		&t.CashConfirmed, &t.CashConfirmedBy, &t.CashConfirmedAt, &t.MixedPayment,
		&t.PixAmount, &t.CashAmount, &t.PrivateExpense,
		&balanceBefore, &balanceAfter, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return Transaction{}, err
	}
	if method != nil {
		pm := PaymentMethod(*method)
		t.PaymentMethod = &pm
	}
	t.BalanceBefore = fromNullDecimal(balanceBefore)
	t.BalanceAfter = fromNullDecimal(balanceAfter)
	return t, nil
}

// GetTransaction loads a transaction by id. Inside WithTx the row is locked.
func (s *PostgresStore) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM financial_transactions WHERE id = $1`
	if s.inTx {
		query += " FOR UPDATE"
	}
	t, err := scanTransaction(s.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, notFound("transaction", id)
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("ledger: get transaction: %w", err)
	}
	return t, nil
}

// FindTransactionByMaintenanceRequest returns the linked transaction or nil.
func (s *PostgresStore) FindTransactionByMaintenanceRequest(ctx context.Context, requestID int64) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM financial_transactions WHERE maintenance_request_id = $1 LIMIT 1`
	t, err := scanTransaction(s.q.QueryRow(ctx, query, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: find transaction by maintenance request: %w", err)
	}
	return &t, nil
}

// CreateTransaction validates and inserts the transaction, filling its id and timestamps.
func (s *PostgresStore) CreateTransaction(ctx context.Context, t *Transaction) error {
	t.RecomputeTotal()
	if err := ValidateTransaction(t); err != nil {
		return err
	}
	query := `
		INSERT INTO financial_transactions (
			condominium_id, unit_id, user_id, type, category, description, amount, due_date, paid_date,
			status, payment_method, late_fee, discount, total_amount, maintenance_request_id,
			auto_generated, is_recurring, recurrence_type, approved_by, approved_at,
			cash_confirmed, cash_confirmed_by, cash_confirmed_at, mixed_payment, pix_amount, cash_amount,
			private_expense, balance_before, balance_after, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := s.q.QueryRow(ctx, query,
		t.CondominiumID, t.UnitID, t.UserID, string(t.Type), string(t.Category), t.Description, t.Amount, t.DueDate, t.PaidDate,
		string(t.Status), paymentMethodArg(t.PaymentMethod), t.LateFee, t.Discount, t.TotalAmount, t.MaintenanceRequestID,
		t.AutoGenerated, t.IsRecurring, string(t.RecurrenceType), t.ApprovedBy, t.ApprovedAt,
		t.CashConfirmed, t.CashConfirmedBy, t.CashConfirmedAt, t.MixedPayment, t.PixAmount, t.CashAmount,
		t.PrivateExpense, toNullDecimal(t.BalanceBefore), toNullDecimal(t.BalanceAfter), t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return mapWriteError(err, t)
	}
	return nil
}

// UpdateTransaction persists every mutable column and recomputes the total.
func (s *PostgresStore) UpdateTransaction(ctx context.Context, t *Transaction) error {
	t.RecomputeTotal()
	if err := ValidateTransaction(t); err != nil {
		return err
	}
	query := `
		UPDATE financial_transactions SET
			unit_id = $2, user_id = $3, type = $4, category = $5, description = $6, amount = $7,
			due_date = $8, paid_date = $9, status = $10, payment_method = $11, late_fee = $12,
			discount = $13, total_amount = $14, maintenance_request_id = $15, auto_generated = $16,
			is_recurring = $17, recurrence_type = $18, approved_by = $19, approved_at = $20,
			cash_confirmed = $21, cash_confirmed_by = $22, cash_confirmed_at = $23, mixed_payment = $24,
			pix_amount = $25, cash_amount = $26, private_expense = $27, balance_before = $28,
			balance_after = $29, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := s.q.QueryRow(ctx, query,
		t.ID, t.UnitID, t.UserID, string(t.Type), string(t.Category), t.Description, t.Amount,
		t.DueDate, t.PaidDate, string(t.Status), paymentMethodArg(t.PaymentMethod), t.LateFee,
		t.Discount, t.TotalAmount, t.MaintenanceRequestID, t.AutoGenerated,
		t.IsRecurring, string(t.RecurrenceType), t.ApprovedBy, t.ApprovedAt,
		t.CashConfirmed, t.CashConfirmedBy, t.CashConfirmedAt, t.MixedPayment,
		t.PixAmount, t.CashAmount, t.PrivateExpense, toNullDecimal(t.BalanceBefore),
		toNullDecimal(t.BalanceAfter),
	).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound("transaction", t.ID)
	}
	if err != nil {
		return mapWriteError(err, t)
	}
	return nil
}

// DeleteTransaction physically removes a transaction. Only the bridge's
// recreate action uses it; everything else soft-cancels.
func (s *PostgresStore) DeleteTransaction(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM financial_transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ledger: delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("transaction", id)
	}
	return nil
}

// ListTransactions returns transactions matching the filter in query order.
func (s *PostgresStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	where, args := transactionWhere(filter)
	query := `SELECT ` + transactionColumns + ` FROM financial_transactions` + where
	if filter.OrderByDueDate {
		query += " ORDER BY due_date ASC, id ASC"
	} else {
		query += " ORDER BY id ASC"
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTransactions counts transactions matching the filter.
func (s *PostgresStore) CountTransactions(ctx context.Context, filter TransactionFilter) (int, error) {
	where, args := transactionWhere(filter)
	var count int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM financial_transactions`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ledger: count transactions: %w", err)
	}
	return count, nil
}

// ListCondominiumIDs returns the distinct condominiums owning matching transactions.
func (s *PostgresStore) ListCondominiumIDs(ctx context.Context, filter TransactionFilter) ([]int64, error) {
	where, args := transactionWhere(filter)
	rows, err := s.q.Query(ctx, `SELECT DISTINCT condominium_id FROM financial_transactions`+where+` ORDER BY condominium_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list condominium ids: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func transactionWhere(f TransactionFilter) (string, []any) {
	var w whereBuilder
	if f.CondominiumID != nil {
		w.add("condominium_id = $%d", *f.CondominiumID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			statuses = append(statuses, string(st))
		}
		w.add("status = ANY($%d)", statuses)
	}
	if f.Type != "" {
		w.add("type = $%d", string(f.Type))
	}
	if f.DueBefore != nil {
		w.add("due_date < $%d", *f.DueBefore)
	}
	if f.DueFrom != nil {
		w.add("due_date >= $%d", *f.DueFrom)
	}
	if f.DueTo != nil {
		w.add("due_date <= $%d", *f.DueTo)
	}
	if f.UpdatedSince != nil {
		w.add("updated_at >= $%d", *f.UpdatedSince)
	}
	if f.LinkedToMaintenance {
		w.clauses = append(w.clauses, "maintenance_request_id IS NOT NULL")
	}
	if f.AutoGenerated != nil {
		w.add("auto_generated = $%d", *f.AutoGenerated)
	}
	return w.sql(), w.args
}

const maintenanceColumns = `id, condominium_id, unit_id, user_id, title, COALESCE(description, ''), COALESCE(category, ''),
	priority, status, estimated_cost, actual_cost, financial_transaction_id, payment_status,
	scheduled_date, completed_date, resident_rating, created_at, updated_at`

func scanMaintenanceRequest(row scanner) (MaintenanceRequest, error) {
	var m MaintenanceRequest
	var estimated, actual decimal.NullDecimal
	err := row.Scan(
		&m.ID, &m.CondominiumID, &m.UnitID, &m.UserID, &m.Title, &m.Description, &m.Category,
		&m.Priority, &m.Status, &estimated, &actual, &m.FinancialTransactionID, &m.PaymentStatus,
		&m.ScheduledDate, &m.CompletedDate, &m.ResidentRating, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return MaintenanceRequest{}, err
	}
	m.EstimatedCost = fromNullDecimal(estimated)
	m.ActualCost = fromNullDecimal(actual)
	return m, nil
}

// GetMaintenanceRequest loads a maintenance request. Inside WithTx the row is locked.
func (s *PostgresStore) GetMaintenanceRequest(ctx context.Context, id int64) (MaintenanceRequest, error) {
	query := `SELECT ` + maintenanceColumns + ` FROM maintenance_requests WHERE id = $1`
	if s.inTx {
		query += " FOR UPDATE"
	}
	m, err := scanMaintenanceRequest(s.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return MaintenanceRequest{}, notFound("maintenance request", id)
	}
	if err != nil {
		return MaintenanceRequest{}, fmt.Errorf("ledger: get maintenance request: %w", err)
	}
	return m, nil
}

// UpdateMaintenanceRequest persists the workflow and financial columns.
func (s *PostgresStore) UpdateMaintenanceRequest(ctx context.Context, m *MaintenanceRequest) error {
	if err := ValidateMaintenanceRequest(m); err != nil {
		return err
	}
	query := `
		UPDATE maintenance_requests SET
			status = $2, estimated_cost = $3, actual_cost = $4, financial_transaction_id = $5,
			payment_status = $6, scheduled_date = $7, completed_date = $8, resident_rating = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := s.q.QueryRow(ctx, query,
		m.ID, string(m.Status), toNullDecimal(m.EstimatedCost), toNullDecimal(m.ActualCost), m.FinancialTransactionID,
		string(m.PaymentStatus), m.ScheduledDate, m.CompletedDate, m.ResidentRating,
	).Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound("maintenance request", m.ID)
	}
	if err != nil {
		return fmt.Errorf("ledger: update maintenance request: %w", err)
	}
	return nil
}

const unitPaymentColumns = `id, condominium_id, unit_id, reference_month, reference_year, amount, late_fee,
	discount, total_amount, paid_amount, due_date, paid_date, status, created_at, updated_at`

// ListUnitPayments returns unit payments matching the filter.
func (s *PostgresStore) ListUnitPayments(ctx context.Context, filter UnitPaymentFilter) ([]UnitPayment, error) {
	var w whereBuilder
	if filter.CondominiumID != nil {
		w.add("condominium_id = $%d", *filter.CondominiumID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		w.add("status = ANY($%d)", statuses)
	}
	if filter.DueBefore != nil {
		w.add("due_date < $%d", *filter.DueBefore)
	}
	query := `SELECT ` + unitPaymentColumns + ` FROM unit_payments` + w.sql() + ` ORDER BY due_date ASC, id ASC`
	args := w.args
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list unit payments: %w", err)
	}
	defer rows.Close()

	var out []UnitPayment
	for rows.Next() {
		var p UnitPayment
		if err := rows.Scan(
			&p.ID, &p.CondominiumID, &p.UnitID, &p.ReferenceMonth, &p.ReferenceYear, &p.Amount, &p.LateFee,
			&p.Discount, &p.TotalAmount, &p.PaidAmount, &p.DueDate, &p.PaidDate, &p.Status, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ledger: scan unit payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateUnitPayment persists the billing columns and recomputes the total.
func (s *PostgresStore) UpdateUnitPayment(ctx context.Context, p *UnitPayment) error {
	p.RecomputeTotal()
	query := `
		UPDATE unit_payments SET
			late_fee = $2, discount = $3, total_amount = $4, paid_amount = $5,
			paid_date = $6, status = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := s.q.QueryRow(ctx, query, p.ID, p.LateFee, p.Discount, p.TotalAmount, p.PaidAmount, p.PaidDate, string(p.Status)).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound("unit payment", p.ID)
	}
	if err != nil {
		return fmt.Errorf("ledger: update unit payment: %w", err)
	}
	return nil
}

type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func mapWriteError(err error, t *Transaction) error {
	if constraint, ok := db.IsUniqueViolation(err); ok && strings.Contains(constraint, "maintenance_request") {
		var requestID int64
		if t.MaintenanceRequestID != nil {
			requestID = *t.MaintenanceRequestID
		}
		return &DuplicateLinkError{MaintenanceRequestID: requestID}
	}
	return fmt.Errorf("ledger: write transaction: %w", err)
}

func paymentMethodArg(pm *PaymentMethod) *string {
	if pm == nil {
		return nil
	}
	s := string(*pm)
	return &s
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
