package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/condohub/condohub/internal/ledger"
)

// PostgresRepository stores audit logs in the audit_logs table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Insert appends the entry.
func (r *PostgresRepository) Insert(ctx context.Context, entry ledger.AuditLog) error {
	oldJSON, err := marshalValues(entry.OldValues)
	if err != nil {
		return err
	}
	newJSON, err := marshalValues(entry.NewValues)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_logs
		(action, resource, resource_id, user_id, condominium_id, old_values, new_values, success, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.Action, entry.Resource, optionalText(entry.ResourceID), entry.UserID, entry.CondominiumID,
		oldJSON, newJSON, entry.Success, optionalText(entry.ErrorMessage), entry.CreatedAt)
	return err
}

// List returns entries newest first.
func (r *PostgresRepository) List(ctx context.Context, params ListParams) ([]ledger.AuditLog, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if params.CondominiumID != nil {
		add("condominium_id = $%d", *params.CondominiumID)
	}
	if !params.From.IsZero() {
		add("created_at >= $%d", params.From)
	}
	if !params.To.IsZero() {
		add("created_at < $%d", params.To)
	}
	if params.Action != "" {
		add("action = $%d", params.Action)
	}
	if params.Resource != "" {
		add("resource = $%d", params.Resource)
	}
	query := `SELECT id, action, resource, COALESCE(resource_id, ''), user_id, condominium_id,
		old_values, new_values, success, COALESCE(error_message, ''), created_at FROM audit_logs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if params.Limit > 0 {
		args = append(args, params.Limit, params.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.AuditLog, error) {
		var (
			entry   ledger.AuditLog
			oldJSON []byte
			newJSON []byte
		)
		if err := row.Scan(&entry.ID, &entry.Action, &entry.Resource, &entry.ResourceID, &entry.UserID,
			&entry.CondominiumID, &oldJSON, &newJSON, &entry.Success, &entry.ErrorMessage, &entry.CreatedAt); err != nil {
			return entry, err
		}
		if len(oldJSON) > 0 {
			if err := json.Unmarshal(oldJSON, &entry.OldValues); err != nil {
				return entry, err
			}
		}
		if len(newJSON) > 0 {
			if err := json.Unmarshal(newJSON, &entry.NewValues); err != nil {
				return entry, err
			}
		}
		return entry, nil
	})
}

// DeleteBefore removes entries older than cutoff whose action is listed.
func (r *PostgresRepository) DeleteBefore(ctx context.Context, cutoff time.Time, actions []string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1 AND action = ANY($2)`, cutoff, actions)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func marshalValues(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
