package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Dispatcher hands a stored notification to asynchronous delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, notificationID int64) error
}

// PostgresSink stores notifications in the notifications table and optionally
// enqueues their delivery.
type PostgresSink struct {
	pool       *pgxpool.Pool
	dispatcher Dispatcher
	now        func() time.Time
}

// NewPostgresSink builds a sink. dispatcher may be nil.
func NewPostgresSink(pool *pgxpool.Pool, dispatcher Dispatcher) *PostgresSink {
	return &PostgresSink{pool: pool, dispatcher: dispatcher, now: time.Now}
}

// CreateNotification implements Sink.
func (s *PostgresSink) CreateNotification(ctx context.Context, n Notification) error {
	data, err := marshalData(n.Data)
	if err != nil {
		return fmt.Errorf("notify: encode data: %w", err)
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	var id int64
	err = s.pool.QueryRow(ctx, `INSERT INTO notifications
		(condominium_id, user_id, title, message, type, priority, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		n.CondominiumID, n.UserID, n.Title, n.Message, string(n.Type), string(n.Priority), data, s.now()).Scan(&id)
	if err != nil {
		return fmt.Errorf("notify: insert: %w", err)
	}
	if s.dispatcher == nil {
		return nil
	}
	if err := s.dispatcher.Dispatch(ctx, id); err != nil {
		return fmt.Errorf("notify: dispatch %d: %w", id, err)
	}
	return nil
}

// Load returns a stored notification.
func (s *PostgresSink) Load(ctx context.Context, id int64) (Notification, error) {
	var (
		n    Notification
		kind string
		prio string
		data []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT id, condominium_id, user_id, title, message, type, priority, data, created_at, delivered_at
		FROM notifications WHERE id = $1`, id).
		Scan(&n.ID, &n.CondominiumID, &n.UserID, &n.Title, &n.Message, &kind, &prio, &data, &n.CreatedAt, &n.DeliveredAt)
	if err != nil {
		return Notification{}, err
	}
	n.Type = Type(kind)
	n.Priority = Priority(prio)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return Notification{}, err
		}
	}
	return n, nil
}

// MarkDelivered stamps delivered_at.
func (s *PostgresSink) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE notifications SET delivered_at = $2 WHERE id = $1 AND delivered_at IS NULL`, id, at)
	return err
}
