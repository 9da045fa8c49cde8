// Package notify accepts notification requests from the finance core and
// hands them to delivery.
package notify

import (
	"context"
	"encoding/json"
	"time"
)

// Type classifies a notification.
type Type string

const (
	TypeMaintenanceExpense Type = "maintenance_expense"
	TypePaymentConfirmed   Type = "payment_confirmed"
	TypeOverdue            Type = "payment_overdue"
	TypeUpcomingDue        Type = "payment_due_soon"
)

// Priority drives delivery urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notification is a single message addressed to a user of a condominium.
type Notification struct {
	ID            int64          `json:"id,omitempty"`
	CondominiumID int64          `json:"condominium_id"`
	UserID        *int64         `json:"user_id,omitempty"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Type          Type           `json:"type"`
	Priority      Priority       `json:"priority"`
	Data          map[string]any `json:"data,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
}

// Sink accepts notification requests.
type Sink interface {
	CreateNotification(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

// CreateNotification implements Sink.
func (f SinkFunc) CreateNotification(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

func marshalData(data map[string]any) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return json.Marshal(data)
}
