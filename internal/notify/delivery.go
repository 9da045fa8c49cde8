package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"

	jobmetrics "github.com/condohub/condohub/internal/jobs"
)

// Store loads and acknowledges stored notifications.
type Store interface {
	Load(ctx context.Context, id int64) (Notification, error)
	MarkDelivered(ctx context.Context, id int64, at time.Time) error
}

// Deliverer pushes a notification to its channel (push, e-mail, in-app).
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// LogDeliverer records deliveries in the log. In-app notifications need no
// further transport since clients read the notifications table.
type LogDeliverer struct {
	Logger *slog.Logger
}

// Deliver implements Deliverer.
func (d LogDeliverer) Deliver(ctx context.Context, n Notification) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification delivered",
		slog.Int64("notification_id", n.ID),
		slog.Int64("condominium_id", n.CondominiumID),
		slog.String("type", string(n.Type)),
		slog.String("priority", string(n.Priority)),
	)
	return nil
}

// DeliveryJob handles TaskDeliver tasks.
type DeliveryJob struct {
	Store     Store
	Deliverer Deliverer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Now       func() time.Time
}

// Handle implements asynq.HandlerFunc.
func (j *DeliveryJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload DeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.NotificationID <= 0 {
		return fmt.Errorf("notify: invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskDeliver)
	n, err := j.Store.Load(ctx, payload.NotificationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			j.logger().Warn("notification vanished before delivery", slog.Int64("notification_id", payload.NotificationID))
			return tracker.End(nil)
		}
		return tracker.End(err)
	}
	if n.DeliveredAt != nil {
		return tracker.End(nil)
	}
	if err := j.deliverer().Deliver(ctx, n); err != nil {
		return tracker.End(fmt.Errorf("notify: deliver %d: %w", n.ID, err))
	}
	return tracker.End(j.Store.MarkDelivered(ctx, n.ID, j.now()))
}

func (j *DeliveryJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *DeliveryJob) deliverer() Deliverer {
	if j.Deliverer != nil {
		return j.Deliverer
	}
	return LogDeliverer{Logger: j.logger()}
}

func (j *DeliveryJob) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}
