package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/hibiken/asynq"
)

const (
	// TaskDeliver delivers a stored notification.
	TaskDeliver = "notification:deliver"
	// QueueNotifications isolates delivery from finance batches.
	QueueNotifications = "notifications"
)

// DeliverPayload is the asynq payload of TaskDeliver.
type DeliverPayload struct {
	NotificationID int64 `json:"notification_id"`
}

// NewDeliverTask builds the delivery task for a notification.
func NewDeliverTask(id int64) (*asynq.Task, error) {
	data, err := json.Marshal(DeliverPayload{NotificationID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeliver, data), nil
}

// Enqueuer is the subset of *asynq.Client used by QueueDispatcher.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueDispatcher enqueues delivery tasks on asynq.
type QueueDispatcher struct {
	client Enqueuer
}

// NewQueueDispatcher wraps an asynq client.
func NewQueueDispatcher(client Enqueuer) *QueueDispatcher {
	return &QueueDispatcher{client: client}
}

// Dispatch implements Dispatcher. A notification is enqueued at most once.
func (d *QueueDispatcher) Dispatch(ctx context.Context, notificationID int64) error {
	task, err := NewDeliverTask(notificationID)
	if err != nil {
		return err
	}
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueNotifications),
		asynq.TaskID("notification-"+strconv.FormatInt(notificationID, 10)),
		asynq.MaxRetry(5),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue delivery: %w", err)
	}
	return nil
}
