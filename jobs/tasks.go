package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue for scheduled finance jobs.
	QueueDefault = "default"

	TaskOverdueSweep       = "finance:overdue_sweep"
	TaskUnitPaymentOverdue = "finance:unit_payment_overdue"
	TaskUpcomingDues       = "finance:upcoming_dues"
	TaskPaymentSync        = "finance:payment_sync"
	TaskEmergencyOverdue   = "finance:overdue_emergency"
	TaskAuditRetention     = "audit:retention"
)

// Cron specs are evaluated in the scheduler's location.
const (
	SpecOverdueSweep       = "0 9 * * *"
	SpecUnitPaymentOverdue = "15 9 * * *"
	SpecUpcomingDues       = "0 8 * * *"
	SpecPaymentSync        = "0 */6 * * *"
	SpecAuditRetention     = "0 2 * * 0"
)

// OverduePayload scopes an overdue sweep. A nil CondominiumID sweeps every condominium.
type OverduePayload struct {
	CondominiumID *int64 `json:"condominium_id,omitempty"`
}

// UpcomingDuesPayload configures the reminder window.
type UpcomingDuesPayload struct {
	CondominiumID *int64 `json:"condominium_id,omitempty"`
	DaysAhead     int    `json:"days_ahead,omitempty"`
}

// RetentionPayload overrides the audit retention window.
type RetentionPayload struct {
	Months int `json:"months,omitempty"`
}

func newTask(taskType string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	body := []byte("{}")
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	opts = append([]asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(0)}, opts...)
	return asynq.NewTask(taskType, body, opts...), nil
}

// NewOverdueSweepTask constructs the overdue sweep task.
func NewOverdueSweepTask(payload OverduePayload) (*asynq.Task, error) {
	return newTask(TaskOverdueSweep, payload)
}

// NewUpcomingDuesTask constructs the upcoming-dues reminder task.
func NewUpcomingDuesTask(payload UpcomingDuesPayload) (*asynq.Task, error) {
	return newTask(TaskUpcomingDues, payload)
}

// NewUnitPaymentOverdueTask constructs the unit-payment overdue sweep task.
func NewUnitPaymentOverdueTask(payload OverduePayload) (*asynq.Task, error) {
	return newTask(TaskUnitPaymentOverdue, payload)
}

// NewPaymentSyncTask constructs the payment reconciliation task.
func NewPaymentSyncTask() (*asynq.Task, error) {
	return newTask(TaskPaymentSync, nil)
}

// NewEmergencyOverdueTask constructs the emergency overdue task.
func NewEmergencyOverdueTask() (*asynq.Task, error) {
	return newTask(TaskEmergencyOverdue, nil)
}

// NewAuditRetentionTask constructs the audit retention task.
func NewAuditRetentionTask(payload RetentionPayload) (*asynq.Task, error) {
	return newTask(TaskAuditRetention, payload)
}

// TaskForJob builds the default task of a scheduled job type.
func TaskForJob(taskType string) (*asynq.Task, error) {
	switch taskType {
	case TaskOverdueSweep:
		return NewOverdueSweepTask(OverduePayload{})
	case TaskUnitPaymentOverdue:
		return NewUnitPaymentOverdueTask(OverduePayload{})
	case TaskUpcomingDues:
		return NewUpcomingDuesTask(UpcomingDuesPayload{})
	case TaskPaymentSync:
		return NewPaymentSyncTask()
	case TaskEmergencyOverdue:
		return NewEmergencyOverdueTask()
	case TaskAuditRetention:
		return NewAuditRetentionTask(RetentionPayload{})
	default:
		return nil, fmt.Errorf("jobs: unknown task type %q", taskType)
	}
}

func decodePayload(t *asynq.Task, dest any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return asynq.SkipRetry
	}
	return nil
}
