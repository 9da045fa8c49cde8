package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/condohub/condohub/internal/jobs"
)

func TestBestEffortSwallowsErrors(t *testing.T) {
	calls := 0
	sink := BestEffort(SinkFunc(func(ctx context.Context, n Notification) error {
		calls++
		return errors.New("smtp down")
	}), nil)

	require.NoError(t, sink.CreateNotification(context.Background(), Notification{CondominiumID: 1, Type: TypeOverdue}))
	require.NoError(t, sink.CreateNotification(context.Background(), Notification{CondominiumID: 1, Type: TypeOverdue}))
	require.Equal(t, 2, calls)
	require.EqualValues(t, 2, sink.Failures())
}

func TestFormatBRL(t *testing.T) {
	out := FormatBRL(decimal.RequireFromString("250"))
	require.True(t, strings.HasPrefix(out, "R$ "), out)
	require.Contains(t, out, "250")
	require.Equal(t, "BRL", CurrencyCode)
	require.Equal(t, "05/02/2024", FormatDate(time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)))
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, f.err
}

func TestQueueDispatcherEnqueuesDeliverTask(t *testing.T) {
	enq := &fakeEnqueuer{}
	require.NoError(t, NewQueueDispatcher(enq).Dispatch(context.Background(), 42))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskDeliver, enq.tasks[0].Type())
	require.JSONEq(t, `{"notification_id":42}`, string(enq.tasks[0].Payload()))

	enq.err = asynq.ErrTaskIDConflict
	require.NoError(t, NewQueueDispatcher(enq).Dispatch(context.Background(), 42))

	enq.err = errors.New("redis down")
	require.Error(t, NewQueueDispatcher(enq).Dispatch(context.Background(), 42))
}

type memStore struct {
	items     map[int64]Notification
	delivered map[int64]time.Time
}

func (m *memStore) Load(ctx context.Context, id int64) (Notification, error) {
	return m.items[id], nil
}

func (m *memStore) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	m.delivered[id] = at
	return nil
}

type countingDeliverer struct{ n int }

func (c *countingDeliverer) Deliver(ctx context.Context, n Notification) error {
	c.n++
	return nil
}

func TestDeliveryJobDeliversOnce(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	store := &memStore{items: map[int64]Notification{7: {ID: 7, CondominiumID: 1}}, delivered: map[int64]time.Time{}}
	deliverer := &countingDeliverer{}
	job := &DeliveryJob{Store: store, Deliverer: deliverer, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry()), Now: func() time.Time { return now }}

	task, err := NewDeliverTask(7)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, deliverer.n)
	require.Equal(t, now, store.delivered[7])

	delivered := store.items[7]
	delivered.DeliveredAt = &now
	store.items[7] = delivered
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, deliverer.n)
}

func TestDeliveryJobRejectsBadPayload(t *testing.T) {
	job := &DeliveryJob{}
	err := job.Handle(context.Background(), asynq.NewTask(TaskDeliver, []byte(`{}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
