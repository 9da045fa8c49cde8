package notify

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// BestEffortSink logs and swallows sink failures so that a notification
// problem never rolls back the state change that triggered it.
type BestEffortSink struct {
	sink     Sink
	logger   *slog.Logger
	failures atomic.Int64
}

// BestEffort wraps sink.
func BestEffort(sink Sink, logger *slog.Logger) *BestEffortSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &BestEffortSink{sink: sink, logger: logger}
}

// CreateNotification implements Sink and always returns nil.
func (b *BestEffortSink) CreateNotification(ctx context.Context, n Notification) error {
	if b == nil || b.sink == nil {
		return nil
	}
	if err := b.sink.CreateNotification(ctx, n); err != nil {
		b.failures.Add(1)
		b.logger.Warn("notification dispatch failed",
			slog.Int64("condominium_id", n.CondominiumID),
			slog.String("type", string(n.Type)),
			slog.Any("error", err),
		)
	}
	return nil
}

// Failures returns how many notifications were dropped.
func (b *BestEffortSink) Failures() int64 {
	if b == nil {
		return 0
	}
	return b.failures.Load()
}
