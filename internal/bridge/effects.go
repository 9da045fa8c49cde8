package bridge

import (
	"context"
	"log/slog"

	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/notify"
)

// Effects collects side effects that must only happen after the database
// transaction that produced them commits.
type Effects struct {
	notifications []notify.Notification
	audits        []ledger.AuditLog
	condominiums  map[int64]struct{}
}

// Notify queues a notification.
func (e *Effects) Notify(n notify.Notification) {
	e.notifications = append(e.notifications, n)
}

// Record queues an audit entry.
func (e *Effects) Record(entry ledger.AuditLog) {
	e.audits = append(e.audits, entry)
}

// Touch marks a condominium whose cached read models must be dropped.
func (e *Effects) Touch(condominiumID int64) {
	if e.condominiums == nil {
		e.condominiums = make(map[int64]struct{})
	}
	e.condominiums[condominiumID] = struct{}{}
}

// Merge appends other into e.
func (e *Effects) Merge(other *Effects) {
	if other == nil {
		return
	}
	e.notifications = append(e.notifications, other.notifications...)
	e.audits = append(e.audits, other.audits...)
	for id := range other.condominiums {
		e.Touch(id)
	}
}

// Notifications returns the pending notifications.
func (e *Effects) Notifications() []notify.Notification {
	if e == nil {
		return nil
	}
	return e.notifications
}

// Flush emits notifications, audit entries and cache invalidations. Failures
// are logged, never returned.
func (b *Bridge) Flush(ctx context.Context, e *Effects) {
	if e == nil {
		return
	}
	for _, entry := range e.audits {
		b.recordAudit(ctx, entry)
	}
	for id := range e.condominiums {
		b.invalidate(ctx, id)
	}
	if b.sink != nil {
		for _, n := range e.notifications {
			_ = b.sink.CreateNotification(ctx, n)
		}
	}
}

func (b *Bridge) recordAudit(ctx context.Context, entry ledger.AuditLog) {
	if b.audit == nil {
		return
	}
	if err := b.audit.Record(ctx, entry); err != nil {
		b.logger.Warn("audit record failed",
			slog.String("action", entry.Action),
			slog.String("resource_id", entry.ResourceID),
			slog.Any("error", err),
		)
	}
}

func (b *Bridge) invalidate(ctx context.Context, condominiumID int64) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Invalidate(ctx, condominiumID); err != nil {
		b.logger.Warn("dashboard cache invalidation failed",
			slog.Int64("condominium_id", condominiumID),
			slog.Any("error", err),
		)
	}
}

// recordFailure writes a failed audit entry for an operation that returned err.
func (b *Bridge) recordFailure(ctx context.Context, entry ledger.AuditLog, err error) {
	entry.Success = false
	entry.ErrorMessage = err.Error()
	b.recordAudit(ctx, entry)
}
