// Package bridge keeps maintenance requests and their financial transactions
// consistent.
package bridge

import (
	"context"
	"log/slog"

	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/notify"
	"github.com/condohub/condohub/internal/platform/clock"
)

// DefaultExpenseDueDays is the payment term of auto-generated maintenance expenses.
const DefaultExpenseDueDays = 30

// AuditRecorder appends audit log entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry ledger.AuditLog) error
}

// Invalidator drops cached read models of a condominium.
type Invalidator interface {
	Invalidate(ctx context.Context, condominiumID int64) error
}

// Config collects the collaborators of a Bridge. Store is required.
type Config struct {
	Store          ledger.Store
	Notifications  notify.Sink
	Audit          AuditRecorder
	Cache          Invalidator
	Clock          clock.Clock
	Logger         *slog.Logger
	ExpenseDueDays int
}

// Bridge links maintenance requests to expense transactions and mirrors
// transaction status onto the request's payment status.
type Bridge struct {
	store   ledger.Store
	sink    notify.Sink
	audit   AuditRecorder
	cache   Invalidator
	clock   clock.Clock
	logger  *slog.Logger
	dueDays int
}

// New builds a Bridge.
func New(cfg Config) *Bridge {
	b := &Bridge{
		store:   cfg.Store,
		audit:   cfg.Audit,
		cache:   cfg.Cache,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		dueDays: cfg.ExpenseDueDays,
	}
	if b.clock == nil {
		b.clock = clock.System{}
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.dueDays <= 0 {
		b.dueDays = DefaultExpenseDueDays
	}
	if cfg.Notifications != nil {
		b.sink = notify.BestEffort(cfg.Notifications, b.logger)
	}
	return b
}

// Store exposes the ledger store the bridge writes through.
func (b *Bridge) Store() ledger.Store {
	return b.store
}

// Clock exposes the bridge clock.
func (b *Bridge) Clock() clock.Clock {
	return b.clock
}
