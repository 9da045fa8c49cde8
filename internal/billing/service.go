// Package billing implements the batch operations run by the scheduler:
// overdue sweeps, upcoming-due reminders and payment reconciliation.
package billing

import (
	"log/slog"
	"time"

	"github.com/condohub/condohub/internal/bridge"
	"github.com/condohub/condohub/internal/latefee"
	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/platform/clock"
)

// Defaults for Config.
const (
	DefaultUpcomingDueDays    = 3
	DefaultReconcileWindow    = 6 * time.Hour
	DefaultReconcileBatchSize = 50
	DefaultEmergencyPause     = time.Second
)

// Config tunes the batch operations.
type Config struct {
	UpcomingDueDays    int
	ReconcileWindow    time.Duration
	ReconcileBatchSize int
	EmergencyPause     time.Duration
	Policy             latefee.Policy
}

func (c Config) withDefaults() Config {
	if c.UpcomingDueDays <= 0 {
		c.UpcomingDueDays = DefaultUpcomingDueDays
	}
	if c.ReconcileWindow <= 0 {
		c.ReconcileWindow = DefaultReconcileWindow
	}
	if c.ReconcileBatchSize <= 0 {
		c.ReconcileBatchSize = DefaultReconcileBatchSize
	}
	if c.EmergencyPause < 0 {
		c.EmergencyPause = 0
	}
	if c.Policy == nil {
		c.Policy = latefee.Standard{}
	}
	return c
}

// Service runs billing batches on top of the bridge.
type Service struct {
	bridge *bridge.Bridge
	store  ledger.Store
	clock  clock.Clock
	logger *slog.Logger
	cfg    Config
	sleep  func(d time.Duration) <-chan time.Time
}

// NewService builds a billing service sharing the bridge's store and clock.
func NewService(b *bridge.Bridge, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		bridge: b,
		store:  b.Store(),
		clock:  b.Clock(),
		logger: logger,
		cfg:    cfg.withDefaults(),
		sleep:  time.After,
	}
}

// ItemFailure describes one unit of work that failed inside a batch.
type ItemFailure struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// BatchResult aggregates per-item outcomes. A failed item never aborts the batch.
type BatchResult struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

func (r *BatchResult) fail(id int64, err error) {
	r.Failed++
	r.Failures = append(r.Failures, ItemFailure{ID: id, Error: err.Error()})
}

// Merge adds other's counts into r.
func (r *BatchResult) Merge(other BatchResult) {
	r.Processed += other.Processed
	r.Failed += other.Failed
	r.Failures = append(r.Failures, other.Failures...)
}
