package audit

import (
	"time"

	"github.com/condohub/condohub/internal/ledger"
)

// Actions written by the integration core.
const (
	ActionAutoCreateExpense = "auto_create_expense"
	ActionSyncPaymentStatus = "sync_payment_status"
	ActionApplyLateFee      = "apply_late_fee"
	ActionReprocessSync     = "reprocess_sync"
	ActionReprocessRecreate = "reprocess_recreate"
	ActionReprocessUnlink   = "reprocess_unlink"
	ActionNotifyUpcomingDue = "notify_upcoming_due"
	ActionApproveRequest    = "approve_maintenance"
)

// AutomatedActions lists the actions eligible for retention pruning.
var AutomatedActions = []string{
	ActionAutoCreateExpense,
	ActionSyncPaymentStatus,
	ActionApplyLateFee,
	ActionReprocessSync,
	ActionReprocessRecreate,
	ActionReprocessUnlink,
	ActionNotifyUpcomingDue,
}

// TimelineFilters narrows the audit timeline.
type TimelineFilters struct {
	CondominiumID *int64
	From          time.Time
	To            time.Time
	Action        string
	Resource      string
	Page          int
	PageSize      int
}

// PagingInfo holds simple paging metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"has_next"`
	PageSize int  `json:"page_size"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Rows   []ledger.AuditLog `json:"rows"`
	Paging PagingInfo        `json:"paging"`
}

// ListParams is the repository level query derived from TimelineFilters.
type ListParams struct {
	CondominiumID *int64
	From          time.Time
	To            time.Time
	Action        string
	Resource      string
	Offset        int
	Limit         int
}
