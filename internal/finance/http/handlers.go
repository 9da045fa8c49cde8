package financehttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/condohub/condohub/internal/billing"
	"github.com/condohub/condohub/internal/bridge"
	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/platform/httpx"
	"github.com/condohub/condohub/internal/reporting"
	"github.com/condohub/condohub/internal/shared"
	"github.com/condohub/condohub/jobs"
)

const dateLayout = "2006-01-02"

// MaintenanceService is the bridge contract used by the handlers.
type MaintenanceService interface {
	CreateMaintenanceExpense(ctx context.Context, requestID, actingUserID int64) (ledger.Transaction, error)
	ApproveMaintenanceRequest(ctx context.Context, requestID, actingUserID int64) (bridge.ApproveResult, error)
	Reprocess(ctx context.Context, requestID int64, action bridge.Action, actingUserID int64) (bridge.ReprocessResult, error)
	SyncMaintenancePaymentStatus(ctx context.Context, transactionID int64) (bridge.SyncResult, error)
}

// BillingService runs scoped batch operations on demand.
type BillingService interface {
	CheckAndApplyLateFees(ctx context.Context, condominiumID *int64) (billing.OverdueResult, error)
	CheckUpcomingDueDates(ctx context.Context, condominiumID *int64, daysAhead int) (billing.UpcomingResult, error)
}

// DashboardService builds the unified dashboard.
type DashboardService interface {
	GetUnifiedDashboardMetrics(ctx context.Context, condominiumID int64, r reporting.DateRange) (reporting.DashboardMetrics, error)
}

// JobRunner triggers scheduled jobs manually.
type JobRunner interface {
	RunOverdueCheckNow(ctx context.Context) (billing.OverdueResult, error)
	RunUpcomingDuesNow(ctx context.Context, daysAhead int) (billing.UpcomingResult, error)
	RunEmergencyOverdueProcessing(ctx context.Context) (billing.EmergencyResult, error)
	Status() []jobs.JobStatus
}

// Handler exposes the finance core over JSON.
type Handler struct {
	logger      *slog.Logger
	maintenance MaintenanceService
	billing     BillingService
	dashboard   DashboardService
	jobs        JobRunner
}

// NewHandler builds a finance handler.
func NewHandler(logger *slog.Logger, maintenance MaintenanceService, billing BillingService, dashboard DashboardService, runner JobRunner) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, maintenance: maintenance, billing: billing, dashboard: dashboard, jobs: runner}
}

type reprocessRequest struct {
	Action string `json:"action"`
}

func (h *Handler) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r, "id")
	if !ok {
		return
	}
	tx, err := h.maintenance.CreateMaintenanceExpense(r.Context(), id, actor)
	if err != nil {
		h.fail(w, "create maintenance expense", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r, "id")
	if !ok {
		return
	}
	res, err := h.maintenance.ApproveMaintenanceRequest(r.Context(), id, actor)
	if err != nil {
		h.fail(w, "approve maintenance request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleReprocess(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r, "id")
	if !ok {
		return
	}
	var body reprocessRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	action, err := bridge.ParseAction(body.Action)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.maintenance.Reprocess(r.Context(), id, action, actor)
	if err != nil {
		h.fail(w, "reprocess maintenance request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.maintenance.SyncMaintenancePaymentStatus(r.Context(), id)
	if err != nil {
		h.fail(w, "sync payment status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleLateFees(w http.ResponseWriter, r *http.Request) {
	condo, err := optionalID(r, "condominium_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.billing.CheckAndApplyLateFees(r.Context(), condo)
	if err != nil {
		h.fail(w, "check late fees", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	condo, err := optionalID(r, "condominium_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	days, err := optionalInt(r, "days")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.billing.CheckUpcomingDueDates(r.Context(), condo, days)
	if err != nil {
		h.fail(w, "check upcoming dues", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	condo, err := pathID(r, "condominiumID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var dr reporting.DateRange
	if dr.Start, err = optionalDate(r, "start_date"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if dr.End, err = optionalDate(r, "end_date"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	metrics, err := h.dashboard.GetUnifiedDashboardMetrics(r.Context(), condo, dr)
	if err != nil {
		h.fail(w, "dashboard metrics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, metrics)
}

func (h *Handler) handleRunOverdue(w http.ResponseWriter, r *http.Request) {
	res, err := h.jobs.RunOverdueCheckNow(r.Context())
	h.respondJob(w, "run overdue check", res, err)
}

func (h *Handler) handleRunUpcoming(w http.ResponseWriter, r *http.Request) {
	days, err := optionalInt(r, "days")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.jobs.RunUpcomingDuesNow(r.Context(), days)
	h.respondJob(w, "run upcoming dues", res, err)
}

func (h *Handler) handleRunEmergency(w http.ResponseWriter, r *http.Request) {
	res, err := h.jobs.RunEmergencyOverdueProcessing(r.Context())
	h.respondJob(w, "run emergency overdue", res, err)
}

func (h *Handler) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"jobs": h.jobs.Status()})
}

func (h *Handler) respondJob(w http.ResponseWriter, op string, result any, err error) {
	if errors.Is(err, jobs.ErrJobRunning) {
		httpx.Problem(w, http.StatusConflict, "Job Running", err.Error())
		return
	}
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, ledger.ErrNotFound) && !errors.Is(err, ledger.ErrValidation) && !errors.Is(err, ledger.ErrDuplicateLink) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) idAndActor(w http.ResponseWriter, r *http.Request, param string) (int64, int64, bool) {
	id, err := pathID(r, param)
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, &ledger.ValidationError{Field: "X-User-ID", Reason: "acting user required"})
		return 0, 0, false
	}
	return id, actor, true
}

func pathID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, &ledger.ValidationError{Field: param, Reason: "must be a positive integer"}
	}
	return id, nil
}

func optionalID(r *http.Request, key string) (*int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, &ledger.ValidationError{Field: key, Reason: "must be a positive integer"}
	}
	return &id, nil
}

func optionalInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, &ledger.ValidationError{Field: key, Reason: "must be a positive integer"}
	}
	return v, nil
}

func optionalDate(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, &ledger.ValidationError{Field: key, Reason: "expected YYYY-MM-DD"}
	}
	return t, nil
}
