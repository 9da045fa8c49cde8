package financehttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/condohub/condohub/internal/billing"
	"github.com/condohub/condohub/internal/bridge"
	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/platform/httpx"
	"github.com/condohub/condohub/internal/reporting"
	"github.com/condohub/condohub/internal/shared"
	"github.com/condohub/condohub/jobs"
)

type stubMaintenance struct {
	createErr  error
	lastID     int64
	lastActor  int64
	lastAction bridge.Action
}

func (s *stubMaintenance) CreateMaintenanceExpense(_ context.Context, id, actor int64) (ledger.Transaction, error) {
	s.lastID, s.lastActor = id, actor
	if s.createErr != nil {
		return ledger.Transaction{}, s.createErr
	}
	return ledger.Transaction{ID: 77, MaintenanceRequestID: &id, Amount: decimal.RequireFromString("450")}, nil
}

func (s *stubMaintenance) ApproveMaintenanceRequest(_ context.Context, id, actor int64) (bridge.ApproveResult, error) {
	s.lastID, s.lastActor = id, actor
	return bridge.ApproveResult{Request: ledger.MaintenanceRequest{ID: id, Status: ledger.MaintenanceApproved}}, nil
}

func (s *stubMaintenance) Reprocess(_ context.Context, id int64, action bridge.Action, actor int64) (bridge.ReprocessResult, error) {
	s.lastID, s.lastActor, s.lastAction = id, actor, action
	return bridge.ReprocessResult{Action: action, Status: "unlinked"}, nil
}

func (s *stubMaintenance) SyncMaintenancePaymentStatus(_ context.Context, id int64) (bridge.SyncResult, error) {
	s.lastID = id
	return bridge.SyncResult{Status: bridge.SyncStatusSynced, PaymentStatus: ledger.PaymentPaid}, nil
}

type stubBilling struct {
	lastCondo *int64
	lastDays  int
}

func (s *stubBilling) CheckAndApplyLateFees(_ context.Context, condo *int64) (billing.OverdueResult, error) {
	s.lastCondo = condo
	return billing.OverdueResult{BatchResult: billing.BatchResult{Processed: 2}}, nil
}

func (s *stubBilling) CheckUpcomingDueDates(_ context.Context, condo *int64, days int) (billing.UpcomingResult, error) {
	s.lastCondo, s.lastDays = condo, days
	return billing.UpcomingResult{DaysAhead: days}, nil
}

type stubDashboard struct {
	lastCondo int64
	lastRange reporting.DateRange
}

func (s *stubDashboard) GetUnifiedDashboardMetrics(_ context.Context, condo int64, r reporting.DateRange) (reporting.DashboardMetrics, error) {
	s.lastCondo, s.lastRange = condo, r
	return reporting.DashboardMetrics{CondominiumID: condo}, nil
}

type stubRunner struct {
	busy     bool
	lastDays int
}

func (s *stubRunner) RunOverdueCheckNow(context.Context) (billing.OverdueResult, error) {
	if s.busy {
		return billing.OverdueResult{}, jobs.ErrJobRunning
	}
	return billing.OverdueResult{BatchResult: billing.BatchResult{Processed: 3}}, nil
}

func (s *stubRunner) RunUpcomingDuesNow(_ context.Context, days int) (billing.UpcomingResult, error) {
	s.lastDays = days
	return billing.UpcomingResult{DaysAhead: days}, nil
}

func (s *stubRunner) RunEmergencyOverdueProcessing(context.Context) (billing.EmergencyResult, error) {
	return billing.EmergencyResult{Processed: 8, Total: 6}, nil
}

func (s *stubRunner) Status() []jobs.JobStatus {
	return []jobs.JobStatus{{Name: jobs.TaskOverdueSweep, Spec: jobs.SpecOverdueSweep}}
}

type fixture struct {
	maintenance *stubMaintenance
	billing     *stubBilling
	dashboard   *stubDashboard
	runner      *stubRunner
	router      http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		maintenance: &stubMaintenance{},
		billing:     &stubBilling{},
		dashboard:   &stubDashboard{},
		runner:      &stubRunner{},
	}
	h := NewHandler(nil, f.maintenance, f.billing, f.dashboard, f.runner)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-User-ID") == "42" {
				r = r.WithContext(shared.ContextWithActor(r.Context(), 42))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/api/finance", h.MountRoutes)
	f.router = r
	return f
}

func (f *fixture) do(method, target, body string, actor bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if actor {
		req.Header.Set("X-User-ID", "42")
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestCreateExpense(t *testing.T) {
	f := newFixture()
	rr := f.do(http.MethodPost, "/api/finance/maintenance/5/expense", "", true)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.EqualValues(t, 5, f.maintenance.lastID)
	require.EqualValues(t, 42, f.maintenance.lastActor)

	var tx map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tx))
	require.EqualValues(t, 77, tx["id"])
	require.EqualValues(t, 5, tx["maintenance_request_id"])
}

func TestCreateExpenseRequiresActor(t *testing.T) {
	rr := newFixture().do(http.MethodPost, "/api/finance/maintenance/5/expense", "", false)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, "X-User-ID", problem.Field)
}

func TestCreateExpenseMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{ledger.ErrNotFound, http.StatusNotFound},
		{&ledger.DuplicateLinkError{MaintenanceRequestID: 5, TransactionID: 9}, http.StatusConflict},
		{&ledger.ValidationError{Field: "amount", Reason: "too small"}, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		f := newFixture()
		f.maintenance.createErr = tc.err
		rr := f.do(http.MethodPost, "/api/finance/maintenance/5/expense", "", true)
		require.Equal(t, tc.code, rr.Code, tc.err.Error())
	}
}

func TestReprocess(t *testing.T) {
	f := newFixture()
	rr := f.do(http.MethodPost, "/api/finance/maintenance/8/reprocess", `{"action":"unlink"}`, true)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, bridge.ActionUnlink, f.maintenance.lastAction)

	rr = f.do(http.MethodPost, "/api/finance/maintenance/8/reprocess", `{"action":"explode"}`, true)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(http.MethodPost, "/api/finance/maintenance/8/reprocess", `{"action":"sync","extra":1}`, true)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApproveAndSync(t *testing.T) {
	f := newFixture()
	rr := f.do(http.MethodPost, "/api/finance/maintenance/3/approve", "", true)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(http.MethodPost, "/api/finance/transactions/11/sync", "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 11, f.maintenance.lastID)

	rr = f.do(http.MethodPost, "/api/finance/transactions/abc/sync", "", false)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLateFeesAndUpcomingScopes(t *testing.T) {
	f := newFixture()
	rr := f.do(http.MethodPost, "/api/finance/late-fees/check?condominium_id=4", "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, f.billing.lastCondo)
	require.EqualValues(t, 4, *f.billing.lastCondo)

	rr = f.do(http.MethodGet, "/api/finance/dues/upcoming?days=5", "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Nil(t, f.billing.lastCondo)
	require.Equal(t, 5, f.billing.lastDays)

	rr = f.do(http.MethodGet, "/api/finance/dues/upcoming?days=-1", "", false)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDashboardParsesRange(t *testing.T) {
	f := newFixture()
	rr := f.do(http.MethodGet, "/api/finance/dashboard/9?start_date=2024-03-01&end_date=2024-03-31", "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 9, f.dashboard.lastCondo)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), f.dashboard.lastRange.Start)
	require.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), f.dashboard.lastRange.End)

	rr = f.do(http.MethodGet, "/api/finance/dashboard/9?start_date=03/01/2024", "", false)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestJobEndpoints(t *testing.T) {
	f := newFixture()
	rr := f.do(http.MethodPost, "/api/finance/jobs/overdue/run", "", true)
	require.Equal(t, http.StatusOK, rr.Code)

	f.runner.busy = true
	rr = f.do(http.MethodPost, "/api/finance/jobs/overdue/run", "", true)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(http.MethodPost, "/api/finance/jobs/upcoming/run?days=7", "", true)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 7, f.runner.lastDays)

	rr = f.do(http.MethodPost, "/api/finance/jobs/emergency/run", "", true)
	require.Equal(t, http.StatusOK, rr.Code)
	var emergency billing.EmergencyResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &emergency))
	require.Equal(t, 8, emergency.Processed)
	require.Equal(t, 6, emergency.Total)

	rr = f.do(http.MethodGet, "/api/finance/jobs/status", "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), jobs.TaskOverdueSweep)
}
