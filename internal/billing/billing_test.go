package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/condohub/condohub/internal/bridge"
	"github.com/condohub/condohub/internal/latefee"
	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/ledger/ledgertest"
	"github.com/condohub/condohub/internal/notify"
	"github.com/condohub/condohub/internal/notify/notifytest"
	"github.com/condohub/condohub/internal/platform/clock"
)

type fixture struct {
	store *ledgertest.MemoryStore
	sink  *notifytest.Recorder
	clock *clock.Fixed
	svc   *Service
}

func newFixture(t *testing.T, now time.Time, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		store: ledgertest.NewMemoryStore(),
		sink:  &notifytest.Recorder{},
		clock: clock.NewFixed(now),
	}
	f.store.Now = f.clock.Now
	b := bridge.New(bridge.Config{Store: f.store, Notifications: f.sink, Clock: f.clock})
	f.svc = NewService(b, cfg, nil)
	f.svc.sleep = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- f.clock.Now()
		return ch
	}
	return f
}

func capped(percent int64) latefee.Policy {
	return latefee.Standard{CapPercent: decimal.NewFromInt(percent)}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) pending(condo int64, amount string, due time.Time) ledger.Transaction {
	user := int64(30)
	return f.store.SeedTransaction(ledger.Transaction{
		CondominiumID: condo,
		UserID:        &user,
		Type:          ledger.TypeIncome,
		Category:      ledger.CategoryCondominiumFee,
		Description:   "Monthly fee",
		Amount:        decimal.RequireFromString(amount),
		DueDate:       due,
		Status:        ledger.StatusPending,
	})
}

func TestOverdueSweepAppliesLateFee(t *testing.T) {
	f := newFixture(t, time.Date(2024, 1, 11, 9, 0, 0, 0, time.UTC), Config{})
	tx := f.pending(1, "100.00", day(2024, 1, 1))
	notYetDue := f.pending(1, "100.00", day(2024, 1, 20))

	res, err := f.svc.CheckAndApplyLateFees(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.Zero(t, res.Failed)
	require.Len(t, res.Transactions, 1)

	stored, _ := f.store.Transaction(tx.ID)
	require.Equal(t, ledger.StatusOverdue, stored.Status)
	require.True(t, stored.LateFee.Equal(decimal.RequireFromString("3.00")), "late fee %s", stored.LateFee)
	require.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("103.00")), "total %s", stored.TotalAmount)

	untouched, _ := f.store.Transaction(notYetDue.ID)
	require.Equal(t, ledger.StatusPending, untouched.Status)
	require.True(t, untouched.LateFee.IsZero())

	overdue := f.sink.OfType(notify.TypeOverdue)
	require.Len(t, overdue, 1)
	require.Equal(t, notify.PriorityHigh, overdue[0].Priority)
	require.Equal(t, 10, overdue[0].Data["days_late"])
}

func TestOverdueSweepScopesToCondominium(t *testing.T) {
	f := newFixture(t, day(2024, 2, 1), Config{})
	a := f.pending(1, "50", day(2024, 1, 1))
	b := f.pending(2, "50", day(2024, 1, 1))

	condo := int64(2)
	res, err := f.svc.CheckAndApplyLateFees(context.Background(), &condo)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)

	storedA, _ := f.store.Transaction(a.ID)
	storedB, _ := f.store.Transaction(b.ID)
	require.Equal(t, ledger.StatusPending, storedA.Status)
	require.Equal(t, ledger.StatusOverdue, storedB.Status)
}

func TestOverdueSweepPropagatesToMaintenance(t *testing.T) {
	f := newFixture(t, day(2024, 5, 10), Config{})
	est := decimal.RequireFromString("200")
	req := f.store.SeedMaintenanceRequest(ledger.MaintenanceRequest{
		CondominiumID: 1, UserID: 5, Title: "Roof", Status: ledger.MaintenanceApproved,
		EstimatedCost: &est, PaymentStatus: ledger.PaymentPending,
	})
	reqID := req.ID
	tx := f.store.SeedTransaction(ledger.Transaction{
		CondominiumID: 1, Type: ledger.TypeExpense, Category: ledger.CategoryMaintenance,
		Amount: est, DueDate: day(2024, 5, 1), Status: ledger.StatusPending,
		MaintenanceRequestID: &reqID, AutoGenerated: true,
	})
	req.FinancialTransactionID = &tx.ID
	f.store.SeedMaintenanceRequest(req)

	_, err := f.svc.CheckAndApplyLateFees(context.Background(), nil)
	require.NoError(t, err)
	stored, _ := f.store.MaintenanceRequest(req.ID)
	require.Equal(t, ledger.PaymentOverdue, stored.PaymentStatus)
}

func TestOverdueSweepIsolatesFailures(t *testing.T) {
	f := newFixture(t, day(2024, 3, 1), Config{})
	first := f.pending(1, "10", day(2024, 2, 1))
	broken := f.pending(1, "20", day(2024, 2, 1))
	last := f.pending(1, "30", day(2024, 2, 1))
	f.store.FailTransactionUpdate[broken.ID] = errors.New("deadlock detected")

	res, err := f.svc.CheckAndApplyLateFees(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, res.Processed)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, broken.ID, res.Failures[0].ID)

	for _, id := range []int64{first.ID, last.ID} {
		stored, _ := f.store.Transaction(id)
		require.Equal(t, ledger.StatusOverdue, stored.Status)
	}
	stored, _ := f.store.Transaction(broken.ID)
	require.Equal(t, ledger.StatusPending, stored.Status)
}

func TestOverdueSweepStopsOnCancellation(t *testing.T) {
	f := newFixture(t, day(2024, 3, 1), Config{})
	f.pending(1, "10", day(2024, 2, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.CheckAndApplyLateFees(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, res.Processed)
}

func TestOverdueSweepHonoursCap(t *testing.T) {
	f := newFixture(t, day(2024, 1, 1).AddDate(0, 0, 1000), Config{Policy: capped(10)})
	tx := f.pending(1, "100", day(2024, 1, 1))
	_, err := f.svc.CheckAndApplyLateFees(context.Background(), nil)
	require.NoError(t, err)
	stored, _ := f.store.Transaction(tx.ID)
	require.True(t, stored.LateFee.Equal(decimal.NewFromInt(10)))
}

func TestUpcomingDueDates(t *testing.T) {
	f := newFixture(t, time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC), Config{})
	est := decimal.RequireFromString("90")
	req := f.store.SeedMaintenanceRequest(ledger.MaintenanceRequest{CondominiumID: 1, UserID: 5, Title: "Elevator", EstimatedCost: &est})
	reqID := req.ID

	today := f.pending(1, "10", day(2024, 6, 10))
	inThree := f.store.SeedTransaction(ledger.Transaction{
		CondominiumID: 1, Type: ledger.TypeExpense, Category: ledger.CategoryMaintenance, Description: "Elevator fix",
		Amount: est, DueDate: day(2024, 6, 13), Status: ledger.StatusPending, MaintenanceRequestID: &reqID,
	})
	f.pending(1, "10", day(2024, 6, 14))
	f.pending(1, "10", day(2024, 6, 9))

	res, err := f.svc.CheckUpcomingDueDates(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Equal(t, 3, res.DaysAhead)
	require.Equal(t, 2, res.Processed)
	require.Len(t, res.Reminders, 2)
	require.Equal(t, today.ID, res.Reminders[0].TransactionID)
	require.Equal(t, 0, res.Reminders[0].DaysUntilDue)
	require.Equal(t, inThree.ID, res.Reminders[1].TransactionID)
	require.Equal(t, 3, res.Reminders[1].DaysUntilDue)
	require.Equal(t, "Elevator", res.Reminders[1].MaintenanceTitle)

	sent := f.sink.OfType(notify.TypeUpcomingDue)
	require.Len(t, sent, 2)
	require.Contains(t, sent[1].Message, "Elevator")

	res, err = f.svc.CheckUpcomingDueDates(context.Background(), nil, 5)
	require.NoError(t, err)
	require.Equal(t, 3, res.Processed)
}

func TestReconcilePaymentStatusWindowAndCap(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now, Config{ReconcileBatchSize: 5})
	for i := 0; i < 7; i++ {
		req := f.store.SeedMaintenanceRequest(ledger.MaintenanceRequest{CondominiumID: 1, UserID: 5, Title: "Job", PaymentStatus: ledger.PaymentPending})
		reqID := req.ID
		f.store.SeedTransaction(ledger.Transaction{
			CondominiumID: 1, Type: ledger.TypeExpense, Category: ledger.CategoryMaintenance,
			Amount: decimal.NewFromInt(10), DueDate: day(2024, 7, 1), Status: ledger.StatusPaid,
			MaintenanceRequestID: &reqID, UpdatedAt: now.Add(-time.Hour),
		})
	}
	oldReq := f.store.SeedMaintenanceRequest(ledger.MaintenanceRequest{CondominiumID: 1, UserID: 5, Title: "Old", PaymentStatus: ledger.PaymentPending})
	oldID := oldReq.ID
	f.store.SeedTransaction(ledger.Transaction{
		CondominiumID: 1, Type: ledger.TypeExpense, Category: ledger.CategoryMaintenance,
		Amount: decimal.NewFromInt(10), DueDate: day(2024, 6, 1), Status: ledger.StatusPaid,
		MaintenanceRequestID: &oldID, UpdatedAt: now.Add(-7 * time.Hour),
	})

	res, err := f.svc.ReconcilePaymentStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, res.Processed)
	require.Zero(t, res.Failed)

	stillPending, _ := f.store.MaintenanceRequest(oldID)
	require.Equal(t, ledger.PaymentPending, stillPending.PaymentStatus)
	require.Len(t, f.sink.OfType(notify.TypePaymentConfirmed), 5)
}

func TestEmergencyOverdueProcessesEachCondominium(t *testing.T) {
	f := newFixture(t, day(2024, 4, 1), Config{})
	counts := map[int64]int{1: 2, 2: 1, 3: 3}
	for condo, n := range counts {
		for i := 0; i < n; i++ {
			f.pending(condo, "100", day(2024, 3, 1))
		}
	}
	pauses := 0
	f.svc.sleep = func(d time.Duration) <-chan time.Time {
		pauses++
		require.Equal(t, DefaultEmergencyPause, d)
		// a transaction turning overdue mid-run is not part of the initial total
		f.pending(3, "5", day(2024, 3, 31))
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}

	res, err := f.svc.ProcessEmergencyOverdue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 6, res.Total)
	require.Equal(t, 3, res.Condominiums)
	require.Equal(t, 2, pauses)
	require.Equal(t, 2+1+3+2, res.Processed)
}

func TestEmergencyOverdueStopsWhenCancelled(t *testing.T) {
	f := newFixture(t, day(2024, 4, 1), Config{})
	f.pending(1, "100", day(2024, 3, 1))
	f.pending(2, "100", day(2024, 3, 1))
	ctx, cancel := context.WithCancel(context.Background())
	f.svc.sleep = func(time.Duration) <-chan time.Time {
		cancel()
		return make(chan time.Time)
	}

	res, err := f.svc.ProcessEmergencyOverdue(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, res.Total)
	require.Equal(t, 1, res.Processed)
}

func TestCheckOverdueUnitPayments(t *testing.T) {
	f := newFixture(t, day(2024, 1, 11), Config{})
	pending := f.store.SeedUnitPayment(ledger.UnitPayment{
		CondominiumID: 1, UnitID: 101, ReferenceMonth: 12, ReferenceYear: 2023,
		Amount: decimal.RequireFromString("100"), DueDate: day(2024, 1, 1), Status: ledger.UnitPaymentPending,
	})
	partial := f.store.SeedUnitPayment(ledger.UnitPayment{
		CondominiumID: 1, UnitID: 102, ReferenceMonth: 12, ReferenceYear: 2023,
		Amount: decimal.RequireFromString("100"), PaidAmount: decimal.RequireFromString("50"),
		DueDate: day(2024, 1, 1), Status: ledger.UnitPaymentPartial,
	})

	res, err := f.svc.CheckOverdueUnitPayments(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, res.Processed)

	p1, _ := f.store.UnitPayment(pending.ID)
	require.Equal(t, ledger.UnitPaymentOverdue, p1.Status)
	require.True(t, p1.TotalAmount.Equal(decimal.RequireFromString("103")))

	p2, _ := f.store.UnitPayment(partial.ID)
	require.Equal(t, ledger.UnitPaymentPartial, p2.Status)
	require.True(t, p2.LateFee.Equal(decimal.RequireFromString("1.5")))
}
