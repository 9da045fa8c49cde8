package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/ledger/ledgertest"
)

func validTransaction() ledger.Transaction {
	return ledger.Transaction{
		CondominiumID: 1,
		Type:          ledger.TypeIncome,
		Category:      ledger.CategoryCondominiumFee,
		Amount:        decimal.RequireFromString("500.00"),
		DueDate:       time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Status:        ledger.StatusPending,
	}
}

func TestValidateTransaction(t *testing.T) {
	tx := validTransaction()
	require.NoError(t, ledger.ValidateTransaction(&tx))

	cases := map[string]struct {
		mutate func(*ledger.Transaction)
		field  string
	}{
		"zero amount":       {func(tx *ledger.Transaction) { tx.Amount = decimal.Zero }, "amount"},
		"missing condo":     {func(tx *ledger.Transaction) { tx.CondominiumID = 0 }, "condominium_id"},
		"unknown status":    {func(tx *ledger.Transaction) { tx.Status = "lost" }, "status"},
		"negative late fee": {func(tx *ledger.Transaction) { tx.LateFee = decimal.NewFromInt(-1) }, "late_fee"},
		"discount too big":  {func(tx *ledger.Transaction) { tx.Discount = decimal.NewFromInt(600) }, "discount"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			tx := validTransaction()
			tc.mutate(&tx)
			err := ledger.ValidateTransaction(&tx)
			require.ErrorIs(t, err, ledger.ErrValidation)
			var verr *ledger.ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestValidateMixedPayment(t *testing.T) {
	tx := validTransaction()
	tx.MixedPayment = true
	tx.RecomputeTotal()
	tx.PixAmount = decimal.NewFromInt(300)
	tx.CashAmount = decimal.NewFromInt(200)
	require.NoError(t, tx.ValidateMixedPayment())

	tx.CashAmount = decimal.NewFromInt(150)
	err := tx.ValidateMixedPayment()
	require.ErrorIs(t, err, ledger.ErrValidation)
	require.Contains(t, err.Error(), "500.00")
}

func TestMemoryStoreRejectsDuplicateLink(t *testing.T) {
	store := ledgertest.NewMemoryStore()
	ctx := context.Background()
	reqID := int64(7)

	first := validTransaction()
	first.Type = ledger.TypeExpense
	first.Category = ledger.CategoryMaintenance
	first.MaintenanceRequestID = &reqID
	require.NoError(t, store.CreateTransaction(ctx, &first))

	second := first
	second.ID = 0
	err := store.CreateTransaction(ctx, &second)
	require.ErrorIs(t, err, ledger.ErrDuplicateLink)
	var dup *ledger.DuplicateLinkError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, first.ID, dup.TransactionID)

	linked, err := store.FindTransactionByMaintenanceRequest(ctx, reqID)
	require.NoError(t, err)
	require.NotNil(t, linked)
	require.Equal(t, first.ID, linked.ID)
}

func TestMemoryStoreWithTxRollsBack(t *testing.T) {
	store := ledgertest.NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context, s ledger.Store) error {
		tx := validTransaction()
		if err := s.CreateTransaction(ctx, &tx); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, store.TransactionCount())

	_, err = store.GetTransaction(ctx, 1)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}
