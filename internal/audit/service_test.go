package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/condohub/condohub/internal/ledger"
	"github.com/condohub/condohub/internal/platform/clock"
)

type stubRepo struct {
	inserted     []ledger.AuditLog
	rows         []ledger.AuditLog
	lastList     ListParams
	deleteCutoff time.Time
	deleteAction []string
	deleted      int64
}

func (s *stubRepo) Insert(ctx context.Context, entry ledger.AuditLog) error {
	s.inserted = append(s.inserted, entry)
	return nil
}

func (s *stubRepo) List(ctx context.Context, params ListParams) ([]ledger.AuditLog, error) {
	s.lastList = params
	return s.rows, nil
}

func (s *stubRepo) DeleteBefore(ctx context.Context, cutoff time.Time, actions []string) (int64, error) {
	s.deleteCutoff = cutoff
	s.deleteAction = actions
	return s.deleted, nil
}

func TestRecordStampsCreatedAt(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &stubRepo{}
	svc := NewService(repo, clock.NewFixed(now), nil)

	require.NoError(t, svc.Record(context.Background(), ledger.AuditLog{Action: ActionApplyLateFee, Resource: "financial_transaction", ResourceID: "9", Success: true}))
	require.Len(t, repo.inserted, 1)
	require.Equal(t, now, repo.inserted[0].CreatedAt)

	require.Error(t, svc.Record(context.Background(), ledger.AuditLog{Resource: "x"}))
}

func TestCleanupUsesMonthCutoffAndAutomatedActions(t *testing.T) {
	now := time.Date(2024, 8, 31, 2, 0, 0, 0, time.UTC)
	repo := &stubRepo{deleted: 12}
	svc := NewService(repo, clock.NewFixed(now), nil)

	removed, err := svc.Cleanup(context.Background(), 6)
	require.NoError(t, err)
	require.EqualValues(t, 12, removed)
	require.Equal(t, now.AddDate(0, -6, 0), repo.deleteCutoff)
	require.ElementsMatch(t, AutomatedActions, repo.deleteAction)
	require.NotContains(t, repo.deleteAction, ActionApproveRequest)

	_, err = svc.Cleanup(context.Background(), 0)
	require.ErrorIs(t, err, ledger.ErrValidation)
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{rows: []ledger.AuditLog{{ID: 3}, {ID: 2}, {ID: 1}}}
	svc := NewService(repo, nil, nil)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
	require.Equal(t, 3, result.Paging.NextPage)
	require.Equal(t, 3, repo.lastList.Limit)
	require.Equal(t, 2, repo.lastList.Offset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil)
	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 50, result.Paging.PageSize)
	require.Equal(t, 51, repo.lastList.Limit)
	require.False(t, result.Paging.HasNext)
}

func TestWriteCSV(t *testing.T) {
	user := int64(7)
	data, err := WriteCSV([]ledger.AuditLog{{
		Action:     ActionAutoCreateExpense,
		Resource:   "financial_transaction",
		ResourceID: "42",
		UserID:     &user,
		Success:    true,
		NewValues:  map[string]any{"amount": "250.00"},
		CreatedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, "2024-01-02T03:04:05Z", records[1][0])
	require.Equal(t, "7", records[1][4])
	require.Equal(t, "", records[1][5])
	require.Equal(t, `{"amount":"250.00"}`, records[1][8])
}
