// Package ledgertest provides an in-memory ledger.Store for tests.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/condohub/condohub/internal/ledger"
)

// MemoryStore is a goroutine-safe ledger.Store. WithTx snapshots state and
// restores it when fn returns an error.
type MemoryStore struct {
	mu           sync.Mutex
	transactions map[int64]ledger.Transaction
	requests     map[int64]ledger.MaintenanceRequest
	unitPayments map[int64]ledger.UnitPayment
	nextID       int64

	// Now stamps CreatedAt/UpdatedAt. Defaults to time.Now.
	Now func() time.Time
	// FailTransactionUpdate makes UpdateTransaction fail for the given ids.
	FailTransactionUpdate map[int64]error
	// ListCalls counts ListTransactions invocations.
	ListCalls int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions:          make(map[int64]ledger.Transaction),
		requests:              make(map[int64]ledger.MaintenanceRequest),
		unitPayments:          make(map[int64]ledger.UnitPayment),
		FailTransactionUpdate: make(map[int64]error),
	}
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SeedTransaction stores t as-is apart from the derived total. A zero id is assigned.
func (s *MemoryStore) SeedTransaction(t ledger.Transaction) ledger.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		s.nextID++
		t.ID = s.nextID
	} else if t.ID > s.nextID {
		s.nextID = t.ID
	}
	t.RecomputeTotal()
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = s.now()
	}
	s.transactions[t.ID] = t
	return t
}

// SeedMaintenanceRequest stores m as-is. A zero id is assigned.
func (s *MemoryStore) SeedMaintenanceRequest(m ledger.MaintenanceRequest) ledger.MaintenanceRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		s.nextID++
		m.ID = s.nextID
	} else if m.ID > s.nextID {
		s.nextID = m.ID
	}
	s.requests[m.ID] = m
	return m
}

// SeedUnitPayment stores p as-is apart from the derived total.
func (s *MemoryStore) SeedUnitPayment(p ledger.UnitPayment) ledger.UnitPayment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.nextID++
		p.ID = s.nextID
	}
	p.RecomputeTotal()
	s.unitPayments[p.ID] = p
	return p
}

// Transaction returns the stored transaction regardless of filters.
func (s *MemoryStore) Transaction(id int64) (ledger.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	return t, ok
}

// MaintenanceRequest returns the stored request.
func (s *MemoryStore) MaintenanceRequest(id int64) (ledger.MaintenanceRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.requests[id]
	return m, ok
}

// UnitPayment returns the stored unit payment.
func (s *MemoryStore) UnitPayment(id int64) (ledger.UnitPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.unitPayments[id]
	return p, ok
}

// TransactionCount returns how many transactions are stored.
func (s *MemoryStore) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *MemoryStore) GetTransaction(ctx context.Context, id int64) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return ledger.Transaction{}, &ledger.NotFoundError{Entity: "transaction", ID: id}
	}
	return t, nil
}

func (s *MemoryStore) FindTransactionByMaintenanceRequest(ctx context.Context, requestID int64) (*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.sortedTransactionIDs() {
		t := s.transactions[id]
		if t.MaintenanceRequestID != nil && *t.MaintenanceRequestID == requestID {
			return &t, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	t.RecomputeTotal()
	if err := ledger.ValidateTransaction(t); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUniqueLink(t); err != nil {
		return err
	}
	s.nextID++
	t.ID = s.nextID
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt
	s.transactions[t.ID] = *t
	return nil
}

func (s *MemoryStore) UpdateTransaction(ctx context.Context, t *ledger.Transaction) error {
	t.RecomputeTotal()
	if err := ledger.ValidateTransaction(t); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailTransactionUpdate[t.ID]; err != nil {
		return err
	}
	if _, ok := s.transactions[t.ID]; !ok {
		return &ledger.NotFoundError{Entity: "transaction", ID: t.ID}
	}
	if err := s.checkUniqueLink(t); err != nil {
		return err
	}
	t.UpdatedAt = s.now()
	s.transactions[t.ID] = *t
	return nil
}

func (s *MemoryStore) checkUniqueLink(t *ledger.Transaction) error {
	if t.MaintenanceRequestID == nil {
		return nil
	}
	for id, other := range s.transactions {
		if id == t.ID || other.MaintenanceRequestID == nil {
			continue
		}
		if *other.MaintenanceRequestID == *t.MaintenanceRequestID {
			return &ledger.DuplicateLinkError{MaintenanceRequestID: *t.MaintenanceRequestID, TransactionID: id}
		}
	}
	return nil
}

func (s *MemoryStore) DeleteTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return &ledger.NotFoundError{Entity: "transaction", ID: id}
	}
	delete(s.transactions, id)
	return nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListCalls++
	out := s.filterTransactions(filter)
	if filter.OrderByDueDate {
		sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountTransactions(ctx context.Context, filter ledger.TransactionFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filterTransactions(filter)), nil
}

func (s *MemoryStore) ListCondominiumIDs(ctx context.Context, filter ledger.TransactionFilter) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int64]bool)
	var ids []int64
	for _, t := range s.filterTransactions(filter) {
		if !seen[t.CondominiumID] {
			seen[t.CondominiumID] = true
			ids = append(ids, t.CondominiumID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) filterTransactions(f ledger.TransactionFilter) []ledger.Transaction {
	var out []ledger.Transaction
	for _, id := range s.sortedTransactionIDs() {
		t := s.transactions[id]
		if f.CondominiumID != nil && t.CondominiumID != *f.CondominiumID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.DueBefore != nil && !t.DueDate.Before(*f.DueBefore) {
			continue
		}
		if f.DueFrom != nil && t.DueDate.Before(*f.DueFrom) {
			continue
		}
		if f.DueTo != nil && t.DueDate.After(*f.DueTo) {
			continue
		}
		if f.UpdatedSince != nil && t.UpdatedAt.Before(*f.UpdatedSince) {
			continue
		}
		if f.LinkedToMaintenance && t.MaintenanceRequestID == nil {
			continue
		}
		if f.AutoGenerated != nil && t.AutoGenerated != *f.AutoGenerated {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *MemoryStore) sortedTransactionIDs() []int64 {
	ids := make([]int64, 0, len(s.transactions))
	for id := range s.transactions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func containsStatus(statuses []ledger.TransactionStatus, st ledger.TransactionStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s *MemoryStore) GetMaintenanceRequest(ctx context.Context, id int64) (ledger.MaintenanceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.requests[id]
	if !ok {
		return ledger.MaintenanceRequest{}, &ledger.NotFoundError{Entity: "maintenance request", ID: id}
	}
	return m, nil
}

func (s *MemoryStore) UpdateMaintenanceRequest(ctx context.Context, m *ledger.MaintenanceRequest) error {
	if err := ledger.ValidateMaintenanceRequest(m); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[m.ID]; !ok {
		return &ledger.NotFoundError{Entity: "maintenance request", ID: m.ID}
	}
	m.UpdatedAt = s.now()
	s.requests[m.ID] = *m
	return nil
}

func (s *MemoryStore) ListUnitPayments(ctx context.Context, filter ledger.UnitPaymentFilter) ([]ledger.UnitPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.UnitPayment
	for _, p := range s.unitPayments {
		if filter.CondominiumID != nil && p.CondominiumID != *filter.CondominiumID {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, st := range filter.Statuses {
				if st == p.Status {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if filter.DueBefore != nil && !p.DueDate.Before(*filter.DueBefore) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateUnitPayment(ctx context.Context, p *ledger.UnitPayment) error {
	p.RecomputeTotal()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.unitPayments[p.ID]; !ok {
		return &ledger.NotFoundError{Entity: "unit payment", ID: p.ID}
	}
	p.UpdatedAt = s.now()
	s.unitPayments[p.ID] = *p
	return nil
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, store ledger.Store) error) error {
	s.mu.Lock()
	txSnap := cloneMap(s.transactions)
	reqSnap := cloneMap(s.requests)
	upSnap := cloneMap(s.unitPayments)
	nextID := s.nextID
	s.mu.Unlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.transactions = txSnap
		s.requests = reqSnap
		s.unitPayments = upSnap
		s.nextID = nextID
		s.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ ledger.Store = (*MemoryStore)(nil)
