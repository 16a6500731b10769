package settlement

import (
	"context"
	"time"

	"github.com/constructora/backend/internal/domain/settlement"
	"github.com/constructora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory fakes for the settlement repositories. Lock conflicts are
// simulated by setting conflictOn for the aggregate ID.

type fakeAdvanceRepo struct {
	items      map[uuid.UUID]*settlement.Advance
	conflictOn map[uuid.UUID]bool
	saveCalls  int
}

func newFakeAdvanceRepo() *fakeAdvanceRepo {
	return &fakeAdvanceRepo{
		items:      make(map[uuid.UUID]*settlement.Advance),
		conflictOn: make(map[uuid.UUID]bool),
	}
}

func (r *fakeAdvanceRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Advance, error) {
	a, ok := r.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return a, nil
}

func (r *fakeAdvanceRepo) FindByAdvanceNumber(_ context.Context, number string) (*settlement.Advance, error) {
	for _, a := range r.items {
		if a.AdvanceNumber == number {
			return a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeAdvanceRepo) FindAll(_ context.Context, _ settlement.AdvanceFilter) ([]settlement.Advance, error) {
	out := make([]settlement.Advance, 0, len(r.items))
	for _, a := range r.items {
		out = append(out, *a)
	}
	return out, nil
}

func (r *fakeAdvanceRepo) FindByProject(_ context.Context, projectID uuid.UUID, _ settlement.AdvanceFilter) ([]settlement.Advance, error) {
	var out []settlement.Advance
	for _, a := range r.items {
		if a.ProjectID == projectID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAdvanceRepo) FindPendingByProject(_ context.Context, projectID uuid.UUID) ([]settlement.Advance, error) {
	var out []settlement.Advance
	for _, a := range r.items {
		if a.ProjectID == projectID && a.Status == settlement.AdvanceStatusPending {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAdvanceRepo) Save(_ context.Context, a *settlement.Advance) error {
	r.saveCalls++
	r.items[a.ID] = a
	return nil
}

func (r *fakeAdvanceRepo) SaveWithLock(_ context.Context, a *settlement.Advance) error {
	if r.conflictOn[a.ID] {
		return shared.ErrConcurrencyConflict
	}
	r.saveCalls++
	r.items[a.ID] = a
	return nil
}

func (r *fakeAdvanceRepo) Count(_ context.Context, _ settlement.AdvanceFilter) (int64, error) {
	return int64(len(r.items)), nil
}

func (r *fakeAdvanceRepo) SumAvailableByProject(_ context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, a := range r.items {
		if a.ProjectID == projectID {
			sum = sum.Add(a.AvailableAmount)
		}
	}
	return sum, nil
}

func (r *fakeAdvanceRepo) SumAvailableByClient(_ context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, a := range r.items {
		if a.ClientID == clientID {
			sum = sum.Add(a.AvailableAmount)
		}
	}
	return sum, nil
}

func (r *fakeAdvanceRepo) ExistsByAdvanceNumber(_ context.Context, number string) (bool, error) {
	for _, a := range r.items {
		if a.AdvanceNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAdvanceRepo) GenerateAdvanceNumber(_ context.Context) (string, error) {
	return "ANT-2026-0001", nil
}

type fakeInvoiceRepo struct {
	items      map[uuid.UUID]*settlement.Invoice
	conflictOn map[uuid.UUID]bool
	saveCalls  int
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{
		items:      make(map[uuid.UUID]*settlement.Invoice),
		conflictOn: make(map[uuid.UUID]bool),
	}
}

func (r *fakeInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Invoice, error) {
	inv, ok := r.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return inv, nil
}

func (r *fakeInvoiceRepo) FindByInvoiceNumber(_ context.Context, number string) (*settlement.Invoice, error) {
	for _, inv := range r.items {
		if inv.InvoiceNumber == number {
			return inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeInvoiceRepo) FindAll(_ context.Context, _ settlement.InvoiceFilter) ([]settlement.Invoice, error) {
	out := make([]settlement.Invoice, 0, len(r.items))
	for _, inv := range r.items {
		out = append(out, *inv)
	}
	return out, nil
}

func (r *fakeInvoiceRepo) FindByProject(_ context.Context, projectID uuid.UUID, _ settlement.InvoiceFilter) ([]settlement.Invoice, error) {
	var out []settlement.Invoice
	for _, inv := range r.items {
		if inv.ProjectID == projectID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) FindDueForRecompute(_ context.Context, asOf time.Time) ([]settlement.Invoice, error) {
	var out []settlement.Invoice
	for _, inv := range r.items {
		if inv.Status == settlement.InvoiceStatusPaid || inv.Status == settlement.InvoiceStatusCancelled {
			continue
		}
		if inv.DueDate != nil && asOf.After(*inv.DueDate) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) Save(_ context.Context, inv *settlement.Invoice) error {
	r.saveCalls++
	r.items[inv.ID] = inv
	return nil
}

func (r *fakeInvoiceRepo) SaveWithLock(_ context.Context, inv *settlement.Invoice) error {
	if r.conflictOn[inv.ID] {
		return shared.ErrConcurrencyConflict
	}
	r.saveCalls++
	r.items[inv.ID] = inv
	return nil
}

func (r *fakeInvoiceRepo) Count(_ context.Context, _ settlement.InvoiceFilter) (int64, error) {
	return int64(len(r.items)), nil
}

func (r *fakeInvoiceRepo) SumPendingByProject(_ context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, inv := range r.items {
		if inv.ProjectID == projectID {
			sum = sum.Add(inv.PendingAmount)
		}
	}
	return sum, nil
}

func (r *fakeInvoiceRepo) SumPendingByClient(_ context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, inv := range r.items {
		if inv.ClientID == clientID {
			sum = sum.Add(inv.PendingAmount)
		}
	}
	return sum, nil
}

func (r *fakeInvoiceRepo) ExistsByInvoiceNumber(_ context.Context, number string) (bool, error) {
	for _, inv := range r.items {
		if inv.InvoiceNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeInvoiceRepo) GenerateInvoiceNumber(_ context.Context) (string, error) {
	return "FAC-2026-0001", nil
}

type fakeAllocationRepo struct {
	items     map[uuid.UUID]*settlement.Allocation
	saveCalls int
}

func newFakeAllocationRepo() *fakeAllocationRepo {
	return &fakeAllocationRepo{items: make(map[uuid.UUID]*settlement.Allocation)}
}

func (r *fakeAllocationRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Allocation, error) {
	al, ok := r.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return al, nil
}

func (r *fakeAllocationRepo) FindByAdvanceAndInvoice(_ context.Context, advanceID, invoiceID uuid.UUID) (*settlement.Allocation, error) {
	for _, al := range r.items {
		if al.AdvanceID == advanceID && al.InvoiceID == invoiceID {
			return al, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeAllocationRepo) FindByAdvance(_ context.Context, advanceID uuid.UUID) ([]settlement.Allocation, error) {
	var out []settlement.Allocation
	for _, al := range r.items {
		if al.AdvanceID == advanceID {
			out = append(out, *al)
		}
	}
	return out, nil
}

func (r *fakeAllocationRepo) FindByInvoice(_ context.Context, invoiceID uuid.UUID) ([]settlement.Allocation, error) {
	var out []settlement.Allocation
	for _, al := range r.items {
		if al.InvoiceID == invoiceID {
			out = append(out, *al)
		}
	}
	return out, nil
}

func (r *fakeAllocationRepo) Save(_ context.Context, al *settlement.Allocation) error {
	r.saveCalls++
	r.items[al.ID] = al
	return nil
}

func (r *fakeAllocationRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeAllocationRepo) SumByAdvance(_ context.Context, advanceID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, al := range r.items {
		if al.AdvanceID == advanceID {
			sum = sum.Add(al.Amount)
		}
	}
	return sum, nil
}

// fakeTxManager runs the function directly against the fake repos.
// Rollback semantics are covered by the persistence-layer tests; here
// the error path only needs to propagate.
type fakeTxManager struct {
	repos settlement.Repositories
}

func (m *fakeTxManager) InTx(ctx context.Context, fn func(ctx context.Context, repos settlement.Repositories) error) error {
	return fn(ctx, m.repos)
}

type fakeIdempotencyStore struct {
	processed map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{processed: make(map[string]bool)}
}

func (s *fakeIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	if s.processed[key] {
		return false, nil
	}
	s.processed[key] = true
	return true, nil
}

func (s *fakeIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	return s.processed[key], nil
}

func (s *fakeIdempotencyStore) Close() error { return nil }
