package settlement

import (
	"context"
	"time"

	"github.com/constructora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdvanceFilter defines filtering options for advance queries
type AdvanceFilter struct {
	shared.Filter
	ClientID  *uuid.UUID
	ProjectID *uuid.UUID
	Status    *AdvanceStatus
	Category  *AdvanceCategory
	FromDate  *time.Time // Received-date range start
	ToDate    *time.Time // Received-date range end
}

// AdvanceRepository defines the persistence interface for advances
type AdvanceRepository interface {
	// FindByID finds an advance by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Advance, error)

	// FindByAdvanceNumber finds an advance by its unique number
	FindByAdvanceNumber(ctx context.Context, advanceNumber string) (*Advance, error)

	// FindAll finds advances with filtering
	FindAll(ctx context.Context, filter AdvanceFilter) ([]Advance, error)

	// FindByProject finds advances for a project
	FindByProject(ctx context.Context, projectID uuid.UUID, filter AdvanceFilter) ([]Advance, error)

	// FindPendingByProject finds advances with available balance for a project
	FindPendingByProject(ctx context.Context, projectID uuid.UUID) ([]Advance, error)

	// Save creates or updates an advance
	Save(ctx context.Context, advance *Advance) error

	// SaveWithLock saves with optimistic locking (version check); a
	// stale version surfaces as shared.ErrConcurrencyConflict
	SaveWithLock(ctx context.Context, advance *Advance) error

	// Count counts advances matching the filter
	Count(ctx context.Context, filter AdvanceFilter) (int64, error)

	// SumAvailableByProject sums the available balance across a project's advances
	SumAvailableByProject(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error)

	// SumAvailableByClient sums the available balance across a client's advances
	SumAvailableByClient(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error)

	// ExistsByAdvanceNumber checks if an advance number is already taken
	ExistsByAdvanceNumber(ctx context.Context, advanceNumber string) (bool, error)

	// GenerateAdvanceNumber generates the next unique advance number
	GenerateAdvanceNumber(ctx context.Context) (string, error)
}

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	ClientID  *uuid.UUID
	ProjectID *uuid.UUID
	Status    *InvoiceStatus
	Type      *InvoiceType
	FromDate  *time.Time // Issue-date range start
	ToDate    *time.Time // Issue-date range end
	DueBefore *time.Time // Due date strictly before
	Overdue   *bool
}

// InvoiceRepository defines the persistence interface for invoices
type InvoiceRepository interface {
	// FindByID finds an invoice by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByInvoiceNumber finds an invoice by its unique number
	FindByInvoiceNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)

	// FindAll finds invoices with filtering
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)

	// FindByProject finds invoices for a project
	FindByProject(ctx context.Context, projectID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// FindDueForRecompute finds unsettled invoices whose due date passed
	// before the given time (the overdue-marking batch input)
	FindDueForRecompute(ctx context.Context, asOf time.Time) ([]Invoice, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking (version check); a
	// stale version surfaces as shared.ErrConcurrencyConflict
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// Count counts invoices matching the filter
	Count(ctx context.Context, filter InvoiceFilter) (int64, error)

	// SumPendingByProject sums pending balances across a project's invoices
	SumPendingByProject(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error)

	// SumPendingByClient sums pending balances across a client's invoices
	SumPendingByClient(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error)

	// ExistsByInvoiceNumber checks if an invoice number is already taken
	ExistsByInvoiceNumber(ctx context.Context, invoiceNumber string) (bool, error)

	// GenerateInvoiceNumber generates the next unique invoice number
	GenerateInvoiceNumber(ctx context.Context) (string, error)
}

// AllocationRepository defines the persistence interface for allocation
// records. The (advance, invoice) pair is unique; the engine looks an
// existing record up before deciding to create or augment.
type AllocationRepository interface {
	// FindByID finds an allocation by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Allocation, error)

	// FindByAdvanceAndInvoice finds the unique allocation for a pair,
	// or shared.ErrNotFound
	FindByAdvanceAndInvoice(ctx context.Context, advanceID, invoiceID uuid.UUID) (*Allocation, error)

	// FindByAdvance lists allocations made from an advance
	FindByAdvance(ctx context.Context, advanceID uuid.UUID) ([]Allocation, error)

	// FindByInvoice lists allocations applied to an invoice
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Allocation, error)

	// Save creates or updates an allocation record
	Save(ctx context.Context, allocation *Allocation) error

	// Delete removes an allocation record (reversal path)
	Delete(ctx context.Context, id uuid.UUID) error

	// SumByAdvance sums the allocated amounts from an advance
	SumByAdvance(ctx context.Context, advanceID uuid.UUID) (decimal.Decimal, error)
}

// Repositories bundles the settlement repositories bound to one
// transaction connection
type Repositories struct {
	Advances    AdvanceRepository
	Invoices    InvoiceRepository
	Allocations AllocationRepository
}

// TxManager runs a function with repositories bound to a single
// database transaction. The transaction spans the advance, the invoice
// and the allocation record so no operation can leave them in an
// inconsistent pairwise state; an error rolls everything back.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
