package settlement

import (
	"context"
	"time"

	"github.com/constructora/backend/internal/domain/settlement"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QueryService is the read-only reporting facade over the ledger
// entities. It never mutates and never persists derived values; all
// figures are computed from the stored fields on each call.
type QueryService struct {
	advances    settlement.AdvanceRepository
	invoices    settlement.InvoiceRepository
	allocations settlement.AllocationRepository
	now         func() time.Time
}

// NewQueryService creates a new query service
func NewQueryService(
	advances settlement.AdvanceRepository,
	invoices settlement.InvoiceRepository,
	allocations settlement.AllocationRepository,
) *QueryService {
	return &QueryService{
		advances:    advances,
		invoices:    invoices,
		allocations: allocations,
		now:         time.Now,
	}
}

// GetAdvance returns one advance by ID
func (q *QueryService) GetAdvance(ctx context.Context, advanceID uuid.UUID) (*settlement.Advance, error) {
	return q.advances.FindByID(ctx, advanceID)
}

// GetInvoice returns one invoice by ID
func (q *QueryService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*settlement.Invoice, error) {
	return q.invoices.FindByID(ctx, invoiceID)
}

// AdvanceMetrics is the per-advance reporting view
type AdvanceMetrics struct {
	AdvanceID           uuid.UUID       `json:"advance_id"`
	AdvanceNumber       string          `json:"advance_number"`
	Status              string          `json:"status"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	AllocatedToInvoices decimal.Decimal `json:"allocated_to_invoices"`
	AllocatedToProject  decimal.Decimal `json:"allocated_to_project"`
	AvailableAmount     decimal.Decimal `json:"available_amount"`
	PercentApplied      decimal.Decimal `json:"percent_applied"`
	AllocationCount     int             `json:"allocation_count"`
}

// GetAdvanceMetrics returns the reporting view of one advance
func (q *QueryService) GetAdvanceMetrics(ctx context.Context, advanceID uuid.UUID) (*AdvanceMetrics, error) {
	advance, err := q.advances.FindByID(ctx, advanceID)
	if err != nil {
		return nil, err
	}
	allocations, err := q.allocations.FindByAdvance(ctx, advanceID)
	if err != nil {
		return nil, err
	}

	return &AdvanceMetrics{
		AdvanceID:           advance.ID,
		AdvanceNumber:       advance.AdvanceNumber,
		Status:              advance.Status.String(),
		TotalAmount:         advance.TotalAmount,
		AllocatedToInvoices: advance.AllocatedToInvoices,
		AllocatedToProject:  advance.AllocatedToProject,
		AvailableAmount:     advance.AvailableAmount,
		PercentApplied:      advance.PercentApplied(),
		AllocationCount:     len(allocations),
	}, nil
}

// InvoiceMetrics is the per-invoice reporting view
type InvoiceMetrics struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Status        string          `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	AdvanceAmount decimal.Decimal `json:"advance_amount"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	PercentPaid   decimal.Decimal `json:"percent_paid"`
	DaysToDue     *int            `json:"days_to_due,omitempty"` // Negative means overdue; absent without a due date
}

// GetInvoiceMetrics returns the reporting view of one invoice
func (q *QueryService) GetInvoiceMetrics(ctx context.Context, invoiceID uuid.UUID) (*InvoiceMetrics, error) {
	invoice, err := q.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	return &InvoiceMetrics{
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		Status:        invoice.Status.String(),
		TotalAmount:   invoice.TotalAmount,
		PaidAmount:    invoice.PaidAmount,
		AdvanceAmount: invoice.AdvanceAmount,
		PendingAmount: invoice.PendingAmount,
		PercentPaid:   invoice.PercentPaid(),
		DaysToDue:     invoice.DaysToDue(q.now()),
	}, nil
}

// ProjectSummary aggregates the settlement position of one project
type ProjectSummary struct {
	ProjectID        uuid.UUID       `json:"project_id"`
	AdvanceAvailable decimal.Decimal `json:"advance_available"` // Unallocated advance balance
	InvoicePending   decimal.Decimal `json:"invoice_pending"`   // Unsettled invoice balance
	AdvanceCount     int64           `json:"advance_count"`
	InvoiceCount     int64           `json:"invoice_count"`
}

// GetProjectSummary aggregates advances and invoices for a project
func (q *QueryService) GetProjectSummary(ctx context.Context, projectID uuid.UUID) (*ProjectSummary, error) {
	available, err := q.advances.SumAvailableByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	pending, err := q.invoices.SumPendingByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	advFilter := settlement.AdvanceFilter{}
	advFilter.Filters = map[string]interface{}{"project_id": projectID}
	advanceCount, err := q.advances.Count(ctx, advFilter)
	if err != nil {
		return nil, err
	}

	invFilter := settlement.InvoiceFilter{}
	invFilter.Filters = map[string]interface{}{"project_id": projectID}
	invoiceCount, err := q.invoices.Count(ctx, invFilter)
	if err != nil {
		return nil, err
	}

	return &ProjectSummary{
		ProjectID:        projectID,
		AdvanceAvailable: available,
		InvoicePending:   pending,
		AdvanceCount:     advanceCount,
		InvoiceCount:     invoiceCount,
	}, nil
}

// ClientSummary aggregates the settlement position of one client
type ClientSummary struct {
	ClientID         uuid.UUID       `json:"client_id"`
	AdvanceAvailable decimal.Decimal `json:"advance_available"`
	InvoicePending   decimal.Decimal `json:"invoice_pending"`
}

// GetClientSummary aggregates advances and invoices for a client
func (q *QueryService) GetClientSummary(ctx context.Context, clientID uuid.UUID) (*ClientSummary, error) {
	available, err := q.advances.SumAvailableByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	pending, err := q.invoices.SumPendingByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	return &ClientSummary{
		ClientID:         clientID,
		AdvanceAvailable: available,
		InvoicePending:   pending,
	}, nil
}

// ListAdvances returns a filtered, paginated advance listing
func (q *QueryService) ListAdvances(ctx context.Context, filter settlement.AdvanceFilter) ([]settlement.Advance, int64, error) {
	items, err := q.advances.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := q.advances.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListInvoices returns a filtered, paginated invoice listing
func (q *QueryService) ListInvoices(ctx context.Context, filter settlement.InvoiceFilter) ([]settlement.Invoice, int64, error) {
	items, err := q.invoices.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := q.invoices.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAllocationsByAdvance lists the allocations made from an advance
func (q *QueryService) ListAllocationsByAdvance(ctx context.Context, advanceID uuid.UUID) ([]settlement.Allocation, error) {
	return q.allocations.FindByAdvance(ctx, advanceID)
}

// ListAllocationsByInvoice lists the allocations applied to an invoice
func (q *QueryService) ListAllocationsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]settlement.Allocation, error) {
	return q.allocations.FindByInvoice(ctx, invoiceID)
}
