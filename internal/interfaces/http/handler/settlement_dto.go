package handler

import (
	"time"

	"github.com/constructora/backend/internal/domain/settlement"
)

// Monetary amounts travel as fixed-point strings on the wire, both
// ways. Binding them as floats would round client values before the
// domain ever sees them.

// ===================== Request DTOs =====================

// CreateAdvanceRequest is the request body for recording an advance
type CreateAdvanceRequest struct {
	AdvanceNumber    string `json:"advance_number" binding:"omitempty,max=50"`
	ClientID         string `json:"client_id" binding:"required,uuid"`
	ClientName       string `json:"client_name" binding:"required,min=1,max=200"`
	ProjectID        string `json:"project_id" binding:"required,uuid"`
	TotalAmount      string `json:"total_amount" binding:"required,decimal"`
	Category         string `json:"category" binding:"required"`
	ReceivedDate     string `json:"received_date" binding:"required"`
	ExpirationDate   string `json:"expiration_date"`
	PaymentMethod    string `json:"payment_method" binding:"max=30"`
	PaymentReference string `json:"payment_reference" binding:"max=100"`
	BankOrigin       string `json:"bank_origin" binding:"max=100"`
	Remark           string `json:"remark" binding:"max=500"`
}

// CreateInvoiceRequest is the request body for creating an invoice
type CreateInvoiceRequest struct {
	InvoiceNumber      string `json:"invoice_number" binding:"omitempty,max=50"`
	ProjectID          string `json:"project_id" binding:"required,uuid"`
	ClientID           string `json:"client_id" binding:"required,uuid"`
	Type               string `json:"type" binding:"required"`
	Subtotal           string `json:"subtotal" binding:"required,decimal"`
	TaxAmount          string `json:"tax_amount" binding:"omitempty,decimal"`
	TotalOverride      string `json:"total_override" binding:"omitempty,decimal"`
	IssueDate          string `json:"issue_date" binding:"required"`
	DueDate            string `json:"due_date"`
	ServiceDescription string `json:"service_description" binding:"max=1000"`
	ProgressPercent    string `json:"progress_percent" binding:"omitempty,decimal"`
	Remark             string `json:"remark" binding:"max=500"`
}

// AllocateToInvoiceRequest is the request body for applying an advance
// against an invoice
type AllocateToInvoiceRequest struct {
	InvoiceID      string `json:"invoice_id" binding:"required,uuid"`
	Amount         string `json:"amount" binding:"required,decimal"`
	IdempotencyKey string `json:"idempotency_key" binding:"max=100"`
}

// AllocateToProjectRequest is the request body for applying an advance
// directly to project cost
type AllocateToProjectRequest struct {
	Amount         string `json:"amount" binding:"required,decimal"`
	IdempotencyKey string `json:"idempotency_key" binding:"max=100"`
}

// RegisterPaymentRequest is the request body for recording a direct
// client payment on an invoice
type RegisterPaymentRequest struct {
	Amount    string `json:"amount" binding:"required,decimal"`
	Method    string `json:"method" binding:"max=30"`
	Reference string `json:"reference" binding:"max=100"`
}

// ReasonRequest is the request body for cancel, refund and reversal
// operations
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// ListAdvancesRequest holds the advance listing query parameters
type ListAdvancesRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search   string `form:"search"`

	ClientID  string `form:"client_id" binding:"omitempty,uuid"`
	ProjectID string `form:"project_id" binding:"omitempty,uuid"`
	Status    string `form:"status"`
	Category  string `form:"category"`
	FromDate  string `form:"from_date"`
	ToDate    string `form:"to_date"`
}

// ListInvoicesRequest holds the invoice listing query parameters
type ListInvoicesRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search   string `form:"search"`

	ClientID  string `form:"client_id" binding:"omitempty,uuid"`
	ProjectID string `form:"project_id" binding:"omitempty,uuid"`
	Status    string `form:"status"`
	Type      string `form:"type"`
	FromDate  string `form:"from_date"`
	ToDate    string `form:"to_date"`
	Overdue   *bool  `form:"overdue"`
}

// ===================== Response DTOs =====================

// AdvanceResponse represents an advance in API responses
type AdvanceResponse struct {
	ID                  string     `json:"id"`
	AdvanceNumber       string     `json:"advance_number"`
	ClientID            string     `json:"client_id"`
	ClientName          string     `json:"client_name"`
	ProjectID           string     `json:"project_id"`
	TotalAmount         string     `json:"total_amount"`
	AllocatedToInvoices string     `json:"allocated_to_invoices"`
	AllocatedToProject  string     `json:"allocated_to_project"`
	AvailableAmount     string     `json:"available_amount"`
	Category            string     `json:"category"`
	Status              string     `json:"status"`
	ReceivedDate        time.Time  `json:"received_date"`
	ExpirationDate      *time.Time `json:"expiration_date,omitempty"`
	FullyAllocatedAt    *time.Time `json:"fully_allocated_at,omitempty"`
	AppliedToProject    bool       `json:"applied_to_project"`
	PaymentMethod       string     `json:"payment_method,omitempty"`
	PaymentReference    string     `json:"payment_reference,omitempty"`
	BankOrigin          string     `json:"bank_origin,omitempty"`
	Remark              string     `json:"remark,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CancelReason        string     `json:"cancel_reason,omitempty"`
	RefundedAt          *time.Time `json:"refunded_at,omitempty"`
	RefundReason        string     `json:"refund_reason,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	Version             int        `json:"version"`
}

func toAdvanceResponse(a *settlement.Advance) AdvanceResponse {
	return AdvanceResponse{
		ID:                  a.ID.String(),
		AdvanceNumber:       a.AdvanceNumber,
		ClientID:            a.ClientID.String(),
		ClientName:          a.ClientName,
		ProjectID:           a.ProjectID.String(),
		TotalAmount:         a.TotalAmount.StringFixed(2),
		AllocatedToInvoices: a.AllocatedToInvoices.StringFixed(2),
		AllocatedToProject:  a.AllocatedToProject.StringFixed(2),
		AvailableAmount:     a.AvailableAmount.StringFixed(2),
		Category:            a.Category.String(),
		Status:              a.Status.String(),
		ReceivedDate:        a.ReceivedDate,
		ExpirationDate:      a.ExpirationDate,
		FullyAllocatedAt:    a.FullyAllocatedAt,
		AppliedToProject:    a.AppliedToProject,
		PaymentMethod:       a.PaymentMethod,
		PaymentReference:    a.PaymentReference,
		BankOrigin:          a.BankOrigin,
		Remark:              a.Remark,
		CancelledAt:         a.CancelledAt,
		CancelReason:        a.CancelReason,
		RefundedAt:          a.RefundedAt,
		RefundReason:        a.RefundReason,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
		Version:             a.Version,
	}
}

func toAdvanceResponses(advances []settlement.Advance) []AdvanceResponse {
	out := make([]AdvanceResponse, len(advances))
	for i := range advances {
		out[i] = toAdvanceResponse(&advances[i])
	}
	return out
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                 string     `json:"id"`
	InvoiceNumber      string     `json:"invoice_number"`
	ProjectID          string     `json:"project_id"`
	ClientID           string     `json:"client_id"`
	Type               string     `json:"type"`
	Subtotal           string     `json:"subtotal"`
	TaxAmount          string     `json:"tax_amount"`
	TotalAmount        string     `json:"total_amount"`
	PaidAmount         string     `json:"paid_amount"`
	AdvanceAmount      string     `json:"advance_amount"`
	PendingAmount      string     `json:"pending_amount"`
	IssueDate          time.Time  `json:"issue_date"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`
	Status             string     `json:"status"`
	ServiceDescription string     `json:"service_description,omitempty"`
	ProgressPercent    *string    `json:"progress_percent,omitempty"`
	PaymentMethod      string     `json:"payment_method,omitempty"`
	PaymentReference   string     `json:"payment_reference,omitempty"`
	Remark             string     `json:"remark,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelReason       string     `json:"cancel_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Version            int        `json:"version"`
}

func toInvoiceResponse(inv *settlement.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:                 inv.ID.String(),
		InvoiceNumber:      inv.InvoiceNumber,
		ProjectID:          inv.ProjectID.String(),
		ClientID:           inv.ClientID.String(),
		Type:               inv.Type.String(),
		Subtotal:           inv.Subtotal.StringFixed(2),
		TaxAmount:          inv.TaxAmount.StringFixed(2),
		TotalAmount:        inv.TotalAmount.StringFixed(2),
		PaidAmount:         inv.PaidAmount.StringFixed(2),
		AdvanceAmount:      inv.AdvanceAmount.StringFixed(2),
		PendingAmount:      inv.PendingAmount.StringFixed(2),
		IssueDate:          inv.IssueDate,
		DueDate:            inv.DueDate,
		PaidAt:             inv.PaidAt,
		Status:             inv.Status.String(),
		ServiceDescription: inv.ServiceDescription,
		PaymentMethod:      inv.PaymentMethod,
		PaymentReference:   inv.PaymentReference,
		Remark:             inv.Remark,
		CancelledAt:        inv.CancelledAt,
		CancelReason:       inv.CancelReason,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
		Version:            inv.Version,
	}
	if inv.ProgressPercent != nil {
		p := inv.ProgressPercent.StringFixed(2)
		resp.ProgressPercent = &p
	}
	return resp
}

func toInvoiceResponses(invoices []settlement.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		out[i] = toInvoiceResponse(&invoices[i])
	}
	return out
}

// AllocationResponse represents an allocation in API responses
type AllocationResponse struct {
	ID        string    `json:"id"`
	AdvanceID string    `json:"advance_id"`
	InvoiceID string    `json:"invoice_id"`
	Amount    string    `json:"amount"`
	AppliedAt time.Time `json:"applied_at"`
	AppliedBy *string   `json:"applied_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toAllocationResponse(al *settlement.Allocation) AllocationResponse {
	resp := AllocationResponse{
		ID:        al.ID.String(),
		AdvanceID: al.AdvanceID.String(),
		InvoiceID: al.InvoiceID.String(),
		Amount:    al.Amount.StringFixed(2),
		AppliedAt: al.AppliedAt,
		CreatedAt: al.CreatedAt,
	}
	if al.AppliedBy != nil {
		by := al.AppliedBy.String()
		resp.AppliedBy = &by
	}
	return resp
}

func toAllocationResponses(allocations []settlement.Allocation) []AllocationResponse {
	out := make([]AllocationResponse, len(allocations))
	for i := range allocations {
		out[i] = toAllocationResponse(&allocations[i])
	}
	return out
}
