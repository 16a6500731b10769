package handler

import (
	"context"

	settlementapp "github.com/constructora/backend/internal/application/settlement"
	"github.com/constructora/backend/internal/domain/settlement"
	"github.com/constructora/backend/internal/domain/shared"
	"github.com/constructora/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceHandler handles invoice API endpoints
type InvoiceHandler struct {
	BaseHandler
	service *settlementapp.Service
	queries *settlementapp.QueryService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(service *settlementapp.Service, queries *settlementapp.QueryService) *InvoiceHandler {
	return &InvoiceHandler{
		service: service,
		queries: queries,
	}
}

// Create creates a new draft invoice
// POST /api/v1/invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	projectID, _ := uuid.Parse(req.ProjectID)
	clientID, _ := uuid.Parse(req.ClientID)

	invoiceType := settlement.InvoiceType(req.Type)
	if !invoiceType.IsValid() {
		h.Error(c, 400, dto.ErrCodeValidation, "Unknown invoice type: "+req.Type)
		return
	}

	subtotal, err := parseAmount(req.Subtotal)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	taxAmount := decimal.Zero
	if req.TaxAmount != "" {
		taxAmount, err = parseAmount(req.TaxAmount)
		if err != nil {
			h.HandleError(c, err)
			return
		}
	}
	totalOverride, err := parseOptionalAmount(req.TotalOverride)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	progressPercent, err := parseOptionalAmount(req.ProgressPercent)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	dueDate, err := parseOptionalDate(req.DueDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	invoice, err := h.service.CreateInvoice(c.Request.Context(), settlementapp.CreateInvoiceRequest{
		InvoiceNumber:      req.InvoiceNumber,
		ProjectID:          projectID,
		ClientID:           clientID,
		Type:               invoiceType,
		Subtotal:           subtotal,
		TaxAmount:          taxAmount,
		TotalOverride:      totalOverride,
		IssueDate:          issueDate,
		DueDate:            dueDate,
		ServiceDescription: req.ServiceDescription,
		ProgressPercent:    progressPercent,
		Remark:             req.Remark,
		ActorID:            getActorID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toInvoiceResponse(invoice))
}

// List returns a filtered, paginated invoice listing
// GET /api/v1/invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	var req ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	filter, err := buildInvoiceFilter(req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	invoices, total, err := h.queries.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toInvoiceResponses(invoices), total, filter.Page, filter.PageSize)
}

// Get returns one invoice
// GET /api/v1/invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, err := h.queries.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toInvoiceResponse(invoice))
}

// Metrics returns the reporting view of one invoice
// GET /api/v1/invoices/:id/metrics
func (h *InvoiceHandler) Metrics(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	metrics, err := h.queries.GetInvoiceMetrics(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, metrics)
}

// ListAllocations lists the advance allocations applied to an invoice
// GET /api/v1/invoices/:id/allocations
func (h *InvoiceHandler) ListAllocations(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	allocations, err := h.queries.ListAllocationsByInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toAllocationResponses(allocations))
}

// Issue moves a draft invoice to ISSUED
// POST /api/v1/invoices/:id/issue
func (h *InvoiceHandler) Issue(c *gin.Context) {
	h.transition(c, h.service.IssueInvoice)
}

// MarkSent records that an issued invoice was delivered to the client
// POST /api/v1/invoices/:id/send
func (h *InvoiceHandler) MarkSent(c *gin.Context) {
	h.transition(c, h.service.MarkInvoiceSent)
}

// RegisterPayment records a direct client payment on an invoice
// POST /api/v1/invoices/:id/payments
func (h *InvoiceHandler) RegisterPayment(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var req RegisterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	invoice, err := h.service.RegisterInvoicePayment(c.Request.Context(), settlementapp.RegisterInvoicePaymentRequest{
		InvoiceID: invoiceID,
		Amount:    amount,
		Method:    req.Method,
		Reference: req.Reference,
		ActorID:   getActorID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toInvoiceResponse(invoice))
}

// Cancel administratively cancels an invoice
// POST /api/v1/invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	invoice, err := h.service.CancelInvoice(c.Request.Context(), invoiceID, req.Reason, getActorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toInvoiceResponse(invoice))
}

type invoiceTransition func(ctx context.Context, invoiceID uuid.UUID, actorID *uuid.UUID) (*settlement.Invoice, error)

func (h *InvoiceHandler) transition(c *gin.Context, fn invoiceTransition) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, err := fn(c.Request.Context(), invoiceID, getActorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toInvoiceResponse(invoice))
}

func buildInvoiceFilter(req ListInvoicesRequest) (settlement.InvoiceFilter, error) {
	filter := settlement.InvoiceFilter{Filter: shared.DefaultFilter()}
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}
	filter.Search = req.Search

	if req.ClientID != "" {
		id, err := uuid.Parse(req.ClientID)
		if err != nil {
			return filter, shared.ErrInvalidInput
		}
		filter.ClientID = &id
	}
	if req.ProjectID != "" {
		id, err := uuid.Parse(req.ProjectID)
		if err != nil {
			return filter, shared.ErrInvalidInput
		}
		filter.ProjectID = &id
	}
	if req.Status != "" {
		status := settlement.InvoiceStatus(req.Status)
		if !status.IsValid() {
			return filter, shared.NewDomainError("INVALID_INPUT", "Unknown invoice status: "+req.Status)
		}
		filter.Status = &status
	}
	if req.Type != "" {
		invoiceType := settlement.InvoiceType(req.Type)
		if !invoiceType.IsValid() {
			return filter, shared.NewDomainError("INVALID_INPUT", "Unknown invoice type: "+req.Type)
		}
		filter.Type = &invoiceType
	}
	if req.FromDate != "" {
		t, err := parseDate(req.FromDate)
		if err != nil {
			return filter, err
		}
		filter.FromDate = &t
	}
	if req.ToDate != "" {
		t, err := parseDate(req.ToDate)
		if err != nil {
			return filter, err
		}
		filter.ToDate = &t
	}
	filter.Overdue = req.Overdue
	return filter, nil
}
