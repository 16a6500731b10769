package handler

import (
	settlementapp "github.com/constructora/backend/internal/application/settlement"
	"github.com/constructora/backend/internal/domain/settlement"
	"github.com/constructora/backend/internal/domain/shared"
	"github.com/constructora/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdvanceHandler handles advance payment API endpoints
type AdvanceHandler struct {
	BaseHandler
	service *settlementapp.Service
	queries *settlementapp.QueryService
}

// NewAdvanceHandler creates a new AdvanceHandler
func NewAdvanceHandler(service *settlementapp.Service, queries *settlementapp.QueryService) *AdvanceHandler {
	return &AdvanceHandler{
		service: service,
		queries: queries,
	}
}

// Create records a new advance payment
// POST /api/v1/advances
func (h *AdvanceHandler) Create(c *gin.Context) {
	var req CreateAdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	clientID, _ := uuid.Parse(req.ClientID)
	projectID, _ := uuid.Parse(req.ProjectID)

	amount, err := parseAmount(req.TotalAmount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	receivedDate, err := parseDate(req.ReceivedDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	expirationDate, err := parseOptionalDate(req.ExpirationDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	category := settlement.AdvanceCategory(req.Category)
	if !category.IsValid() {
		h.Error(c, 400, dto.ErrCodeValidation, "Unknown advance category: "+req.Category)
		return
	}

	advance, err := h.service.CreateAdvance(c.Request.Context(), settlementapp.CreateAdvanceRequest{
		AdvanceNumber:    req.AdvanceNumber,
		ClientID:         clientID,
		ClientName:       req.ClientName,
		ProjectID:        projectID,
		TotalAmount:      amount,
		Category:         category,
		ReceivedDate:     receivedDate,
		ExpirationDate:   expirationDate,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		BankOrigin:       req.BankOrigin,
		Remark:           req.Remark,
		ActorID:          getActorID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toAdvanceResponse(advance))
}

// List returns a filtered, paginated advance listing
// GET /api/v1/advances
func (h *AdvanceHandler) List(c *gin.Context) {
	var req ListAdvancesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	filter, err := buildAdvanceFilter(req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	advances, total, err := h.queries.ListAdvances(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toAdvanceResponses(advances), total, filter.Page, filter.PageSize)
}

// Get returns one advance
// GET /api/v1/advances/:id
func (h *AdvanceHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid advance ID")
		return
	}

	advance, err := h.queries.GetAdvance(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toAdvanceResponse(advance))
}

// Metrics returns the reporting view of one advance
// GET /api/v1/advances/:id/metrics
func (h *AdvanceHandler) Metrics(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid advance ID")
		return
	}

	metrics, err := h.queries.GetAdvanceMetrics(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, metrics)
}

// ListAllocations lists the allocations made from an advance
// GET /api/v1/advances/:id/allocations
func (h *AdvanceHandler) ListAllocations(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid advance ID")
		return
	}

	allocations, err := h.queries.ListAllocationsByAdvance(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toAllocationResponses(allocations))
}

// AllocateToInvoice applies part of an advance against an invoice
// POST /api/v1/advances/:id/allocations
func (h *AdvanceHandler) AllocateToInvoice(c *gin.Context) {
	advanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid advance ID")
		return
	}

	var req AllocateToInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	invoiceID, _ := uuid.Parse(req.InvoiceID)
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.service.AllocateToInvoice(c.Request.Context(), settlementapp.AllocateToInvoiceRequest{
		AdvanceID:      advanceID,
		InvoiceID:      invoiceID,
		Amount:         amount,
		ActorID:        getActorID(c),
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// AllocateToProject applies part of an advance directly to project cost
// POST /api/v1/advances/:id/apply-to-project
func (h *AdvanceHandler) AllocateToProject(c *gin.Context) {
	advanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid advance ID")
		return
	}

	var req AllocateToProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.service.AllocateToProject(c.Request.Context(), settlementapp.AllocateToProjectRequest{
		AdvanceID:      advanceID,
		Amount:         amount,
		ActorID:        getActorID(c),
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Cancel administratively cancels an unallocated advance
// POST /api/v1/advances/:id/cancel
func (h *AdvanceHandler) Cancel(c *gin.Context) {
	advanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid advance ID")
		return
	}

	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	advance, err := h.service.CancelAdvance(c.Request.Context(), advanceID, req.Reason, getActorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toAdvanceResponse(advance))
}

// Refund returns the unallocated remainder of an advance to the client
// POST /api/v1/advances/:id/refund
func (h *AdvanceHandler) Refund(c *gin.Context) {
	advanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid advance ID")
		return
	}

	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	advance, err := h.service.RefundAdvance(c.Request.Context(), advanceID, req.Reason, getActorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toAdvanceResponse(advance))
}

// idempotencyKey prefers the X-Idempotency-Key header over the body field
func idempotencyKey(c *gin.Context, bodyKey string) string {
	if key := c.GetHeader("X-Idempotency-Key"); key != "" {
		return key
	}
	return bodyKey
}

func buildAdvanceFilter(req ListAdvancesRequest) (settlement.AdvanceFilter, error) {
	filter := settlement.AdvanceFilter{Filter: shared.DefaultFilter()}
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
		status := settlement.AdvanceStatus(req.Status)
		if !status.IsValid() {
			return filter, shared.NewDomainError("INVALID_INPUT", "Unknown advance status: "+req.Status)
		}
		filter.Status = &status
	}
	if req.Category != "" {
		category := settlement.AdvanceCategory(req.Category)
		if !category.IsValid() {
			return filter, shared.NewDomainError("INVALID_INPUT", "Unknown advance category: "+req.Category)
		}
		filter.Category = &category
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
	return filter, nil
}
