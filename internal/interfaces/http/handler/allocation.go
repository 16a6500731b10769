package handler

import (
	settlementapp "github.com/constructora/backend/internal/application/settlement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AllocationHandler handles allocation API endpoints
type AllocationHandler struct {
	BaseHandler
	service *settlementapp.Service
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(service *settlementapp.Service) *AllocationHandler {
	return &AllocationHandler{service: service}
}

// Reverse undoes an allocation and restores both balances
// POST /api/v1/allocations/:id/reverse
func (h *AllocationHandler) Reverse(c *gin.Context) {
	allocationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID")
		return
	}

	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	if err := h.service.ReverseAllocation(c.Request.Context(), allocationID, req.Reason, getActorID(c)); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
