package handler

import (
	settlementapp "github.com/constructora/backend/internal/application/settlement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SummaryHandler handles per-project and per-client settlement summaries
type SummaryHandler struct {
	BaseHandler
	queries *settlementapp.QueryService
}

// NewSummaryHandler creates a new SummaryHandler
func NewSummaryHandler(queries *settlementapp.QueryService) *SummaryHandler {
	return &SummaryHandler{queries: queries}
}

// ProjectSummary aggregates advances and invoices for one project
// GET /api/v1/projects/:id/settlement-summary
func (h *SummaryHandler) ProjectSummary(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid project ID")
		return
	}

	summary, err := h.queries.GetProjectSummary(c.Request.Context(), projectID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// ClientSummary aggregates advances and invoices for one client
// GET /api/v1/clients/:id/settlement-summary
func (h *SummaryHandler) ClientSummary(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	summary, err := h.queries.GetClientSummary(c.Request.Context(), clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}
