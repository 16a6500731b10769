package router

import (
	"github.com/constructora/backend/internal/infrastructure/auth"
	"github.com/constructora/backend/internal/interfaces/http/handler"
	"github.com/constructora/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies carries everything the router needs to wire routes
type Dependencies struct {
	Logger     *zap.Logger
	JWTService *auth.JWTService

	Advances    *handler.AdvanceHandler
	Invoices    *handler.InvoiceHandler
	Allocations *handler.AllocationHandler
	Summaries   *handler.SummaryHandler
	System      *handler.SystemHandler

	CORS         middleware.CORSConfig
	MaxBodyBytes int64
	// AuthDisabled skips JWT validation; requests then run with no
	// actor identity. Meant for local development only.
	AuthDisabled bool
}

// New builds the gin engine with the full middleware chain and all
// API routes registered.
func New(deps Dependencies) *gin.Engine {
	if err := middleware.RegisterValidators(); err != nil {
		deps.Logger.Warn("failed to register custom validators", zap.Error(err))
	}

	engine := gin.New()

	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(deps.Logger))
	engine.Use(middleware.Recovery(deps.Logger))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(deps.CORS))
	if deps.MaxBodyBytes > 0 {
		engine.Use(middleware.BodyLimit(deps.MaxBodyBytes))
	}
	if !deps.AuthDisabled && deps.JWTService != nil {
		engine.Use(middleware.JWTAuthMiddleware(deps.JWTService))
	}

	api := engine.Group("/api/v1")

	api.GET("/health", deps.System.Health)

	advances := api.Group("/advances")
	{
		advances.POST("", deps.Advances.Create)
		advances.GET("", deps.Advances.List)
		advances.GET("/:id", deps.Advances.Get)
		advances.GET("/:id/metrics", deps.Advances.Metrics)
		advances.GET("/:id/allocations", deps.Advances.ListAllocations)
		advances.POST("/:id/allocations", deps.Advances.AllocateToInvoice)
		advances.POST("/:id/apply-to-project", deps.Advances.AllocateToProject)
		advances.POST("/:id/cancel", deps.Advances.Cancel)
		advances.POST("/:id/refund", deps.Advances.Refund)
	}

	invoices := api.Group("/invoices")
	{
		invoices.POST("", deps.Invoices.Create)
		invoices.GET("", deps.Invoices.List)
		invoices.GET("/:id", deps.Invoices.Get)
		invoices.GET("/:id/metrics", deps.Invoices.Metrics)
		invoices.GET("/:id/allocations", deps.Invoices.ListAllocations)
		invoices.POST("/:id/issue", deps.Invoices.Issue)
		invoices.POST("/:id/send", deps.Invoices.MarkSent)
		invoices.POST("/:id/payments", deps.Invoices.RegisterPayment)
		invoices.POST("/:id/cancel", deps.Invoices.Cancel)
	}

	allocations := api.Group("/allocations")
	{
		allocations.POST("/:id/reverse", deps.Allocations.Reverse)
	}

	api.GET("/projects/:id/settlement-summary", deps.Summaries.ProjectSummary)
	api.GET("/clients/:id/settlement-summary", deps.Summaries.ClientSummary)

	return engine
}
