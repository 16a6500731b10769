package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	settlementapp "github.com/constructora/backend/internal/application/settlement"
	"github.com/constructora/backend/internal/domain/shared"
	"github.com/constructora/backend/internal/infrastructure/auth"
	"github.com/constructora/backend/internal/infrastructure/cache"
	"github.com/constructora/backend/internal/infrastructure/config"
	"github.com/constructora/backend/internal/infrastructure/logger"
	"github.com/constructora/backend/internal/infrastructure/persistence"
	"github.com/constructora/backend/internal/infrastructure/scheduler"
	"github.com/constructora/backend/internal/interfaces/http/handler"
	"github.com/constructora/backend/internal/interfaces/http/middleware"
	"github.com/constructora/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting settlement engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port))

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Idempotency store backend
	var idemStore shared.IdempotencyStore
	if cfg.Idempotency.Enabled {
		switch cfg.Idempotency.Backend {
		case "redis":
			store, err := cache.NewRedisIdempotencyStore(cfg.Redis)
			if err != nil {
				log.Fatal("Failed to connect to redis", zap.Error(err))
			}
			idemStore = store
		default:
			idemStore = cache.NewInMemoryIdempotencyStore()
		}
		defer func() {
			if err := idemStore.Close(); err != nil {
				log.Error("Error closing idempotency store", zap.Error(err))
			}
		}()
		log.Info("Idempotency store ready", zap.String("backend", cfg.Idempotency.Backend))
	}

	// Application services
	txManager := persistence.NewGormTxManager(db.DB)
	serviceOpts := []settlementapp.ServiceOption{}
	if idemStore != nil {
		serviceOpts = append(serviceOpts, settlementapp.WithIdempotencyStore(idemStore, shared.IdempotencyConfig{
			Enabled: true,
			TTL:     cfg.Idempotency.TTL,
		}))
	}
	service := settlementapp.NewService(txManager, log, serviceOpts...)
	queries := settlementapp.NewQueryService(
		persistence.NewGormAdvanceRepository(db.DB),
		persistence.NewGormInvoiceRepository(db.DB),
		persistence.NewGormAllocationRepository(db.DB),
	)

	// Overdue invoice scheduler
	if cfg.Scheduler.Enabled {
		overdueService := settlementapp.NewOverdueService(txManager, log)
		overdueScheduler := scheduler.NewOverdueScheduler(overdueService, cfg.Scheduler, log)
		overdueScheduler.Start(context.Background())
		defer overdueScheduler.Stop()
	}

	jwtService := auth.NewJWTService(cfg.JWT)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine := router.New(router.Dependencies{
		Logger:       log,
		JWTService:   jwtService,
		Advances:     handler.NewAdvanceHandler(service, queries),
		Invoices:     handler.NewInvoiceHandler(service, queries),
		Allocations:  handler.NewAllocationHandler(service),
		Summaries:    handler.NewSummaryHandler(queries),
		System:       handler.NewSystemHandler(db),
		CORS:         corsConfig,
		MaxBodyBytes: cfg.HTTP.MaxBodySize,
		AuthDisabled: cfg.App.Env == "development" && cfg.JWT.Secret == "",
	})
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
