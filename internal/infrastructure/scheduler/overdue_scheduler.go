package scheduler

import (
	"context"
	"sync"
	"time"

	settlementapp "github.com/constructora/backend/internal/application/settlement"
	"github.com/constructora/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// OverdueScheduler periodically runs the overdue-marking batch over
// unsettled invoices. One run executes immediately at start, then at
// every check interval until stopped.
type OverdueScheduler struct {
	service  *settlementapp.OverdueService
	interval time.Duration
	logger   *zap.Logger

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewOverdueScheduler creates a new OverdueScheduler
func NewOverdueScheduler(service *settlementapp.OverdueService, cfg config.SchedulerConfig, logger *zap.Logger) *OverdueScheduler {
	return &OverdueScheduler{
		service:  service,
		interval: cfg.CheckInterval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background loop. It returns immediately.
func (s *OverdueScheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	s.logger.Info("overdue scheduler started", zap.Duration("interval", s.interval))
}

// Stop signals the loop to exit and waits for the in-flight run to
// finish. Safe to call multiple times.
func (s *OverdueScheduler) Stop() {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		s.logger.Info("overdue scheduler stopped")
	})
}

func (s *OverdueScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *OverdueScheduler) runOnce(ctx context.Context) {
	marked, err := s.service.MarkOverdueInvoices(ctx, time.Now())
	if err != nil {
		s.logger.Error("overdue run failed", zap.Error(err))
		return
	}
	if marked > 0 {
		s.logger.Info("overdue run completed", zap.Int("marked", marked))
	}
}
