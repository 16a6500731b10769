package settlement

import (
	"context"
	"time"

	"github.com/constructora/backend/internal/domain/settlement"
	"github.com/constructora/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// OverdueService is the batch collaborator that transitions unsettled
// invoices past their due date to OVERDUE, so the status is correct
// even when no allocation or payment touches the invoice.
type OverdueService struct {
	txManager settlement.TxManager
	engine    *settlement.Engine
	logger    *zap.Logger
}

// NewOverdueService creates a new overdue-marking service
func NewOverdueService(txManager settlement.TxManager, logger *zap.Logger) *OverdueService {
	return &OverdueService{
		txManager: txManager,
		engine:    settlement.NewEngine(),
		logger:    logger,
	}
}

// MarkOverdueInvoices recomputes every unsettled invoice whose due date
// passed before asOf. Each invoice is saved with a version check; a
// conflicting concurrent write skips that invoice (the next run picks
// it up). Returns the number of invoices transitioned.
func (s *OverdueService) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int, error) {
	marked := 0

	err := s.txManager.InTx(ctx, func(ctx context.Context, repos settlement.Repositories) error {
		invoices, err := repos.Invoices.FindDueForRecompute(ctx, asOf)
		if err != nil {
			return err
		}

		for i := range invoices {
			inv := &invoices[i]
			if !s.engine.RecomputeInvoice(inv, asOf) {
				continue
			}
			if err := repos.Invoices.SaveWithLock(ctx, inv); err != nil {
				if de, ok := err.(*shared.DomainError); ok && de.Code == shared.ErrConcurrencyConflict.Code {
					s.logger.Warn("skipping invoice with concurrent modification",
						zap.String("invoice_id", inv.ID.String()))
					continue
				}
				return err
			}
			marked++
			s.logger.Info("invoice marked overdue",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("invoice_number", inv.InvoiceNumber),
				zap.String("pending_amount", inv.PendingAmount.StringFixed(2)))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return marked, nil
}
