package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/constructora/backend/internal/domain/settlement"
	"github.com/constructora/backend/internal/domain/shared"
	"github.com/constructora/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service orchestrates the settlement engine against the persistence
// boundary. Every allocation or reversal runs inside a single database
// transaction spanning the advance, the invoice and the allocation
// record, with version-checked saves; a stale version surfaces as the
// retryable CONCURRENCY_CONFLICT error.
type Service struct {
	txManager   settlement.TxManager
	engine      *settlement.Engine
	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	logger      *zap.Logger
	now         func() time.Time
}

// ServiceOption configures the service
type ServiceOption func(*Service)

// WithClock injects the time source (used by tests)
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithIdempotencyStore enables idempotency-key checking on allocation requests
func WithIdempotencyStore(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) ServiceOption {
	return func(s *Service) {
		s.idempotency = store
		s.idemConfig = cfg
	}
}

// NewService creates a new settlement application service
func NewService(txManager settlement.TxManager, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		txManager:  txManager,
		engine:     settlement.NewEngine(),
		idemConfig: shared.DefaultIdempotencyConfig(),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAdvanceRequest carries the data to record a new advance payment
type CreateAdvanceRequest struct {
	AdvanceNumber    string // Generated when empty
	ClientID         uuid.UUID
	ClientName       string
	ProjectID        uuid.UUID
	TotalAmount      decimal.Decimal
	Category         settlement.AdvanceCategory
	ReceivedDate     time.Time
	ExpirationDate   *time.Time
	PaymentMethod    string
	PaymentReference string
	BankOrigin       string
	Remark           string
	ActorID          *uuid.UUID
}

// CreateAdvance records a new advance payment
func (s *Service) CreateAdvance(ctx context.Context, req CreateAdvanceRequest) (*settlement.Advance, error) {
	var advance *settlement.Advance

	err := s.txManager.InTx(ctx, func(ctx context.Context, repos settlement.Repositories) error {
		number := req.AdvanceNumber
		if number == "" {
			var err error
			number, err = repos.Advances.GenerateAdvanceNumber(ctx)
			if err != nil {
				return fmt.Errorf("failed to generate advance number: %w", err)
			}
		} else {
			exists, err := repos.Advances.ExistsByAdvanceNumber(ctx, number)
			if err != nil {
				return err
			}
			if exists {
				return shared.ErrAlreadyExists
			}
		}

		a, err := settlement.NewAdvance(number, req.ClientID, req.ClientName, req.ProjectID,
			valueobject.NewMoneyGTQ(req.TotalAmount), req.Category, req.ReceivedDate, req.ActorID)
		if err != nil {
			return err
		}
		a.ExpirationDate = req.ExpirationDate
		if req.PaymentMethod != "" || req.PaymentReference != "" || req.BankOrigin != "" {
			a.SetPaymentDetails(req.PaymentMethod, req.PaymentReference, req.BankOrigin)
		}
		if req.Remark != "" {
			a.SetRemark(req.Remark)
		}

		if err := repos.Advances.Save(ctx, a); err != nil {
			return err
		}
		advance = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("advance created",
		zap.String("advance_id", advance.ID.String()),
		zap.String("advance_number", advance.AdvanceNumber),
		zap.String("project_id", advance.ProjectID.String()),
		zap.String("total_amount", advance.TotalAmount.StringFixed(2)))

	return advance, nil
}

// CreateInvoiceRequest carries the data to create a new invoice
type CreateInvoiceRequest struct {
	InvoiceNumber      string // Generated when empty
	ProjectID          uuid.UUID
	ClientID           uuid.UUID
	Type               settlement.InvoiceType
	Subtotal           decimal.Decimal
	TaxAmount          decimal.Decimal
	TotalOverride      *decimal.Decimal
	IssueDate          time.Time
	DueDate            *time.Time
	ServiceDescription string
	ProgressPercent    *decimal.Decimal
	Remark             string
	ActorID            *uuid.UUID
}

// CreateInvoice creates a new draft invoice
func (s *Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*settlement.Invoice, error) {
	var invoice *settlement.Invoice

	err := s.txManager.InTx(ctx, func(ctx context.Context, repos settlement.Repositories) error {
		number := req.InvoiceNumber
		if number == "" {
			var err error
			number, err = repos.Invoices.GenerateInvoiceNumber(ctx)
			if err != nil {
				return fmt.Errorf("failed to generate invoice number: %w", err)
			}
		} else {
			exists, err := repos.Invoices.ExistsByInvoiceNumber(ctx, number)
			if err != nil {
				return err
			}
			if exists {
				return shared.ErrAlreadyExists
			}
		}

		var override *valueobject.Money
		if req.TotalOverride != nil {
			m := valueobject.NewMoneyGTQ(*req.TotalOverride)
			override = &m
		}

		inv, err := settlement.NewInvoice(number, req.ProjectID, req.ClientID, req.Type,
			valueobject.NewMoneyGTQ(req.Subtotal), valueobject.NewMoneyGTQ(req.TaxAmount),
			override, req.IssueDate, req.DueDate, req.ActorID)
		if err != nil {
			return err
		}
		if req.ServiceDescription != "" {
			inv.SetServiceDescription(req.ServiceDescription)
		}
		if req.ProgressPercent != nil {
			if err := inv.SetProgressPercent(*req.ProgressPercent); err != nil {
				return err
			}
		}
		if req.Remark != "" {
			inv.SetRemark(req.Remark)
		}

		if err := repos.Invoices.Save(ctx, inv); err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("total_amount", invoice.TotalAmount.StringFixed(2)))

	return invoice, nil
}

// AllocateToInvoiceRequest carries an invoice allocation command
type AllocateToInvoiceRequest struct {
	AdvanceID      uuid.UUID
	InvoiceID      uuid.UUID
	Amount         decimal.Decimal
	ActorID        *uuid.UUID
	IdempotencyKey string // Optional; retried requests with the same key are rejected as duplicates
}

// AllocateToInvoiceResult reports the updated balances
type AllocateToInvoiceResult struct {
	AllocationID     uuid.UUID       `json:"allocation_id"`
	AllocationAmount decimal.Decimal `json:"allocation_amount"`
	AdvanceAvailable decimal.Decimal `json:"advance_available"`
	AdvanceStatus    string          `json:"advance_status"`
	InvoicePending   decimal.Decimal `json:"invoice_pending"`
	InvoiceStatus    string          `json:"invoice_status"`
}

// AllocateToInvoice applies part of an advance against an invoice.
// The read-validate-write sequence runs in one transaction; both
// aggregates are saved with a version check so concurrent allocations
// against the same advance or invoice cannot over-allocate.
func (s *Service) AllocateToInvoice(ctx context.Context, req AllocateToInvoiceRequest) (*AllocateToInvoiceResult, error) {
	if err := s.checkIdempotency(ctx, "allocate-invoice", req.IdempotencyKey); err != nil {
		return nil, err
	}

	now := s.now()
	var result *AllocateToInvoiceResult

	err := s.txManager.InTx(ctx, func(ctx context.Context, repos settlement.Repositories) error {
		advance, err := repos.Advances.FindByID(ctx, req.AdvanceID)
		if err != nil {
			return err
		}
		invoice, err := repos.Invoices.FindByID(ctx, req.InvoiceID)
		if err != nil {
			return err
		}

		// Explicit lookup decides create vs augment; the unique
		// (advance, invoice) constraint backs this up at the DB level.
		existing, err := repos.Allocations.FindByAdvanceAndInvoice(ctx, advance.ID, invoice.ID)
		if err != nil && err != shared.ErrNotFound {
			return err
		}

		engineResult, err := s.engine.AllocateToInvoice(advance, invoice, existing,
			valueobject.NewMoneyGTQ(req.Amount), req.ActorID, now)
		if err != nil {
			return err
		}

		if err := repos.Advances.SaveWithLock(ctx, advance); err != nil {
			return err
		}
		if err := repos.Invoices.SaveWithLock(ctx, invoice); err != nil {
			return err
		}
		if err := repos.Allocations.Save(ctx, engineResult.Allocation); err != nil {
			return err
		}

		result = &AllocateToInvoiceResult{
			AllocationID:     engineResult.Allocation.ID,
			AllocationAmount: engineResult.Allocation.Amount,
			AdvanceAvailable: advance.AvailableAmount,
			AdvanceStatus:    advance.Status.String(),
			InvoicePending:   invoice.PendingAmount,
			InvoiceStatus:    invoice.Status.String(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.markProcessed(ctx, "allocate-invoice", req.IdempotencyKey)
	s.logger.Info("advance allocated to invoice",
		zap.String("advance_id", req.AdvanceID.String()),
		zap.String("invoice_id", req.InvoiceID.String()),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("actor_id", actorString(req.ActorID)))

	return result, nil
}

// AllocateToProjectRequest carries a direct-to-project allocation command
type AllocateToProjectRequest struct {
	AdvanceID      uuid.UUID
	Amount         decimal.Decimal
	ActorID        *uuid.UUID
	IdempotencyKey string
}

// AllocateToProjectResult reports the updated advance balances
type AllocateToProjectResult struct {
	AdvanceAvailable   decimal.Decimal `json:"advance_available"`
	AllocatedToProject decimal.Decimal `json:"allocated_to_project"`
	AdvanceStatus      string          `json:"advance_status"`
}

// AllocateToProject applies part of an advance directly to project cost
func (s *Service) AllocateToProject(ctx context.Context, req AllocateToProjectRequest) (*AllocateToProjectResult, error) {
	if err := s.checkIdempotency(ctx, "allocate-project", req.IdempotencyKey); err != nil {
		return nil, err
	}

	now := s.now()
	var result *AllocateToProjectResult

	err := s.txManager.InTx(ctx, func(ctx context.Context, repos settlement.Repositories) error {
		advance, err := repos.Advances.FindByID(ctx, req.AdvanceID)
		if err != nil {
			return err
		}

		if err := s.engine.AllocateToProject(advance, valueobject.NewMoneyGTQ(req.Amount), now); err != nil {
			return err
		}

		if err := repos.Advances.SaveWithLock(ctx, advance); err != nil {
			return err
		}

		result = &AllocateToProjectResult{
			AdvanceAvailable:   advance.AvailableAmount,
			AllocatedToProject: advance.AllocatedToProject,
			AdvanceStatus:      advance.Status.String(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.markProcessed(ctx, "allocate-project", req.IdempotencyKey)
	s.logger.Info("advance allocated to project",
		zap.String("advance_id", req.AdvanceID.String()),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("actor_id", actorString(req.ActorID)))

	return result, nil
}

// ReverseAllocation deletes an allocation record and restores the
// advance and invoice balances it produced. The deletion is audited.
func (s *Service) ReverseAllocation(ctx context.Context, allocationID uuid.UUID, reason string, actorID *uuid.UUID) error {
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Reversal reason is required")
	}

	now := s.now()

	err := s.txManager.InTx(ctx, func(ctx context.Context, repos settlement.Repositories) error {
		allocation, err := repos.Allocations.FindByID(ctx, allocationID)
		if err != nil {
			return err
		}
		advance, err := repos.Advances.FindByID(ctx, allocation.AdvanceID)
		if err != nil {
			return err
		}
		invoice, err := repos.Invoices.FindByID(ctx, allocation.InvoiceID)
		if err != nil {
			return err
		}

		if err := s.engine.ReverseAllocation(advance, invoice, allocation, now); err != nil {
			return err
		}

		if err := repos.Advances.SaveWithLock(ctx, advance); err != nil {
			return err
		}
		if err := repos.Invoices.SaveWithLock(ctx, invoice); err != nil {
			return err
		}
		return repos.Allocations.Delete(ctx, allocation.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("allocation reversed",
		zap.String("allocation_id", allocationID.String()),
		zap.String("reason", reason),
		zap.String("actor_id", actorString(actorID)))

	return nil
}

// RegisterInvoicePaymentRequest carries a direct payment registration
type RegisterInvoicePaymentRequest struct {
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Method    string
	Reference string
	ActorID   *uuid.UUID
}

// RegisterInvoicePayment records a direct client payment on an invoice
func (s *Service) RegisterInvoicePayment(ctx context.Context, req RegisterInvoicePaymentRequest) (*settlement.Invoice, error) {
	now := s.now()
	var invoice *settlement.Invoice

	err := s.txManager.InTx(ctx, func(ctx context.Context, repos settlement.Repositories) error {
		inv, err := repos.Invoices.FindByID(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		if err := inv.RegisterPayment(valueobject.NewMoneyGTQ(req.Amount), req.Method, req.Reference, now); err != nil {
			return err
		}
		if err := repos.Invoices.SaveWithLock(ctx, inv); err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice payment registered",
		zap.String("invoice_id", req.InvoiceID.String()),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("status", invoice.Status.String()),
		zap.String("actor_id", actorString(req.ActorID)))

	return invoice, nil
}

// IssueInvoice moves a draft invoice to ISSUED
func (s *Service) IssueInvoice(ctx context.Context, invoiceID uuid.UUID, actorID *uuid.UUID) (*settlement.Invoice, error) {
	return s.transitionInvoice(ctx, invoiceID, actorID, "invoice issued", func(inv *settlement.Invoice, now time.Time) error {
		return inv.Issue(now)
	})
}

// MarkInvoiceSent records that an issued invoice was delivered
func (s *Service) MarkInvoiceSent(ctx context.Context, invoiceID uuid.UUID, actorID *uuid.UUID) (*settlement.Invoice, error) {
	return s.transitionInvoice(ctx, invoiceID, actorID, "invoice sent", func(inv *settlement.Invoice, now time.Time) error {
		return inv.MarkSent(now)
	})
}

// CancelInvoice administratively cancels an invoice
func (s *Service) CancelInvoice(ctx context.Context, invoiceID uuid.UUID, reason string, actorID *uuid.UUID) (*settlement.Invoice, error) {
	return s.transitionInvoice(ctx, invoiceID, actorID, "invoice cancelled", func(inv *settlement.Invoice, now time.Time) error {
		return inv.Cancel(reason, now)
	})
}

// CancelAdvance administratively cancels an unallocated advance
func (s *Service) CancelAdvance(ctx context.Context, advanceID uuid.UUID, reason string, actorID *uuid.UUID) (*settlement.Advance, error) {
	return s.transitionAdvance(ctx, advanceID, actorID, "advance cancelled", func(a *settlement.Advance, now time.Time) error {
		return a.Cancel(reason, now)
	})
}

// RefundAdvance returns the unallocated remainder of an advance to the client
func (s *Service) RefundAdvance(ctx context.Context, advanceID uuid.UUID, reason string, actorID *uuid.UUID) (*settlement.Advance, error) {
	return s.transitionAdvance(ctx, advanceID, actorID, "advance refunded", func(a *settlement.Advance, now time.Time) error {
		return a.Refund(reason, now)
	})
}

func (s *Service) transitionInvoice(
	ctx context.Context,
	invoiceID uuid.UUID,
	actorID *uuid.UUID,
	auditMsg string,
	transition func(*settlement.Invoice, time.Time) error,
) (*settlement.Invoice, error) {
	now := s.now()
	var invoice *settlement.Invoice

	err := s.txManager.InTx(ctx, func(ctx context.Context, repos settlement.Repositories) error {
		inv, err := repos.Invoices.FindByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := transition(inv, now); err != nil {
			return err
		}
		if err := repos.Invoices.SaveWithLock(ctx, inv); err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(auditMsg,
		zap.String("invoice_id", invoiceID.String()),
		zap.String("status", invoice.Status.String()),
		zap.String("actor_id", actorString(actorID)))

	return invoice, nil
}

func (s *Service) transitionAdvance(
	ctx context.Context,
	advanceID uuid.UUID,
	actorID *uuid.UUID,
	auditMsg string,
	transition func(*settlement.Advance, time.Time) error,
) (*settlement.Advance, error) {
	now := s.now()
	var advance *settlement.Advance

	err := s.txManager.InTx(ctx, func(ctx context.Context, repos settlement.Repositories) error {
		a, err := repos.Advances.FindByID(ctx, advanceID)
		if err != nil {
			return err
		}
		if err := transition(a, now); err != nil {
			return err
		}
		if err := repos.Advances.SaveWithLock(ctx, a); err != nil {
			return err
		}
		advance = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(auditMsg,
		zap.String("advance_id", advanceID.String()),
		zap.String("status", advance.Status.String()),
		zap.String("actor_id", actorString(actorID)))

	return advance, nil
}

func (s *Service) checkIdempotency(ctx context.Context, operation, key string) error {
	if key == "" || s.idempotency == nil || !s.idemConfig.Enabled {
		return nil
	}
	processed, err := s.idempotency.IsProcessed(ctx, operation+":"+key)
	if err != nil {
		// Degrade to processing the request; duplicate suppression is
		// best effort when the store is unreachable.
		s.logger.Warn("idempotency check failed", zap.Error(err))
		return nil
	}
	if processed {
		return shared.NewDomainError("DUPLICATE_REQUEST", "Request with this idempotency key was already processed")
	}
	return nil
}

func (s *Service) markProcessed(ctx context.Context, operation, key string) {
	if key == "" || s.idempotency == nil || !s.idemConfig.Enabled {
		return
	}
	if _, err := s.idempotency.MarkProcessed(ctx, operation+":"+key, s.idemConfig.TTL); err != nil {
		s.logger.Warn("failed to mark idempotency key", zap.Error(err))
	}
}

func actorString(id *uuid.UUID) string {
	if id == nil {
		return "system"
	}
	return id.String()
}
