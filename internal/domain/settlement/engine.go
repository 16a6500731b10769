package settlement

import (
	"time"

	"github.com/constructora/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine is the domain service that allocates advances to invoices or
// directly to projects while keeping both balances mutually consistent.
// It is pure: no persistence, injected time. Every operation validates
// all preconditions before the first mutation, so a failure leaves
// both entities untouched (all-or-nothing). Callers are responsible
// for persisting both aggregates and the allocation record in a single
// transaction.
type Engine struct{}

// NewEngine creates a new settlement engine
func NewEngine() *Engine {
	return &Engine{}
}

// AllocationResult describes the outcome of an invoice allocation
type AllocationResult struct {
	Allocation   *Allocation // Created or augmented record
	Created      bool        // True if the allocation record is new
	AdvanceAfter decimal.Decimal
	InvoiceAfter decimal.Decimal
}

// AllocateToInvoice applies an amount of the advance against the
// invoice. When an allocation already exists for the (advance, invoice)
// pair, the caller passes it in and the record is augmented instead of
// duplicated; the caller performs that lookup before invoking the
// engine.
//
// Coverage beyond the invoice's pending balance is permitted: the
// pending amount goes negative and Recompute normalizes the invoice to
// PAID, matching how over-covered invoices settle in practice.
func (e *Engine) AllocateToInvoice(
	advance *Advance,
	invoice *Invoice,
	existing *Allocation,
	amount valueobject.Money,
	actor *uuid.UUID,
	now time.Time,
) (*AllocationResult, error) {
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if advance.Status.IsTerminal() {
		return nil, ErrIllegalStateTransition
	}
	if !advance.Status.CanAllocate() {
		return nil, ErrInsufficientAdvanceBalance
	}
	if amount.Amount().GreaterThan(advance.AvailableAmount) {
		return nil, ErrInsufficientAdvanceBalance
	}
	if !invoice.Status.CanReceiveAllocation() {
		return nil, ErrInvoiceNotEligible
	}
	if invoice.ProjectID != advance.ProjectID {
		return nil, ErrInvoiceNotEligible
	}
	if existing != nil && (existing.AdvanceID != advance.ID || existing.InvoiceID != invoice.ID) {
		return nil, ErrInvoiceNotEligible
	}

	var (
		allocation *Allocation
		created    bool
		err        error
	)
	if existing != nil {
		allocation = existing
		if err = allocation.Augment(amount, actor, now); err != nil {
			return nil, err
		}
	} else {
		allocation, err = NewAllocation(advance.ID, invoice.ID, amount, actor, now)
		if err != nil {
			return nil, err
		}
		created = true
	}

	advance.ApplyToInvoices(amount, now)
	invoice.ApplyAdvance(amount, now)

	return &AllocationResult{
		Allocation:   allocation,
		Created:      created,
		AdvanceAfter: advance.AvailableAmount,
		InvoiceAfter: invoice.PendingAmount,
	}, nil
}

// AllocateToProject applies an amount of the advance directly against
// project cost, without touching any invoice.
func (e *Engine) AllocateToProject(advance *Advance, amount valueobject.Money, now time.Time) error {
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if advance.Status.IsTerminal() {
		return ErrIllegalStateTransition
	}
	if !advance.Status.CanAllocate() {
		return ErrInsufficientAdvanceBalance
	}
	if amount.Amount().GreaterThan(advance.AvailableAmount) {
		return ErrInsufficientAdvanceBalance
	}

	advance.ApplyToProject(amount, now)

	return nil
}

// ReverseAllocation undoes an allocation record, restoring the amount
// to the advance's available balance and removing the coverage from
// the invoice. The advance may return to PENDING; the invoice keeps a
// PAID status even if balance resurfaces (correcting that is an
// explicit administrative action).
func (e *Engine) ReverseAllocation(
	advance *Advance,
	invoice *Invoice,
	allocation *Allocation,
	now time.Time,
) error {
	if allocation == nil {
		return ErrInvalidAmount
	}
	if allocation.AdvanceID != advance.ID || allocation.InvoiceID != invoice.ID {
		return ErrInvoiceNotEligible
	}
	if advance.Status.IsTerminal() {
		return ErrIllegalStateTransition
	}

	amount := allocation.GetAmountMoney()
	if err := advance.ReleaseFromInvoices(amount, now); err != nil {
		return err
	}
	return invoice.ReleaseAdvance(amount, now)
}

// RecomputeAdvance re-derives the advance's available balance and
// status. Idempotent; returns true if anything changed. Version and
// UpdatedAt are only touched when a change occurred.
func (e *Engine) RecomputeAdvance(advance *Advance, now time.Time) bool {
	changed := advance.Recompute(now)
	if changed {
		advance.UpdatedAt = now
		advance.IncrementVersion()
	}
	return changed
}

// RecomputeInvoice re-derives the invoice's pending balance and status,
// including the issued/sent -> overdue transition used by the batch
// overdue-marking job. Idempotent; returns true if anything changed.
func (e *Engine) RecomputeInvoice(invoice *Invoice, now time.Time) bool {
	changed := invoice.Recompute(now)
	if changed {
		invoice.UpdatedAt = now
		invoice.IncrementVersion()
	}
	return changed
}
