package settlement

import (
	"time"

	"github.com/constructora/backend/internal/domain/shared"
	"github.com/constructora/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation records that an amount of one advance was applied to one
// invoice. At most one allocation exists per (advance, invoice) pair;
// re-applying augments the stored amount instead of duplicating the
// record. The pair uniqueness is also enforced by the persistence layer.
type Allocation struct {
	shared.BaseEntity
	AdvanceID uuid.UUID       `json:"advance_id"`
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	AppliedAt time.Time       `json:"applied_at"`
	AppliedBy *uuid.UUID      `json:"applied_by,omitempty"` // Acting user (audit)
}

// NewAllocation creates the allocation record for a first application
func NewAllocation(advanceID, invoiceID uuid.UUID, amount valueobject.Money, appliedBy *uuid.UUID, now time.Time) (*Allocation, error) {
	if advanceID == uuid.Nil || invoiceID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	return &Allocation{
		BaseEntity: shared.NewBaseEntity(),
		AdvanceID:  advanceID,
		InvoiceID:  invoiceID,
		Amount:     amount.Amount(),
		AppliedAt:  now,
		AppliedBy:  appliedBy,
	}, nil
}

// Augment adds a re-application amount to the existing record and
// refreshes the application audit fields
func (al *Allocation) Augment(amount valueobject.Money, appliedBy *uuid.UUID, now time.Time) error {
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	al.Amount = al.Amount.Add(amount.Amount())
	al.AppliedAt = now
	if appliedBy != nil {
		al.AppliedBy = appliedBy
	}
	al.UpdatedAt = now
	return nil
}

// GetAmountMoney returns the applied amount as Money
func (al *Allocation) GetAmountMoney() valueobject.Money {
	return valueobject.NewMoneyGTQ(al.Amount)
}
