package settlement

import (
	"fmt"
	"time"

	"github.com/constructora/backend/internal/domain/shared"
	"github.com/constructora/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdvanceStatus represents the lifecycle status of an advance payment
type AdvanceStatus string

const (
	AdvanceStatusPending        AdvanceStatus = "PENDING"         // Available balance > 0
	AdvanceStatusFullyAllocated AdvanceStatus = "FULLY_ALLOCATED" // Available balance = 0
	AdvanceStatusCancelled      AdvanceStatus = "CANCELLED"       // Administratively cancelled
	AdvanceStatusRefunded       AdvanceStatus = "REFUNDED"        // Returned to the client
)

// IsValid checks if the status is a valid AdvanceStatus
func (s AdvanceStatus) IsValid() bool {
	switch s {
	case AdvanceStatusPending, AdvanceStatusFullyAllocated,
		AdvanceStatusCancelled, AdvanceStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of AdvanceStatus
func (s AdvanceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the advance can no longer be allocated from
func (s AdvanceStatus) IsTerminal() bool {
	return s == AdvanceStatusCancelled || s == AdvanceStatusRefunded
}

// CanAllocate returns true if allocations can be made from this status
func (s AdvanceStatus) CanAllocate() bool {
	return s == AdvanceStatusPending
}

// AdvanceCategory tags what the advance was paid for
type AdvanceCategory string

const (
	AdvanceCategoryInitial   AdvanceCategory = "INITIAL"   // Down payment at project start
	AdvanceCategoryProgress  AdvanceCategory = "PROGRESS"  // Mid-project progress advance
	AdvanceCategoryMaterials AdvanceCategory = "MATERIALS" // Earmarked for materials purchase
	AdvanceCategoryOther     AdvanceCategory = "OTHER"
)

// String returns the string representation of AdvanceCategory
func (c AdvanceCategory) String() string {
	return string(c)
}

// IsValid checks if the category is valid
func (c AdvanceCategory) IsValid() bool {
	switch c {
	case AdvanceCategoryInitial, AdvanceCategoryProgress,
		AdvanceCategoryMaterials, AdvanceCategoryOther:
		return true
	}
	return false
}

// Advance represents an advance payment aggregate root (anticipo).
// It tracks money a client paid ahead of invoicing, earmarked for one
// project, and how much of it has been allocated so far.
type Advance struct {
	shared.AuditedAggregateRoot
	AdvanceNumber       string          `json:"advance_number"`
	ClientID            uuid.UUID       `json:"client_id"`
	ClientName          string          `json:"client_name"`
	ProjectID           uuid.UUID       `json:"project_id"`
	TotalAmount         decimal.Decimal `json:"total_amount"`          // Original amount received
	AllocatedToInvoices decimal.Decimal `json:"allocated_to_invoices"` // Sum applied against invoices
	AllocatedToProject  decimal.Decimal `json:"allocated_to_project"`  // Sum applied directly to the project
	AvailableAmount     decimal.Decimal `json:"available_amount"`      // total - allocated (derived)
	Category            AdvanceCategory `json:"category"`
	Status              AdvanceStatus   `json:"status"`
	ReceivedDate        time.Time       `json:"received_date"`
	ExpirationDate      *time.Time      `json:"expiration_date,omitempty"`
	FullyAllocatedAt    *time.Time      `json:"fully_allocated_at,omitempty"` // Stamped once when available reaches zero
	AppliedToProject    bool            `json:"applied_to_project"`           // True once any direct-to-project allocation happened
	PaymentMethod       string          `json:"payment_method"`
	PaymentReference    string          `json:"payment_reference"`
	BankOrigin          string          `json:"bank_origin"`
	Remark              string          `json:"remark"`
	CancelledAt         *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason        string          `json:"cancel_reason,omitempty"`
	RefundedAt          *time.Time      `json:"refunded_at,omitempty"`
	RefundReason        string          `json:"refund_reason,omitempty"`
}

// NewAdvance creates a new advance in PENDING status with the full
// amount available
func NewAdvance(
	advanceNumber string,
	clientID uuid.UUID,
	clientName string,
	projectID uuid.UUID,
	totalAmount valueobject.Money,
	category AdvanceCategory,
	receivedDate time.Time,
	createdBy *uuid.UUID,
) (*Advance, error) {
	if advanceNumber == "" {
		return nil, shared.NewDomainError("INVALID_ADVANCE_NUMBER", "Advance number cannot be empty")
	}
	if len(advanceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_ADVANCE_NUMBER", "Advance number cannot exceed 50 characters")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client ID cannot be empty")
	}
	if clientName == "" {
		return nil, shared.NewDomainError("INVALID_CLIENT_NAME", "Client name cannot be empty")
	}
	if projectID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROJECT", "Project ID cannot be empty")
	}
	if !category.IsValid() {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Advance category is not valid")
	}
	if totalAmount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	a := &Advance{
		AuditedAggregateRoot: shared.NewAuditedAggregateRoot(createdBy),
		AdvanceNumber:        advanceNumber,
		ClientID:             clientID,
		ClientName:           clientName,
		ProjectID:            projectID,
		TotalAmount:          totalAmount.Amount(),
		AllocatedToInvoices:  decimal.Zero,
		AllocatedToProject:   decimal.Zero,
		AvailableAmount:      totalAmount.Amount(),
		Category:             category,
		Status:               AdvanceStatusPending,
		ReceivedDate:         receivedDate,
	}

	a.AddDomainEvent(NewAdvanceCreatedEvent(a))

	return a, nil
}

// Recompute re-derives the available balance and lifecycle status from
// the stored allocation totals. It is idempotent and never leaves a
// terminal status. The FullyAllocatedAt date is stamped once.
// Returns true if any derived field changed.
func (a *Advance) Recompute(now time.Time) bool {
	if a.Status.IsTerminal() {
		return false
	}

	changed := false

	available := a.TotalAmount.Sub(a.AllocatedToInvoices).Sub(a.AllocatedToProject)
	if !a.AvailableAmount.Equal(available) {
		a.AvailableAmount = available
		changed = true
	}

	if available.LessThanOrEqual(decimal.Zero) {
		if a.Status != AdvanceStatusFullyAllocated {
			a.Status = AdvanceStatusFullyAllocated
			a.AddDomainEvent(NewAdvanceFullyAllocatedEvent(a))
			changed = true
		}
		if a.FullyAllocatedAt == nil {
			t := now
			a.FullyAllocatedAt = &t
			changed = true
		}
	} else if a.Status != AdvanceStatusPending {
		// A reversal freed balance; the advance becomes allocatable again.
		// FullyAllocatedAt is kept as historical record.
		a.Status = AdvanceStatusPending
		changed = true
	}

	return changed
}

// ApplyToInvoices registers an allocation of the given amount against
// invoices. Validation of amount and balance happens in the engine;
// this method only mutates and re-derives.
func (a *Advance) ApplyToInvoices(amount valueobject.Money, now time.Time) {
	a.AllocatedToInvoices = a.AllocatedToInvoices.Add(amount.Amount())
	a.Recompute(now)
	a.AddDomainEvent(NewAdvanceAllocatedEvent(a, amount, false))
	a.UpdatedAt = now
	a.IncrementVersion()
}

// ApplyToProject registers a direct-to-project allocation of the given
// amount. The direct-application flag is stamped on first use.
func (a *Advance) ApplyToProject(amount valueobject.Money, now time.Time) {
	a.AllocatedToProject = a.AllocatedToProject.Add(amount.Amount())
	a.AppliedToProject = true
	a.Recompute(now)
	a.AddDomainEvent(NewAdvanceAllocatedEvent(a, amount, true))
	a.UpdatedAt = now
	a.IncrementVersion()
}

// ReleaseFromInvoices returns a previously allocated amount to the
// available balance (allocation reversal). The advance may move back
// from FULLY_ALLOCATED to PENDING.
func (a *Advance) ReleaseFromInvoices(amount valueobject.Money, now time.Time) error {
	if amount.Amount().GreaterThan(a.AllocatedToInvoices) {
		return shared.NewDomainError("INVALID_REVERSAL", "Reversal amount exceeds the allocated-to-invoices total")
	}
	a.AllocatedToInvoices = a.AllocatedToInvoices.Sub(amount.Amount())
	a.Recompute(now)
	a.UpdatedAt = now
	a.IncrementVersion()
	return nil
}

// Cancel administratively cancels the advance. Only allowed while
// nothing has been allocated from it.
func (a *Advance) Cancel(reason string, now time.Time) error {
	if a.Status.IsTerminal() {
		return ErrIllegalStateTransition
	}
	if a.AllocatedToInvoices.GreaterThan(decimal.Zero) || a.AllocatedToProject.GreaterThan(decimal.Zero) {
		return shared.NewDomainError("HAS_ALLOCATIONS", "Cannot cancel an advance with existing allocations")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}

	a.Status = AdvanceStatusCancelled
	a.CancelledAt = &now
	a.CancelReason = reason
	a.AvailableAmount = decimal.Zero
	a.UpdatedAt = now
	a.IncrementVersion()

	a.AddDomainEvent(NewAdvanceCancelledEvent(a))

	return nil
}

// Refund marks the advance as returned to the client. The unallocated
// remainder is what gets refunded; already-allocated amounts stay
// applied.
func (a *Advance) Refund(reason string, now time.Time) error {
	if a.Status.IsTerminal() {
		return ErrIllegalStateTransition
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Refund reason is required")
	}

	refunded := a.AvailableAmount
	a.Status = AdvanceStatusRefunded
	a.RefundedAt = &now
	a.RefundReason = reason
	a.AvailableAmount = decimal.Zero
	a.UpdatedAt = now
	a.IncrementVersion()

	a.AddDomainEvent(NewAdvanceRefundedEvent(a, valueobject.NewMoneyGTQ(refunded)))

	return nil
}

// SetRemark sets the free-text remark
func (a *Advance) SetRemark(remark string) {
	a.Remark = remark
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
}

// SetPaymentDetails records how the advance was received
func (a *Advance) SetPaymentDetails(method, reference, bankOrigin string) {
	a.PaymentMethod = method
	a.PaymentReference = reference
	a.BankOrigin = bankOrigin
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
}

// Helper methods

// GetTotalAmountMoney returns the total amount as Money
func (a *Advance) GetTotalAmountMoney() valueobject.Money {
	return valueobject.NewMoneyGTQ(a.TotalAmount)
}

// GetAvailableAmountMoney returns the available balance as Money
func (a *Advance) GetAvailableAmountMoney() valueobject.Money {
	return valueobject.NewMoneyGTQ(a.AvailableAmount)
}

// TotalApplied returns the combined amount allocated to invoices and project
func (a *Advance) TotalApplied() decimal.Decimal {
	return a.AllocatedToInvoices.Add(a.AllocatedToProject)
}

// IsPending returns true if the advance still has balance to allocate
func (a *Advance) IsPending() bool {
	return a.Status == AdvanceStatusPending
}

// IsFullyAllocated returns true if the advance is fully allocated
func (a *Advance) IsFullyAllocated() bool {
	return a.Status == AdvanceStatusFullyAllocated
}

// IsExpired returns true if the advance has an expiration date in the past
func (a *Advance) IsExpired(now time.Time) bool {
	if a.ExpirationDate == nil {
		return false
	}
	return now.After(*a.ExpirationDate)
}

// PercentApplied returns the percentage of the total that has been
// allocated (0-100). Returns 0 when the total is zero.
func (a *Advance) PercentApplied() decimal.Decimal {
	if a.TotalAmount.IsZero() {
		return decimal.Zero
	}
	return a.TotalApplied().Mul(decimal.NewFromInt(100)).Div(a.TotalAmount).Round(2)
}

// String returns a short description for logging
func (a *Advance) String() string {
	return fmt.Sprintf("Advance[%s %s available=%s]", a.AdvanceNumber, a.Status, a.AvailableAmount.StringFixed(2))
}
