package settlement

import (
	"fmt"
	"time"

	"github.com/constructora/backend/internal/domain/shared"
	"github.com/constructora/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusIssued    InvoiceStatus = "ISSUED"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusSent,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// CanReceiveAllocation returns true if advances can be applied in this status
func (s InvoiceStatus) CanReceiveAllocation() bool {
	return s != InvoiceStatusPaid && s != InvoiceStatusCancelled
}

// InvoiceType classifies what the invoice bills for
type InvoiceType string

const (
	InvoiceTypeProgress   InvoiceType = "PROGRESS"   // Progress billing (estimación)
	InvoiceTypeFinal      InvoiceType = "FINAL"      // Final project invoice
	InvoiceTypeAdditional InvoiceType = "ADDITIONAL" // Change orders / extras
	InvoiceTypeRetention  InvoiceType = "RETENTION"  // Retention release
	InvoiceTypeOther      InvoiceType = "OTHER"
)

// String returns the string representation of InvoiceType
func (t InvoiceType) String() string {
	return string(t)
}

// IsValid checks if the invoice type is valid
func (t InvoiceType) IsValid() bool {
	switch t {
	case InvoiceTypeProgress, InvoiceTypeFinal, InvoiceTypeAdditional,
		InvoiceTypeRetention, InvoiceTypeOther:
		return true
	}
	return false
}

// Invoice represents an invoice aggregate root (factura).
// The pending balance is derived: total - paid - advance coverage.
// It may go negative when coverage exceeds the total; Recompute then
// normalizes the status to PAID.
type Invoice struct {
	shared.AuditedAggregateRoot
	InvoiceNumber      string           `json:"invoice_number"`
	ProjectID          uuid.UUID        `json:"project_id"`
	ClientID           uuid.UUID        `json:"client_id"`
	Type               InvoiceType      `json:"type"`
	Subtotal           decimal.Decimal  `json:"subtotal"`
	TaxAmount          decimal.Decimal  `json:"tax_amount"`
	TotalAmount        decimal.Decimal  `json:"total_amount"`   // subtotal + tax unless overridden
	PaidAmount         decimal.Decimal  `json:"paid_amount"`    // Direct payments received
	AdvanceAmount      decimal.Decimal  `json:"advance_amount"` // Covered by advance allocations
	PendingAmount      decimal.Decimal  `json:"pending_amount"` // total - paid - advance (derived)
	IssueDate          time.Time        `json:"issue_date"`
	DueDate            *time.Time       `json:"due_date,omitempty"`
	PaidAt             *time.Time       `json:"paid_at,omitempty"` // Stamped once when fully covered
	Status             InvoiceStatus    `json:"status"`
	ServiceDescription string           `json:"service_description"`
	ProgressPercent    *decimal.Decimal `json:"progress_percent,omitempty"` // For progress invoices
	PaymentMethod      string           `json:"payment_method"`
	PaymentReference   string           `json:"payment_reference"`
	Remark             string           `json:"remark"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
	CancelReason       string           `json:"cancel_reason,omitempty"`
}

// NewInvoice creates a new invoice in DRAFT status.
// Total defaults to subtotal + tax; pass a non-nil totalOverride for
// negotiated round totals.
func NewInvoice(
	invoiceNumber string,
	projectID uuid.UUID,
	clientID uuid.UUID,
	invoiceType InvoiceType,
	subtotal valueobject.Money,
	taxAmount valueobject.Money,
	totalOverride *valueobject.Money,
	issueDate time.Time,
	dueDate *time.Time,
	createdBy *uuid.UUID,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if projectID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROJECT", "Project ID cannot be empty")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client ID cannot be empty")
	}
	if !invoiceType.IsValid() {
		return nil, shared.NewDomainError("INVALID_INVOICE_TYPE", "Invoice type is not valid")
	}
	if subtotal.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if taxAmount.Amount().IsNegative() {
		return nil, ErrInvalidAmount
	}

	total := subtotal.Amount().Add(taxAmount.Amount())
	if totalOverride != nil {
		if totalOverride.Amount().LessThanOrEqual(decimal.Zero) {
			return nil, ErrInvalidAmount
		}
		total = totalOverride.Amount()
	}
	if dueDate != nil && dueDate.Before(issueDate) {
		return nil, shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot precede the issue date")
	}

	inv := &Invoice{
		AuditedAggregateRoot: shared.NewAuditedAggregateRoot(createdBy),
		InvoiceNumber:        invoiceNumber,
		ProjectID:            projectID,
		ClientID:             clientID,
		Type:                 invoiceType,
		Subtotal:             subtotal.Amount(),
		TaxAmount:            taxAmount.Amount(),
		TotalAmount:          total,
		PaidAmount:           decimal.Zero,
		AdvanceAmount:        decimal.Zero,
		PendingAmount:        total,
		IssueDate:            issueDate,
		DueDate:              dueDate,
		Status:               InvoiceStatusDraft,
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// Recompute re-derives the pending balance and lifecycle status.
// Evaluation order: paid check first (PaidAt stamped once), then
// overdue. A CANCELLED invoice is never overridden and a PAID invoice
// never regresses; correcting a paid invoice is an explicit
// administrative action. Idempotent; returns true if anything changed.
func (inv *Invoice) Recompute(now time.Time) bool {
	if inv.Status == InvoiceStatusCancelled {
		return false
	}

	changed := false

	pending := inv.TotalAmount.Sub(inv.PaidAmount).Sub(inv.AdvanceAmount)
	if !inv.PendingAmount.Equal(pending) {
		inv.PendingAmount = pending
		changed = true
	}

	if pending.LessThanOrEqual(decimal.Zero) {
		if inv.Status != InvoiceStatusPaid {
			inv.Status = InvoiceStatusPaid
			inv.AddDomainEvent(NewInvoicePaidEvent(inv))
			changed = true
		}
		if inv.PaidAt == nil {
			t := now
			inv.PaidAt = &t
			changed = true
		}
		return changed
	}

	if inv.Status == InvoiceStatusPaid {
		// Balance resurfaced after a reversal; the paid status is kept.
		return changed
	}

	if inv.DueDate != nil && pastDue(now, *inv.DueDate) {
		if inv.Status != InvoiceStatusOverdue {
			inv.Status = InvoiceStatusOverdue
			inv.AddDomainEvent(NewInvoiceOverdueEvent(inv, now))
			changed = true
		}
	}

	return changed
}

// Issue moves a draft invoice to ISSUED
func (inv *Invoice) Issue(now time.Time) error {
	if inv.Status != InvoiceStatusDraft {
		return ErrIllegalStateTransition
	}
	inv.Status = InvoiceStatusIssued
	inv.UpdatedAt = now
	inv.IncrementVersion()
	inv.AddDomainEvent(NewInvoiceIssuedEvent(inv))
	return nil
}

// MarkSent records that the invoice was delivered to the client
func (inv *Invoice) MarkSent(now time.Time) error {
	if inv.Status != InvoiceStatusIssued {
		return ErrIllegalStateTransition
	}
	inv.Status = InvoiceStatusSent
	inv.UpdatedAt = now
	inv.IncrementVersion()
	return nil
}

// RegisterPayment records a direct client payment and recomputes the
// balance and status
func (inv *Invoice) RegisterPayment(amount valueobject.Money, method, reference string, now time.Time) error {
	if !inv.Status.CanReceiveAllocation() {
		return ErrIllegalStateTransition
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	inv.PaidAmount = inv.PaidAmount.Add(amount.Amount())
	if method != "" {
		inv.PaymentMethod = method
	}
	if reference != "" {
		inv.PaymentReference = reference
	}
	inv.Recompute(now)
	inv.AddDomainEvent(NewInvoicePaymentRegisteredEvent(inv, amount))
	inv.UpdatedAt = now
	inv.IncrementVersion()

	return nil
}

// ApplyAdvance increases the advance coverage. Validation of amount
// and eligibility happens in the engine; this method only mutates and
// re-derives.
func (inv *Invoice) ApplyAdvance(amount valueobject.Money, now time.Time) {
	inv.AdvanceAmount = inv.AdvanceAmount.Add(amount.Amount())
	inv.Recompute(now)
	inv.UpdatedAt = now
	inv.IncrementVersion()
}

// ReleaseAdvance removes previously applied advance coverage
// (allocation reversal)
func (inv *Invoice) ReleaseAdvance(amount valueobject.Money, now time.Time) error {
	if amount.Amount().GreaterThan(inv.AdvanceAmount) {
		return shared.NewDomainError("INVALID_REVERSAL", "Reversal amount exceeds the invoice's advance coverage")
	}
	inv.AdvanceAmount = inv.AdvanceAmount.Sub(amount.Amount())
	inv.Recompute(now)
	inv.UpdatedAt = now
	inv.IncrementVersion()
	return nil
}

// Cancel administratively cancels the invoice. Recompute never leaves
// this status afterwards.
func (inv *Invoice) Cancel(reason string, now time.Time) error {
	if inv.Status == InvoiceStatusCancelled || inv.Status == InvoiceStatusPaid {
		return ErrIllegalStateTransition
	}
	if inv.AdvanceAmount.GreaterThan(decimal.Zero) {
		return shared.NewDomainError("HAS_ALLOCATIONS", "Reverse the advance allocations before cancelling the invoice")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}

	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceCancelledEvent(inv))

	return nil
}

// SetProgressPercent records the completion percentage billed by a
// progress invoice
func (inv *Invoice) SetProgressPercent(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewDomainError("INVALID_PROGRESS", "Progress percent must be between 0 and 100")
	}
	inv.ProgressPercent = &percent
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// SetServiceDescription sets the billed-work description
func (inv *Invoice) SetServiceDescription(description string) {
	inv.ServiceDescription = description
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
}

// SetRemark sets the free-text remark
func (inv *Invoice) SetRemark(remark string) {
	inv.Remark = remark
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
}

// Helper methods

// GetTotalAmountMoney returns the total as Money
func (inv *Invoice) GetTotalAmountMoney() valueobject.Money {
	return valueobject.NewMoneyGTQ(inv.TotalAmount)
}

// GetPendingAmountMoney returns the pending balance as Money
func (inv *Invoice) GetPendingAmountMoney() valueobject.Money {
	return valueobject.NewMoneyGTQ(inv.PendingAmount)
}

// CoveredAmount returns the combined direct payments and advance coverage
func (inv *Invoice) CoveredAmount() decimal.Decimal {
	return inv.PaidAmount.Add(inv.AdvanceAmount)
}

// IsPaid returns true if the invoice is fully covered
func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}

// IsCancelled returns true if the invoice was cancelled
func (inv *Invoice) IsCancelled() bool {
	return inv.Status == InvoiceStatusCancelled
}

// IsOverdue returns true if the invoice is past due and not settled
func (inv *Invoice) IsOverdue(now time.Time) bool {
	if inv.Status == InvoiceStatusPaid || inv.Status == InvoiceStatusCancelled {
		return false
	}
	if inv.DueDate == nil {
		return false
	}
	return pastDue(now, *inv.DueDate)
}

// pastDue reports whether now falls on a later calendar day than the
// due date. Due dates carry no time component, so the invoice stays
// current through its entire due day. Both sides compare in UTC.
func pastDue(now, due time.Time) bool {
	return startOfDay(now).After(startOfDay(due))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysToDue returns the signed number of days until the due date;
// negative means overdue. Returns nil when no due date is set.
func (inv *Invoice) DaysToDue(now time.Time) *int {
	if inv.DueDate == nil {
		return nil
	}
	// calendar-day difference: 0 on the due day itself
	days := int(startOfDay(*inv.DueDate).Sub(startOfDay(now)).Hours() / 24)
	return &days
}

// PercentPaid returns the percentage of the total covered by payments
// and advances (0-100). Returns 0 when the total is zero.
func (inv *Invoice) PercentPaid() decimal.Decimal {
	if inv.TotalAmount.IsZero() {
		return decimal.Zero
	}
	return inv.CoveredAmount().Mul(decimal.NewFromInt(100)).Div(inv.TotalAmount).Round(2)
}

// String returns a short description for logging
func (inv *Invoice) String() string {
	return fmt.Sprintf("Invoice[%s %s pending=%s]", inv.InvoiceNumber, inv.Status, inv.PendingAmount.StringFixed(2))
}
