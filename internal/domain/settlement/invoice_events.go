package settlement

import (
	"time"

	"github.com/constructora/backend/internal/domain/shared"
	"github.com/constructora/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceCreatedEvent is raised when a new invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	ProjectID     uuid.UUID       `json:"project_id"`
	ClientID      uuid.UUID       `json:"client_id"`
	Type          InvoiceType     `json:"type"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return "InvoiceCreated"
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceCreated", "Invoice", inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		ProjectID:       inv.ProjectID,
		ClientID:        inv.ClientID,
		Type:            inv.Type,
		TotalAmount:     inv.TotalAmount,
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
	}
}

// InvoiceIssuedEvent is raised when a draft invoice is issued
type InvoiceIssuedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// EventType returns the event type name
func (e *InvoiceIssuedEvent) EventType() string {
	return "InvoiceIssued"
}

// NewInvoiceIssuedEvent creates a new InvoiceIssuedEvent
func NewInvoiceIssuedEvent(inv *Invoice) *InvoiceIssuedEvent {
	return &InvoiceIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceIssued", "Invoice", inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		TotalAmount:     inv.TotalAmount,
	}
}

// InvoicePaidEvent is raised when the pending balance reaches zero
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	ProjectID     uuid.UUID       `json:"project_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	AdvanceAmount decimal.Decimal `json:"advance_amount"`
}

// EventType returns the event type name
func (e *InvoicePaidEvent) EventType() string {
	return "InvoicePaid"
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoicePaid", "Invoice", inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		ProjectID:       inv.ProjectID,
		TotalAmount:     inv.TotalAmount,
		PaidAmount:      inv.PaidAmount,
		AdvanceAmount:   inv.AdvanceAmount,
	}
}

// InvoiceOverdueEvent is raised when a recomputation finds the invoice
// past its due date with balance still pending
type InvoiceOverdueEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	ClientID      uuid.UUID       `json:"client_id"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	DetectedAt    time.Time       `json:"detected_at"`
}

// EventType returns the event type name
func (e *InvoiceOverdueEvent) EventType() string {
	return "InvoiceOverdue"
}

// NewInvoiceOverdueEvent creates a new InvoiceOverdueEvent
func NewInvoiceOverdueEvent(inv *Invoice, detectedAt time.Time) *InvoiceOverdueEvent {
	return &InvoiceOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceOverdue", "Invoice", inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		ClientID:        inv.ClientID,
		PendingAmount:   inv.PendingAmount,
		DueDate:         inv.DueDate,
		DetectedAt:      detectedAt,
	}
}

// InvoicePaymentRegisteredEvent is raised when a direct payment is recorded
type InvoicePaymentRegisteredEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	Status        InvoiceStatus   `json:"status"`
}

// EventType returns the event type name
func (e *InvoicePaymentRegisteredEvent) EventType() string {
	return "InvoicePaymentRegistered"
}

// NewInvoicePaymentRegisteredEvent creates a new InvoicePaymentRegisteredEvent
func NewInvoicePaymentRegisteredEvent(inv *Invoice, amount valueobject.Money) *InvoicePaymentRegisteredEvent {
	return &InvoicePaymentRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoicePaymentRegistered", "Invoice", inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		PaymentAmount:   amount.Amount(),
		PaidAmount:      inv.PaidAmount,
		PendingAmount:   inv.PendingAmount,
		Status:          inv.Status,
	}
}

// InvoiceCancelledEvent is raised when an invoice is administratively cancelled
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	ClientID      uuid.UUID       `json:"client_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CancelReason  string          `json:"cancel_reason"`
	CancelledAt   time.Time       `json:"cancelled_at"`
}

// EventType returns the event type name
func (e *InvoiceCancelledEvent) EventType() string {
	return "InvoiceCancelled"
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice) *InvoiceCancelledEvent {
	cancelledAt := time.Now()
	if inv.CancelledAt != nil {
		cancelledAt = *inv.CancelledAt
	}
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceCancelled", "Invoice", inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		ClientID:        inv.ClientID,
		TotalAmount:     inv.TotalAmount,
		CancelReason:    inv.CancelReason,
		CancelledAt:     cancelledAt,
	}
}
