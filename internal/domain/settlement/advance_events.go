package settlement

import (
	"time"

	"github.com/constructora/backend/internal/domain/shared"
	"github.com/constructora/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdvanceCreatedEvent is raised when a new advance is recorded
type AdvanceCreatedEvent struct {
	shared.BaseDomainEvent
	AdvanceID     uuid.UUID       `json:"advance_id"`
	AdvanceNumber string          `json:"advance_number"`
	ClientID      uuid.UUID       `json:"client_id"`
	ClientName    string          `json:"client_name"`
	ProjectID     uuid.UUID       `json:"project_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Category      AdvanceCategory `json:"category"`
	ReceivedDate  time.Time       `json:"received_date"`
}

// EventType returns the event type name
func (e *AdvanceCreatedEvent) EventType() string {
	return "AdvanceCreated"
}

// NewAdvanceCreatedEvent creates a new AdvanceCreatedEvent
func NewAdvanceCreatedEvent(a *Advance) *AdvanceCreatedEvent {
	return &AdvanceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AdvanceCreated", "Advance", a.ID),
		AdvanceID:       a.ID,
		AdvanceNumber:   a.AdvanceNumber,
		ClientID:        a.ClientID,
		ClientName:      a.ClientName,
		ProjectID:       a.ProjectID,
		TotalAmount:     a.TotalAmount,
		Category:        a.Category,
		ReceivedDate:    a.ReceivedDate,
	}
}

// AdvanceAllocatedEvent is raised when part of an advance is allocated,
// either against invoices or directly to the project
type AdvanceAllocatedEvent struct {
	shared.BaseDomainEvent
	AdvanceID       uuid.UUID       `json:"advance_id"`
	AdvanceNumber   string          `json:"advance_number"`
	ProjectID       uuid.UUID       `json:"project_id"`
	Amount          decimal.Decimal `json:"amount"`
	DirectToProject bool            `json:"direct_to_project"`
	AvailableAmount decimal.Decimal `json:"available_amount"`
	Status          AdvanceStatus   `json:"status"`
}

// EventType returns the event type name
func (e *AdvanceAllocatedEvent) EventType() string {
	return "AdvanceAllocated"
}

// NewAdvanceAllocatedEvent creates a new AdvanceAllocatedEvent
func NewAdvanceAllocatedEvent(a *Advance, amount valueobject.Money, directToProject bool) *AdvanceAllocatedEvent {
	return &AdvanceAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AdvanceAllocated", "Advance", a.ID),
		AdvanceID:       a.ID,
		AdvanceNumber:   a.AdvanceNumber,
		ProjectID:       a.ProjectID,
		Amount:          amount.Amount(),
		DirectToProject: directToProject,
		AvailableAmount: a.AvailableAmount,
		Status:          a.Status,
	}
}

// AdvanceFullyAllocatedEvent is raised when the available balance reaches zero
type AdvanceFullyAllocatedEvent struct {
	shared.BaseDomainEvent
	AdvanceID     uuid.UUID       `json:"advance_id"`
	AdvanceNumber string          `json:"advance_number"`
	ProjectID     uuid.UUID       `json:"project_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// EventType returns the event type name
func (e *AdvanceFullyAllocatedEvent) EventType() string {
	return "AdvanceFullyAllocated"
}

// NewAdvanceFullyAllocatedEvent creates a new AdvanceFullyAllocatedEvent
func NewAdvanceFullyAllocatedEvent(a *Advance) *AdvanceFullyAllocatedEvent {
	return &AdvanceFullyAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AdvanceFullyAllocated", "Advance", a.ID),
		AdvanceID:       a.ID,
		AdvanceNumber:   a.AdvanceNumber,
		ProjectID:       a.ProjectID,
		TotalAmount:     a.TotalAmount,
	}
}

// AdvanceCancelledEvent is raised when an advance is administratively cancelled
type AdvanceCancelledEvent struct {
	shared.BaseDomainEvent
	AdvanceID     uuid.UUID       `json:"advance_id"`
	AdvanceNumber string          `json:"advance_number"`
	ClientID      uuid.UUID       `json:"client_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CancelReason  string          `json:"cancel_reason"`
	CancelledAt   time.Time       `json:"cancelled_at"`
}

// EventType returns the event type name
func (e *AdvanceCancelledEvent) EventType() string {
	return "AdvanceCancelled"
}

// NewAdvanceCancelledEvent creates a new AdvanceCancelledEvent
func NewAdvanceCancelledEvent(a *Advance) *AdvanceCancelledEvent {
	cancelledAt := time.Now()
	if a.CancelledAt != nil {
		cancelledAt = *a.CancelledAt
	}
	return &AdvanceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AdvanceCancelled", "Advance", a.ID),
		AdvanceID:       a.ID,
		AdvanceNumber:   a.AdvanceNumber,
		ClientID:        a.ClientID,
		TotalAmount:     a.TotalAmount,
		CancelReason:    a.CancelReason,
		CancelledAt:     cancelledAt,
	}
}

// AdvanceRefundedEvent is raised when the unallocated remainder of an
// advance is returned to the client
type AdvanceRefundedEvent struct {
	shared.BaseDomainEvent
	AdvanceID      uuid.UUID       `json:"advance_id"`
	AdvanceNumber  string          `json:"advance_number"`
	ClientID       uuid.UUID       `json:"client_id"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	RefundReason   string          `json:"refund_reason"`
	RefundedAt     time.Time       `json:"refunded_at"`
}

// EventType returns the event type name
func (e *AdvanceRefundedEvent) EventType() string {
	return "AdvanceRefunded"
}

// NewAdvanceRefundedEvent creates a new AdvanceRefundedEvent
func NewAdvanceRefundedEvent(a *Advance, refunded valueobject.Money) *AdvanceRefundedEvent {
	refundedAt := time.Now()
	if a.RefundedAt != nil {
		refundedAt = *a.RefundedAt
	}
	return &AdvanceRefundedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AdvanceRefunded", "Advance", a.ID),
		AdvanceID:       a.ID,
		AdvanceNumber:   a.AdvanceNumber,
		ClientID:        a.ClientID,
		RefundedAmount:  refunded.Amount(),
		RefundReason:    a.RefundReason,
		RefundedAt:      refundedAt,
	}
}
