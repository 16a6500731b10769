package models

import (
	"time"

	"github.com/constructora/backend/internal/domain/settlement"
	"github.com/constructora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdvanceModel is the persistence model for the Advance aggregate root.
type AdvanceModel struct {
	AuditedAggregateModel
	AdvanceNumber       string                     `gorm:"type:varchar(50);not null;uniqueIndex:idx_advance_number"`
	ClientID            uuid.UUID                  `gorm:"type:uuid;not null;index"`
	ClientName          string                     `gorm:"type:varchar(200);not null"`
	ProjectID           uuid.UUID                  `gorm:"type:uuid;not null;index"`
	TotalAmount         decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	AllocatedToInvoices decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	AllocatedToProject  decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	AvailableAmount     decimal.Decimal            `gorm:"type:decimal(18,2);not null;index"`
	Category            settlement.AdvanceCategory `gorm:"type:varchar(20);not null"`
	Status              settlement.AdvanceStatus   `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	ReceivedDate        time.Time                  `gorm:"not null"`
	ExpirationDate      *time.Time                 `gorm:"index"`
	FullyAllocatedAt    *time.Time
	AppliedToProject    bool   `gorm:"not null;default:false"`
	PaymentMethod       string `gorm:"type:varchar(30)"`
	PaymentReference    string `gorm:"type:varchar(100)"`
	BankOrigin          string `gorm:"type:varchar(100)"`
	Remark              string `gorm:"type:text"`
	CancelledAt         *time.Time
	CancelReason        string `gorm:"type:varchar(500)"`
	RefundedAt          *time.Time
	RefundReason        string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (AdvanceModel) TableName() string {
	return "advances"
}

// ToDomain converts the persistence model to a domain Advance entity.
func (m *AdvanceModel) ToDomain() *settlement.Advance {
	a := &settlement.Advance{
		AdvanceNumber:       m.AdvanceNumber,
		ClientID:            m.ClientID,
		ClientName:          m.ClientName,
		ProjectID:           m.ProjectID,
		TotalAmount:         m.TotalAmount,
		AllocatedToInvoices: m.AllocatedToInvoices,
		AllocatedToProject:  m.AllocatedToProject,
		AvailableAmount:     m.AvailableAmount,
		Category:            m.Category,
		Status:              m.Status,
		ReceivedDate:        m.ReceivedDate,
		ExpirationDate:      m.ExpirationDate,
		FullyAllocatedAt:    m.FullyAllocatedAt,
		AppliedToProject:    m.AppliedToProject,
		PaymentMethod:       m.PaymentMethod,
		PaymentReference:    m.PaymentReference,
		BankOrigin:          m.BankOrigin,
		Remark:              m.Remark,
		CancelledAt:         m.CancelledAt,
		CancelReason:        m.CancelReason,
		RefundedAt:          m.RefundedAt,
		RefundReason:        m.RefundReason,
	}
	m.PopulateAuditedAggregateRoot(&a.AuditedAggregateRoot)
	return a
}

// FromDomain populates the persistence model from a domain Advance entity.
func (m *AdvanceModel) FromDomain(a *settlement.Advance) {
	m.FromDomainAuditedAggregateRoot(a.AuditedAggregateRoot)
	m.AdvanceNumber = a.AdvanceNumber
	m.ClientID = a.ClientID
	m.ClientName = a.ClientName
	m.ProjectID = a.ProjectID
	m.TotalAmount = a.TotalAmount
	m.AllocatedToInvoices = a.AllocatedToInvoices
	m.AllocatedToProject = a.AllocatedToProject
	m.AvailableAmount = a.AvailableAmount
	m.Category = a.Category
	m.Status = a.Status
	m.ReceivedDate = a.ReceivedDate
	m.ExpirationDate = a.ExpirationDate
	m.FullyAllocatedAt = a.FullyAllocatedAt
	m.AppliedToProject = a.AppliedToProject
	m.PaymentMethod = a.PaymentMethod
	m.PaymentReference = a.PaymentReference
	m.BankOrigin = a.BankOrigin
	m.Remark = a.Remark
	m.CancelledAt = a.CancelledAt
	m.CancelReason = a.CancelReason
	m.RefundedAt = a.RefundedAt
	m.RefundReason = a.RefundReason
}

// AdvanceModelFromDomain creates a new persistence model from a domain Advance.
func AdvanceModelFromDomain(a *settlement.Advance) *AdvanceModel {
	m := &AdvanceModel{}
	m.FromDomain(a)
	return m
}

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	AuditedAggregateModel
	InvoiceNumber      string                 `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_number"`
	ProjectID          uuid.UUID              `gorm:"type:uuid;not null;index"`
	ClientID           uuid.UUID              `gorm:"type:uuid;not null;index"`
	Type               settlement.InvoiceType `gorm:"type:varchar(20);not null"`
	Subtotal           decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	TaxAmount          decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	TotalAmount        decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	PaidAmount         decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	AdvanceAmount      decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	PendingAmount      decimal.Decimal        `gorm:"type:decimal(18,2);not null;index"`
	IssueDate          time.Time              `gorm:"not null"`
	DueDate            *time.Time             `gorm:"index"`
	PaidAt             *time.Time
	Status             settlement.InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	ServiceDescription string                   `gorm:"type:text"`
	ProgressPercent    *decimal.Decimal         `gorm:"type:decimal(5,2)"`
	PaymentMethod      string                   `gorm:"type:varchar(30)"`
	PaymentReference   string                   `gorm:"type:varchar(100)"`
	Remark             string                   `gorm:"type:text"`
	CancelledAt        *time.Time
	CancelReason       string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *settlement.Invoice {
	inv := &settlement.Invoice{
		InvoiceNumber:      m.InvoiceNumber,
		ProjectID:          m.ProjectID,
		ClientID:           m.ClientID,
		Type:               m.Type,
		Subtotal:           m.Subtotal,
		TaxAmount:          m.TaxAmount,
		TotalAmount:        m.TotalAmount,
		PaidAmount:         m.PaidAmount,
		AdvanceAmount:      m.AdvanceAmount,
		PendingAmount:      m.PendingAmount,
		IssueDate:          m.IssueDate,
		DueDate:            m.DueDate,
		PaidAt:             m.PaidAt,
		Status:             m.Status,
		ServiceDescription: m.ServiceDescription,
		ProgressPercent:    m.ProgressPercent,
		PaymentMethod:      m.PaymentMethod,
		PaymentReference:   m.PaymentReference,
		Remark:             m.Remark,
		CancelledAt:        m.CancelledAt,
		CancelReason:       m.CancelReason,
	}
	m.PopulateAuditedAggregateRoot(&inv.AuditedAggregateRoot)
	return inv
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *settlement.Invoice) {
	m.FromDomainAuditedAggregateRoot(inv.AuditedAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.ProjectID = inv.ProjectID
	m.ClientID = inv.ClientID
	m.Type = inv.Type
	m.Subtotal = inv.Subtotal
	m.TaxAmount = inv.TaxAmount
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.AdvanceAmount = inv.AdvanceAmount
	m.PendingAmount = inv.PendingAmount
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.PaidAt = inv.PaidAt
	m.Status = inv.Status
	m.ServiceDescription = inv.ServiceDescription
	m.ProgressPercent = inv.ProgressPercent
	m.PaymentMethod = inv.PaymentMethod
	m.PaymentReference = inv.PaymentReference
	m.Remark = inv.Remark
	m.CancelledAt = inv.CancelledAt
	m.CancelReason = inv.CancelReason
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *settlement.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// AllocationModel is the persistence model for advance-to-invoice
// allocations. The (advance_id, invoice_id) pair is unique; repeated
// applications of the same advance to the same invoice augment the
// existing row.
type AllocationModel struct {
	BaseModel
	AdvanceID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_allocation_pair,priority:1;index"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_allocation_pair,priority:2;index"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	AppliedAt time.Time       `gorm:"not null"`
	AppliedBy *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "advance_allocations"
}

// ToDomain converts the persistence model to a domain Allocation entity.
func (m *AllocationModel) ToDomain() *settlement.Allocation {
	return &settlement.Allocation{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		AdvanceID: m.AdvanceID,
		InvoiceID: m.InvoiceID,
		Amount:    m.Amount,
		AppliedAt: m.AppliedAt,
		AppliedBy: m.AppliedBy,
	}
}

// FromDomain populates the persistence model from a domain Allocation entity.
func (m *AllocationModel) FromDomain(al *settlement.Allocation) {
	m.FromDomainBaseEntity(al.BaseEntity)
	m.AdvanceID = al.AdvanceID
	m.InvoiceID = al.InvoiceID
	m.Amount = al.Amount
	m.AppliedAt = al.AppliedAt
	m.AppliedBy = al.AppliedBy
}

// AllocationModelFromDomain creates a new persistence model from a domain Allocation.
func AllocationModelFromDomain(al *settlement.Allocation) *AllocationModel {
	m := &AllocationModel{}
	m.FromDomain(al)
	return m
}
