package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/constructora/backend/internal/domain/settlement"
	"github.com/constructora/backend/internal/domain/shared"
	"github.com/constructora/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInvoiceNumber finds an invoice by its unique number
func (r *GormInvoiceRepository) FindByInvoiceNumber(ctx context.Context, invoiceNumber string) (*settlement.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("invoice_number = ?", invoiceNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds invoices with filtering
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter settlement.InvoiceFilter) ([]settlement.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.applyInvoiceFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), filter)

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]settlement.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// FindByProject finds invoices for a project
func (r *GormInvoiceRepository) FindByProject(ctx context.Context, projectID uuid.UUID, filter settlement.InvoiceFilter) ([]settlement.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("project_id = ?", projectID)
	query = r.applyInvoiceFilter(query, filter)

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]settlement.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// FindDueForRecompute finds unsettled invoices whose due date passed
// before the given time. PAID and CANCELLED invoices are frozen and
// never part of the batch.
func (r *GormInvoiceRepository) FindDueForRecompute(ctx context.Context, asOf time.Time) ([]settlement.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("due_date IS NOT NULL AND due_date < ? AND status NOT IN ?", asOf,
			[]settlement.InvoiceStatus{settlement.InvoiceStatusPaid, settlement.InvoiceStatusCancelled}).
		Order("due_date ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]settlement.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *settlement.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking. The domain mutators
// already incremented the version, so the row must still carry the
// previous one.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *settlement.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
		Select("*").
		Omit("id", "created_at").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Count counts invoices matching the filter
func (r *GormInvoiceRepository) Count(ctx context.Context, filter settlement.InvoiceFilter) (int64, error) {
	var count int64
	query := r.applyInvoiceFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumPendingByProject sums pending balances across a project's invoices
func (r *GormInvoiceRepository) SumPendingByProject(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("COALESCE(SUM(pending_amount), 0) as total").
		Where("project_id = ?", projectID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// SumPendingByClient sums pending balances across a client's invoices
func (r *GormInvoiceRepository) SumPendingByClient(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("COALESCE(SUM(pending_amount), 0) as total").
		Where("client_id = ?", clientID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// ExistsByInvoiceNumber checks if an invoice number is already taken
func (r *GormInvoiceRepository) ExistsByInvoiceNumber(ctx context.Context, invoiceNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("invoice_number = ?", invoiceNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GenerateInvoiceNumber generates the next unique invoice number
func (r *GormInvoiceRepository) GenerateInvoiceNumber(ctx context.Context) (string, error) {
	// Format: FAC-YYYY-NNNN
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("FAC-%s-", year)

	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("invoice_number").
		Where("invoice_number LIKE ?", prefix+"%").
		Order("invoice_number DESC").
		Limit(1).
		Pluck("invoice_number", &maxNumber).Error; err != nil {
		return "", err
	}

	var nextNum int
	if maxNumber != "" {
		parts := strings.Split(maxNumber, "-")
		if len(parts) == 3 {
			fmt.Sscanf(parts[2], "%d", &nextNum)
		}
	}
	nextNum++

	return fmt.Sprintf("%s%04d", prefix, nextNum), nil
}

func (r *GormInvoiceRepository) applyInvoiceFilter(query *gorm.DB, filter settlement.InvoiceFilter) *gorm.DB {
	query = r.applyInvoiceFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("issue_date DESC")
	}

	return query
}

func (r *GormInvoiceRepository) applyInvoiceFilterWithoutPagination(query *gorm.DB, filter settlement.InvoiceFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("invoice_number ILIKE ? OR service_description ILIKE ?", searchPattern, searchPattern)
	}

	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.FromDate != nil {
		query = query.Where("issue_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("issue_date <= ?", *filter.ToDate)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date IS NOT NULL AND due_date < ?", *filter.DueBefore)
	}
	if filter.Overdue != nil && *filter.Overdue {
		query = query.Where("status = ?", settlement.InvoiceStatusOverdue)
	}
	if pid, ok := filter.Filters["project_id"]; ok {
		query = query.Where("project_id = ?", pid)
	}
	if cid, ok := filter.Filters["client_id"]; ok {
		query = query.Where("client_id = ?", cid)
	}

	return query
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ settlement.InvoiceRepository = (*GormInvoiceRepository)(nil)
