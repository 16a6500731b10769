package persistence

import (
	"context"
	"errors"

	"github.com/constructora/backend/internal/domain/settlement"
	"github.com/constructora/backend/internal/domain/shared"
	"github.com/constructora/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormAllocationRepository implements AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// FindByID finds an allocation by its ID
func (r *GormAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Allocation, error) {
	var model models.AllocationModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByAdvanceAndInvoice finds the unique allocation for a pair
func (r *GormAllocationRepository) FindByAdvanceAndInvoice(ctx context.Context, advanceID, invoiceID uuid.UUID) (*settlement.Allocation, error) {
	var model models.AllocationModel
	if err := r.db.WithContext(ctx).
		Where("advance_id = ? AND invoice_id = ?", advanceID, invoiceID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByAdvance lists allocations made from an advance
func (r *GormAllocationRepository) FindByAdvance(ctx context.Context, advanceID uuid.UUID) ([]settlement.Allocation, error) {
	var allocationModels []models.AllocationModel
	if err := r.db.WithContext(ctx).
		Where("advance_id = ?", advanceID).
		Order("applied_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	allocations := make([]settlement.Allocation, len(allocationModels))
	for i, model := range allocationModels {
		allocations[i] = *model.ToDomain()
	}
	return allocations, nil
}

// FindByInvoice lists allocations applied to an invoice
func (r *GormAllocationRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]settlement.Allocation, error) {
	var allocationModels []models.AllocationModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("applied_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	allocations := make([]settlement.Allocation, len(allocationModels))
	for i, model := range allocationModels {
		allocations[i] = *model.ToDomain()
	}
	return allocations, nil
}

// Save creates or updates an allocation record
func (r *GormAllocationRepository) Save(ctx context.Context, allocation *settlement.Allocation) error {
	model := models.AllocationModelFromDomain(allocation)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete removes an allocation record (reversal path)
func (r *GormAllocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.AllocationModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SumByAdvance sums the allocated amounts from an advance
func (r *GormAllocationRepository) SumByAdvance(ctx context.Context, advanceID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.AllocationModel{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("advance_id = ?", advanceID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// Ensure GormAllocationRepository implements AllocationRepository
var _ settlement.AllocationRepository = (*GormAllocationRepository)(nil)
