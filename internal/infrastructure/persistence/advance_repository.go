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

// GormAdvanceRepository implements AdvanceRepository using GORM
type GormAdvanceRepository struct {
	db *gorm.DB
}

// NewGormAdvanceRepository creates a new GormAdvanceRepository
func NewGormAdvanceRepository(db *gorm.DB) *GormAdvanceRepository {
	return &GormAdvanceRepository{db: db}
}

// FindByID finds an advance by its ID
func (r *GormAdvanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Advance, error) {
	var model models.AdvanceModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByAdvanceNumber finds an advance by its unique number
func (r *GormAdvanceRepository) FindByAdvanceNumber(ctx context.Context, advanceNumber string) (*settlement.Advance, error) {
	var model models.AdvanceModel
	if err := r.db.WithContext(ctx).
		Where("advance_number = ?", advanceNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds advances with filtering
func (r *GormAdvanceRepository) FindAll(ctx context.Context, filter settlement.AdvanceFilter) ([]settlement.Advance, error) {
	var advanceModels []models.AdvanceModel
	query := r.applyAdvanceFilter(r.db.WithContext(ctx).Model(&models.AdvanceModel{}), filter)

	if err := query.Find(&advanceModels).Error; err != nil {
		return nil, err
	}
	advances := make([]settlement.Advance, len(advanceModels))
	for i, model := range advanceModels {
		advances[i] = *model.ToDomain()
	}
	return advances, nil
}

// FindByProject finds advances for a project
func (r *GormAdvanceRepository) FindByProject(ctx context.Context, projectID uuid.UUID, filter settlement.AdvanceFilter) ([]settlement.Advance, error) {
	var advanceModels []models.AdvanceModel
	query := r.db.WithContext(ctx).Model(&models.AdvanceModel{}).
		Where("project_id = ?", projectID)
	query = r.applyAdvanceFilter(query, filter)

	if err := query.Find(&advanceModels).Error; err != nil {
		return nil, err
	}
	advances := make([]settlement.Advance, len(advanceModels))
	for i, model := range advanceModels {
		advances[i] = *model.ToDomain()
	}
	return advances, nil
}

// FindPendingByProject finds advances with available balance for a project
func (r *GormAdvanceRepository) FindPendingByProject(ctx context.Context, projectID uuid.UUID) ([]settlement.Advance, error) {
	var advanceModels []models.AdvanceModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, settlement.AdvanceStatusPending).
		Order("received_date ASC").
		Find(&advanceModels).Error; err != nil {
		return nil, err
	}
	advances := make([]settlement.Advance, len(advanceModels))
	for i, model := range advanceModels {
		advances[i] = *model.ToDomain()
	}
	return advances, nil
}

// Save creates or updates an advance
func (r *GormAdvanceRepository) Save(ctx context.Context, advance *settlement.Advance) error {
	model := models.AdvanceModelFromDomain(advance)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking. The domain mutators
// already incremented the version, so the row must still carry the
// previous one.
func (r *GormAdvanceRepository) SaveWithLock(ctx context.Context, advance *settlement.Advance) error {
	model := models.AdvanceModelFromDomain(advance)
	result := r.db.WithContext(ctx).
		Model(&models.AdvanceModel{}).
		Where("id = ? AND version = ?", advance.ID, advance.Version-1).
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

// Count counts advances matching the filter
func (r *GormAdvanceRepository) Count(ctx context.Context, filter settlement.AdvanceFilter) (int64, error) {
	var count int64
	query := r.applyAdvanceFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.AdvanceModel{}), filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumAvailableByProject sums the available balance across a project's advances
func (r *GormAdvanceRepository) SumAvailableByProject(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.AdvanceModel{}).
		Select("COALESCE(SUM(available_amount), 0) as total").
		Where("project_id = ?", projectID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// SumAvailableByClient sums the available balance across a client's advances
func (r *GormAdvanceRepository) SumAvailableByClient(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.AdvanceModel{}).
		Select("COALESCE(SUM(available_amount), 0) as total").
		Where("client_id = ?", clientID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// ExistsByAdvanceNumber checks if an advance number is already taken
func (r *GormAdvanceRepository) ExistsByAdvanceNumber(ctx context.Context, advanceNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.AdvanceModel{}).
		Where("advance_number = ?", advanceNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GenerateAdvanceNumber generates the next unique advance number
func (r *GormAdvanceRepository) GenerateAdvanceNumber(ctx context.Context) (string, error) {
	// Format: ANT-YYYY-NNNN
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("ANT-%s-", year)

	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&models.AdvanceModel{}).
		Select("advance_number").
		Where("advance_number LIKE ?", prefix+"%").
		Order("advance_number DESC").
		Limit(1).
		Pluck("advance_number", &maxNumber).Error; err != nil {
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

func (r *GormAdvanceRepository) applyAdvanceFilter(query *gorm.DB, filter settlement.AdvanceFilter) *gorm.DB {
	query = r.applyAdvanceFilterWithoutPagination(query, filter)

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
		query = query.Order("received_date DESC")
	}

	return query
}

func (r *GormAdvanceRepository) applyAdvanceFilterWithoutPagination(query *gorm.DB, filter settlement.AdvanceFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("advance_number ILIKE ? OR client_name ILIKE ?", searchPattern, searchPattern)
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
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	if filter.FromDate != nil {
		query = query.Where("received_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("received_date <= ?", *filter.ToDate)
	}
	if pid, ok := filter.Filters["project_id"]; ok {
		query = query.Where("project_id = ?", pid)
	}
	if cid, ok := filter.Filters["client_id"]; ok {
		query = query.Where("client_id = ?", cid)
	}

	return query
}

// Ensure GormAdvanceRepository implements AdvanceRepository
var _ settlement.AdvanceRepository = (*GormAdvanceRepository)(nil)
