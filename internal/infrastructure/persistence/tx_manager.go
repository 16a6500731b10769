package persistence

import (
	"context"

	"github.com/constructora/backend/internal/domain/settlement"
	"gorm.io/gorm"
)

// GormTxManager implements settlement.TxManager on a GORM connection.
// InTx opens a database transaction and hands the caller repositories
// bound to it, so every save inside the closure commits or rolls back
// as one unit.
type GormTxManager struct {
	db *gorm.DB
}

// NewGormTxManager creates a new GormTxManager
func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

// InTx runs fn inside a transaction. Any error returned by fn rolls
// the whole transaction back.
func (m *GormTxManager) InTx(ctx context.Context, fn func(ctx context.Context, repos settlement.Repositories) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := settlement.Repositories{
			Advances:    NewGormAdvanceRepository(tx),
			Invoices:    NewGormInvoiceRepository(tx),
			Allocations: NewGormAllocationRepository(tx),
		}
		return fn(ctx, repos)
	})
}

// Ensure GormTxManager implements TxManager
var _ settlement.TxManager = (*GormTxManager)(nil)
