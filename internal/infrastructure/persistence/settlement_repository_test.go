package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/constructora/backend/internal/domain/settlement"
	"github.com/constructora/backend/internal/domain/shared"
	"github.com/constructora/backend/internal/domain/shared/valueobject"
	"github.com/constructora/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSettlementTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.AdvanceModel{}, &models.InvoiceModel{}, &models.AllocationModel{})
	require.NoError(t, err)

	return db
}

func mustGTQ(t *testing.T, s string) valueobject.Money {
	t.Helper()
	m, err := valueobject.NewMoneyGTQFromString(s)
	require.NoError(t, err)
	return m
}

func newPersistedAdvance(t *testing.T, repo *GormAdvanceRepository, number string, projectID, clientID uuid.UUID, total string) *settlement.Advance {
	t.Helper()
	advance, err := settlement.NewAdvance(number, clientID, "Constructora del Sur",
		projectID, mustGTQ(t, total), settlement.AdvanceCategoryInitial,
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), advance))
	return advance
}

func newPersistedInvoice(t *testing.T, repo *GormInvoiceRepository, number string, projectID, clientID uuid.UUID, subtotal string, due *time.Time) *settlement.Invoice {
	t.Helper()
	invoice, err := settlement.NewInvoice(number, projectID, clientID,
		settlement.InvoiceTypeProgress, mustGTQ(t, subtotal), mustGTQ(t, "0.00"), nil,
		time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), due, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), invoice))
	return invoice
}

func TestGormAdvanceRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("save and find round trip", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormAdvanceRepository(db)
		projectID, clientID := uuid.New(), uuid.New()

		advance := newPersistedAdvance(t, repo, "ANT-2026-0001", projectID, clientID, "100000.00")

		found, err := repo.FindByID(ctx, advance.ID)
		require.NoError(t, err)
		assert.Equal(t, advance.AdvanceNumber, found.AdvanceNumber)
		assert.Equal(t, settlement.AdvanceStatusPending, found.Status)
		assert.True(t, found.TotalAmount.Equal(decimal.NewFromInt(100000)))
		assert.True(t, found.AvailableAmount.Equal(decimal.NewFromInt(100000)))
		assert.Equal(t, 1, found.Version)

		byNumber, err := repo.FindByAdvanceNumber(ctx, "ANT-2026-0001")
		require.NoError(t, err)
		assert.Equal(t, advance.ID, byNumber.ID)
	})

	t.Run("find by id returns NOT_FOUND for missing row", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormAdvanceRepository(db)

		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("save with lock persists mutation and bumps stored version", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormAdvanceRepository(db)
		advance := newPersistedAdvance(t, repo, "ANT-2026-0002", uuid.New(), uuid.New(), "50000.00")

		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		advance.ApplyToInvoices(mustGTQ(t, "20000.00"), now)
		require.Equal(t, 2, advance.Version)

		require.NoError(t, repo.SaveWithLock(ctx, advance))

		found, err := repo.FindByID(ctx, advance.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, found.Version)
		assert.True(t, found.AllocatedToInvoices.Equal(decimal.NewFromInt(20000)))
		assert.True(t, found.AvailableAmount.Equal(decimal.NewFromInt(30000)))
	})

	t.Run("save with lock rejects stale version", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormAdvanceRepository(db)
		advance := newPersistedAdvance(t, repo, "ANT-2026-0003", uuid.New(), uuid.New(), "50000.00")

		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		// A second in-memory copy mutates and saves first
		winner, err := repo.FindByID(ctx, advance.ID)
		require.NoError(t, err)
		winner.ApplyToInvoices(mustGTQ(t, "10000.00"), now)
		require.NoError(t, repo.SaveWithLock(ctx, winner))

		advance.ApplyToInvoices(mustGTQ(t, "5000.00"), now)
		err = repo.SaveWithLock(ctx, advance)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

		// The winner's state is untouched by the losing save
		found, err := repo.FindByID(ctx, advance.ID)
		require.NoError(t, err)
		assert.True(t, found.AllocatedToInvoices.Equal(decimal.NewFromInt(10000)))
	})

	t.Run("save with lock writes zero balances", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormAdvanceRepository(db)
		advance := newPersistedAdvance(t, repo, "ANT-2026-0004", uuid.New(), uuid.New(), "50000.00")

		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		advance.ApplyToInvoices(mustGTQ(t, "50000.00"), now)
		require.NoError(t, repo.SaveWithLock(ctx, advance))

		found, err := repo.FindByID(ctx, advance.ID)
		require.NoError(t, err)
		assert.True(t, found.AvailableAmount.IsZero(), "available must persist as zero, got %s", found.AvailableAmount)
		assert.Equal(t, settlement.AdvanceStatusFullyAllocated, found.Status)
		require.NotNil(t, found.FullyAllocatedAt)
	})

	t.Run("pending by project excludes fully allocated advances", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormAdvanceRepository(db)
		projectID := uuid.New()

		pending := newPersistedAdvance(t, repo, "ANT-2026-0005", projectID, uuid.New(), "50000.00")
		exhausted := newPersistedAdvance(t, repo, "ANT-2026-0006", projectID, uuid.New(), "30000.00")
		newPersistedAdvance(t, repo, "ANT-2026-0007", uuid.New(), uuid.New(), "10000.00")

		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		exhausted.ApplyToInvoices(mustGTQ(t, "30000.00"), now)
		require.NoError(t, repo.SaveWithLock(ctx, exhausted))

		found, err := repo.FindPendingByProject(ctx, projectID)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, pending.ID, found[0].ID)
	})

	t.Run("sums available by project and client", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormAdvanceRepository(db)
		projectID, clientID := uuid.New(), uuid.New()

		a1 := newPersistedAdvance(t, repo, "ANT-2026-0008", projectID, clientID, "40000.00")
		newPersistedAdvance(t, repo, "ANT-2026-0009", projectID, uuid.New(), "10000.00")

		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		a1.ApplyToProject(mustGTQ(t, "15000.00"), now)
		require.NoError(t, repo.SaveWithLock(ctx, a1))

		byProject, err := repo.SumAvailableByProject(ctx, projectID)
		require.NoError(t, err)
		assert.True(t, byProject.Equal(decimal.NewFromInt(35000)), "got %s", byProject)

		byClient, err := repo.SumAvailableByClient(ctx, clientID)
		require.NoError(t, err)
		assert.True(t, byClient.Equal(decimal.NewFromInt(25000)), "got %s", byClient)
	})

	t.Run("filters by status and project", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormAdvanceRepository(db)
		projectID := uuid.New()

		newPersistedAdvance(t, repo, "ANT-2026-0010", projectID, uuid.New(), "10000.00")
		other := newPersistedAdvance(t, repo, "ANT-2026-0011", projectID, uuid.New(), "20000.00")

		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		other.ApplyToInvoices(mustGTQ(t, "20000.00"), now)
		require.NoError(t, repo.SaveWithLock(ctx, other))

		status := settlement.AdvanceStatusFullyAllocated
		filter := settlement.AdvanceFilter{ProjectID: &projectID, Status: &status}
		found, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, other.ID, found[0].ID)

		count, err := repo.Count(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("exists and number generation", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormAdvanceRepository(db)

		exists, err := repo.ExistsByAdvanceNumber(ctx, "ANT-2026-0001")
		require.NoError(t, err)
		assert.False(t, exists)

		year := time.Now().Format("2006")
		newPersistedAdvance(t, repo, "ANT-"+year+"-0041", uuid.New(), uuid.New(), "10000.00")

		exists, err = repo.ExistsByAdvanceNumber(ctx, "ANT-"+year+"-0041")
		require.NoError(t, err)
		assert.True(t, exists)

		next, err := repo.GenerateAdvanceNumber(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ANT-"+year+"-0042", next)
	})
}

func TestGormInvoiceRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("save and find round trip", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormInvoiceRepository(db)
		projectID, clientID := uuid.New(), uuid.New()
		due := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

		invoice := newPersistedInvoice(t, repo, "FAC-2026-0001", projectID, clientID, "80000.00", &due)

		found, err := repo.FindByID(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, settlement.InvoiceStatusDraft, found.Status)
		assert.True(t, found.PendingAmount.Equal(decimal.NewFromInt(80000)))
		require.NotNil(t, found.DueDate)

		byNumber, err := repo.FindByInvoiceNumber(ctx, "FAC-2026-0001")
		require.NoError(t, err)
		assert.Equal(t, invoice.ID, byNumber.ID)
	})

	t.Run("save with lock detects stale version", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormInvoiceRepository(db)
		invoice := newPersistedInvoice(t, repo, "FAC-2026-0002", uuid.New(), uuid.New(), "80000.00", nil)

		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		winner, err := repo.FindByID(ctx, invoice.ID)
		require.NoError(t, err)
		require.NoError(t, winner.Issue(now))
		require.NoError(t, repo.SaveWithLock(ctx, winner))

		require.NoError(t, invoice.Issue(now))
		assert.ErrorIs(t, repo.SaveWithLock(ctx, invoice), shared.ErrConcurrencyConflict)
	})

	t.Run("negative pending persists after over-coverage", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormInvoiceRepository(db)
		invoice := newPersistedInvoice(t, repo, "FAC-2026-0003", uuid.New(), uuid.New(), "60000.00", nil)

		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, invoice.Issue(now))
		require.NoError(t, repo.SaveWithLock(ctx, invoice))
		invoice.ApplyAdvance(mustGTQ(t, "80000.00"), now)
		require.NoError(t, repo.SaveWithLock(ctx, invoice))

		found, err := repo.FindByID(ctx, invoice.ID)
		require.NoError(t, err)
		assert.True(t, found.PendingAmount.Equal(decimal.NewFromInt(-20000)), "got %s", found.PendingAmount)
		assert.Equal(t, settlement.InvoiceStatusPaid, found.Status)
		require.NotNil(t, found.PaidAt)
	})

	t.Run("due for recompute excludes settled and future invoices", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormInvoiceRepository(db)
		asOf := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		pastDue := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
		futureDue := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)
		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		overdueCandidate := newPersistedInvoice(t, repo, "FAC-2026-0004", uuid.New(), uuid.New(), "10000.00", &pastDue)
		require.NoError(t, overdueCandidate.Issue(now))
		require.NoError(t, repo.SaveWithLock(ctx, overdueCandidate))

		settled := newPersistedInvoice(t, repo, "FAC-2026-0005", uuid.New(), uuid.New(), "10000.00", &pastDue)
		require.NoError(t, settled.Issue(now))
		settled.ApplyAdvance(mustGTQ(t, "10000.00"), now)
		require.NoError(t, repo.SaveWithLock(ctx, settled))

		newPersistedInvoice(t, repo, "FAC-2026-0006", uuid.New(), uuid.New(), "10000.00", &futureDue)
		newPersistedInvoice(t, repo, "FAC-2026-0007", uuid.New(), uuid.New(), "10000.00", nil)

		due, err := repo.FindDueForRecompute(ctx, asOf)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, overdueCandidate.ID, due[0].ID)
	})

	t.Run("sums pending by project", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormInvoiceRepository(db)
		projectID := uuid.New()

		newPersistedInvoice(t, repo, "FAC-2026-0008", projectID, uuid.New(), "30000.00", nil)
		newPersistedInvoice(t, repo, "FAC-2026-0009", projectID, uuid.New(), "20000.00", nil)
		newPersistedInvoice(t, repo, "FAC-2026-0010", uuid.New(), uuid.New(), "99999.00", nil)

		sum, err := repo.SumPendingByProject(ctx, projectID)
		require.NoError(t, err)
		assert.True(t, sum.Equal(decimal.NewFromInt(50000)), "got %s", sum)
	})

	t.Run("generates sequential invoice numbers", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormInvoiceRepository(db)

		first, err := repo.GenerateInvoiceNumber(ctx)
		require.NoError(t, err)
		year := time.Now().Format("2006")
		assert.Equal(t, "FAC-"+year+"-0001", first)

		newPersistedInvoice(t, repo, first, uuid.New(), uuid.New(), "10000.00", nil)

		second, err := repo.GenerateInvoiceNumber(ctx)
		require.NoError(t, err)
		assert.Equal(t, "FAC-"+year+"-0002", second)
	})
}

func TestGormAllocationRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("save, pair lookup and delete", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormAllocationRepository(db)
		advanceID, invoiceID := uuid.New(), uuid.New()
		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		alloc, err := settlement.NewAllocation(advanceID, invoiceID, mustGTQ(t, "15000.00"), nil, now)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, alloc))

		found, err := repo.FindByAdvanceAndInvoice(ctx, advanceID, invoiceID)
		require.NoError(t, err)
		assert.Equal(t, alloc.ID, found.ID)
		assert.True(t, found.Amount.Equal(decimal.NewFromInt(15000)))

		_, err = repo.FindByAdvanceAndInvoice(ctx, advanceID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)

		require.NoError(t, repo.Delete(ctx, alloc.ID))
		assert.ErrorIs(t, repo.Delete(ctx, alloc.ID), shared.ErrNotFound)
	})

	t.Run("lists and sums by advance", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		repo := NewGormAllocationRepository(db)
		advanceID := uuid.New()
		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		a1, err := settlement.NewAllocation(advanceID, uuid.New(), mustGTQ(t, "10000.00"), nil, now)
		require.NoError(t, err)
		a2, err := settlement.NewAllocation(advanceID, uuid.New(), mustGTQ(t, "2500.50"), nil, now.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, a1))
		require.NoError(t, repo.Save(ctx, a2))

		list, err := repo.FindByAdvance(ctx, advanceID)
		require.NoError(t, err)
		assert.Len(t, list, 2)

		sum, err := repo.SumByAdvance(ctx, advanceID)
		require.NoError(t, err)
		expected, _ := decimal.NewFromString("12500.50")
		assert.True(t, sum.Equal(expected), "got %s", sum)
	})
}

func TestGormTxManager(t *testing.T) {
	ctx := context.Background()

	t.Run("commits all writes together", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		tx := NewGormTxManager(db)
		advanceRepo := NewGormAdvanceRepository(db)

		advance := newPersistedAdvance(t, advanceRepo, "ANT-2026-0050", uuid.New(), uuid.New(), "10000.00")
		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		err := tx.InTx(ctx, func(ctx context.Context, repos settlement.Repositories) error {
			advance.ApplyToProject(mustGTQ(t, "4000.00"), now)
			return repos.Advances.SaveWithLock(ctx, advance)
		})
		require.NoError(t, err)

		found, err := advanceRepo.FindByID(ctx, advance.ID)
		require.NoError(t, err)
		assert.True(t, found.AllocatedToProject.Equal(decimal.NewFromInt(4000)))
	})

	t.Run("rolls back every write when the closure fails", func(t *testing.T) {
		db := setupSettlementTestDB(t)
		tx := NewGormTxManager(db)
		advanceRepo := NewGormAdvanceRepository(db)
		allocationRepo := NewGormAllocationRepository(db)

		advance := newPersistedAdvance(t, advanceRepo, "ANT-2026-0051", uuid.New(), uuid.New(), "10000.00")
		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		err := tx.InTx(ctx, func(ctx context.Context, repos settlement.Repositories) error {
			mutated := *advance
			mutated.ApplyToProject(mustGTQ(t, "4000.00"), now)
			if err := repos.Advances.SaveWithLock(ctx, &mutated); err != nil {
				return err
			}
			alloc, err := settlement.NewAllocation(advance.ID, uuid.New(), mustGTQ(t, "1000.00"), nil, now)
			if err != nil {
				return err
			}
			if err := repos.Allocations.Save(ctx, alloc); err != nil {
				return err
			}
			return settlement.ErrInvalidAmount
		})
		assert.ErrorIs(t, err, settlement.ErrInvalidAmount)

		found, err := advanceRepo.FindByID(ctx, advance.ID)
		require.NoError(t, err)
		assert.True(t, found.AllocatedToProject.IsZero(), "rolled-back write leaked: %s", found.AllocatedToProject)

		list, err := allocationRepo.FindByAdvance(ctx, advance.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
