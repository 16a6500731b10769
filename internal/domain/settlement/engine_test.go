package settlement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineFixture(t *testing.T, advanceTotal, invoiceTotal string) (*Engine, *Advance, *Invoice) {
	t.Helper()
	projectID := uuid.New()
	clientID := uuid.New()

	a, err := NewAdvance("ANT-100", clientID, "Inversiones La Ceiba", projectID,
		mustMoney(t, advanceTotal), AdvanceCategoryInitial,
		time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)

	inv, err := NewInvoice("FAC-100", projectID, clientID, InvoiceTypeProgress,
		mustMoney(t, invoiceTotal), mustMoney(t, "0.00"), nil,
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), nil, nil)
	require.NoError(t, err)
	require.NoError(t, inv.Issue(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))

	return NewEngine(), a, inv
}

func TestEngineAllocateToInvoice(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("partial allocation updates both balances", func(t *testing.T) {
		engine, advance, invoice := engineFixture(t, "100000.00", "80000.00")
		actor := uuid.New()

		result, err := engine.AllocateToInvoice(advance, invoice, nil, mustMoney(t, "60000.00"), &actor, now)
		require.NoError(t, err)

		assert.True(t, result.Created)
		assert.True(t, result.Allocation.Amount.Equal(decimal.NewFromInt(60000)))
		assert.Equal(t, &actor, result.Allocation.AppliedBy)

		assert.True(t, advance.AvailableAmount.Equal(decimal.NewFromInt(40000)))
		assert.Equal(t, AdvanceStatusPending, advance.Status)
		assert.True(t, invoice.PendingAmount.Equal(decimal.NewFromInt(20000)))
		assert.Equal(t, InvoiceStatusIssued, invoice.Status, "not yet paid, status unchanged")
	})

	t.Run("allocation exceeding pending settles the invoice as paid", func(t *testing.T) {
		engine, advance, invoice := engineFixture(t, "100000.00", "80000.00")

		_, err := engine.AllocateToInvoice(advance, invoice, nil, mustMoney(t, "60000.00"), nil, now)
		require.NoError(t, err)

		existing, err := NewAllocation(advance.ID, invoice.ID, mustMoney(t, "60000.00"), nil, now)
		require.NoError(t, err)

		result, err := engine.AllocateToInvoice(advance, invoice, existing, mustMoney(t, "40000.00"), nil, now)
		require.NoError(t, err)

		assert.False(t, result.Created, "existing pair record is augmented, not duplicated")
		assert.True(t, result.Allocation.Amount.Equal(decimal.NewFromInt(100000)))

		assert.True(t, advance.AvailableAmount.IsZero())
		assert.Equal(t, AdvanceStatusFullyAllocated, advance.Status)
		assert.NotNil(t, advance.FullyAllocatedAt)

		assert.True(t, invoice.PendingAmount.Equal(decimal.NewFromInt(-20000)), "over-coverage leaves a negative pending")
		assert.Equal(t, InvoiceStatusPaid, invoice.Status)
		assert.NotNil(t, invoice.PaidAt)
	})

	t.Run("insufficient balance leaves both entities untouched", func(t *testing.T) {
		engine, advance, invoice := engineFixture(t, "100000.00", "200000.00")

		availableBefore := advance.AvailableAmount
		pendingBefore := invoice.PendingAmount
		advVersion := advance.GetVersion()
		invVersion := invoice.GetVersion()

		_, err := engine.AllocateToInvoice(advance, invoice, nil, mustMoney(t, "150000.00"), nil, now)
		assert.ErrorIs(t, err, ErrInsufficientAdvanceBalance)

		assert.True(t, advance.AvailableAmount.Equal(availableBefore))
		assert.True(t, invoice.PendingAmount.Equal(pendingBefore))
		assert.Equal(t, advVersion, advance.GetVersion())
		assert.Equal(t, invVersion, invoice.GetVersion())
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		engine, advance, invoice := engineFixture(t, "100000.00", "80000.00")

		_, err := engine.AllocateToInvoice(advance, invoice, nil, mustMoney(t, "0.00"), nil, now)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = engine.AllocateToInvoice(advance, invoice, nil, mustMoney(t, "-10.00"), nil, now)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects project mismatch even with valid amounts", func(t *testing.T) {
		engine, advance, _ := engineFixture(t, "100000.00", "80000.00")

		otherProject, err := NewInvoice("FAC-999", uuid.New(), advance.ClientID, InvoiceTypeProgress,
			mustMoney(t, "50000.00"), mustMoney(t, "0.00"), nil, now, nil, nil)
		require.NoError(t, err)
		require.NoError(t, otherProject.Issue(now))

		_, err = engine.AllocateToInvoice(advance, otherProject, nil, mustMoney(t, "10000.00"), nil, now)
		assert.ErrorIs(t, err, ErrInvoiceNotEligible)
		assert.True(t, advance.AvailableAmount.Equal(decimal.NewFromInt(100000)))
	})

	t.Run("rejects paid and cancelled invoices", func(t *testing.T) {
		engine, advance, invoice := engineFixture(t, "100000.00", "50000.00")
		require.NoError(t, invoice.RegisterPayment(mustMoney(t, "50000.00"), "transfer", "", now))
		require.Equal(t, InvoiceStatusPaid, invoice.Status)

		_, err := engine.AllocateToInvoice(advance, invoice, nil, mustMoney(t, "10000.00"), nil, now)
		assert.ErrorIs(t, err, ErrInvoiceNotEligible)

		engine2, advance2, invoice2 := engineFixture(t, "100000.00", "50000.00")
		require.NoError(t, invoice2.Cancel("void", now))
		_, err = engine2.AllocateToInvoice(advance2, invoice2, nil, mustMoney(t, "10000.00"), nil, now)
		assert.ErrorIs(t, err, ErrInvoiceNotEligible)
	})

	t.Run("rejects allocation from cancelled or refunded advance", func(t *testing.T) {
		engine, advance, invoice := engineFixture(t, "100000.00", "80000.00")
		require.NoError(t, advance.Cancel("duplicate", now))

		_, err := engine.AllocateToInvoice(advance, invoice, nil, mustMoney(t, "10000.00"), nil, now)
		assert.ErrorIs(t, err, ErrIllegalStateTransition)

		engine2, advance2, invoice2 := engineFixture(t, "100000.00", "80000.00")
		require.NoError(t, advance2.Refund("descoped", now))
		_, err = engine2.AllocateToInvoice(advance2, invoice2, nil, mustMoney(t, "10000.00"), nil, now)
		assert.ErrorIs(t, err, ErrIllegalStateTransition)
	})

	t.Run("rejects a mismatched existing allocation record", func(t *testing.T) {
		engine, advance, invoice := engineFixture(t, "100000.00", "80000.00")
		stranger, err := NewAllocation(uuid.New(), invoice.ID, mustMoney(t, "100.00"), nil, now)
		require.NoError(t, err)

		_, err = engine.AllocateToInvoice(advance, invoice, stranger, mustMoney(t, "100.00"), nil, now)
		assert.Error(t, err)
	})
}

func TestEngineAllocateToProject(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("allocates directly to project", func(t *testing.T) {
		engine, advance, _ := engineFixture(t, "100000.00", "80000.00")

		require.NoError(t, engine.AllocateToProject(advance, mustMoney(t, "30000.00"), now))

		assert.True(t, advance.AppliedToProject)
		assert.True(t, advance.AllocatedToProject.Equal(decimal.NewFromInt(30000)))
		assert.True(t, advance.AvailableAmount.Equal(decimal.NewFromInt(70000)))
	})

	t.Run("over-allocation fails and leaves the advance unchanged", func(t *testing.T) {
		engine, advance, _ := engineFixture(t, "100000.00", "80000.00")

		err := engine.AllocateToProject(advance, mustMoney(t, "150000.00"), now)
		assert.ErrorIs(t, err, ErrInsufficientAdvanceBalance)
		assert.True(t, advance.AvailableAmount.Equal(decimal.NewFromInt(100000)))
		assert.False(t, advance.AppliedToProject)
	})

	t.Run("full direct allocation derives fully allocated", func(t *testing.T) {
		engine, advance, _ := engineFixture(t, "100000.00", "80000.00")

		require.NoError(t, engine.AllocateToProject(advance, mustMoney(t, "100000.00"), now))
		assert.Equal(t, AdvanceStatusFullyAllocated, advance.Status)
		assert.NotNil(t, advance.FullyAllocatedAt)
	})

	t.Run("mixed invoice and project allocations share one balance", func(t *testing.T) {
		engine, advance, invoice := engineFixture(t, "100000.00", "80000.00")

		_, err := engine.AllocateToInvoice(advance, invoice, nil, mustMoney(t, "60000.00"), nil, now)
		require.NoError(t, err)
		require.NoError(t, engine.AllocateToProject(advance, mustMoney(t, "40000.00"), now))

		assert.True(t, advance.AvailableAmount.IsZero())
		assert.Equal(t, AdvanceStatusFullyAllocated, advance.Status)

		err = engine.AllocateToProject(advance, mustMoney(t, "0.01"), now)
		assert.ErrorIs(t, err, ErrInsufficientAdvanceBalance)
	})
}

func TestEngineReverseAllocation(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("restores both balances", func(t *testing.T) {
		engine, advance, invoice := engineFixture(t, "100000.00", "80000.00")
		result, err := engine.AllocateToInvoice(advance, invoice, nil, mustMoney(t, "60000.00"), nil, now)
		require.NoError(t, err)

		require.NoError(t, engine.ReverseAllocation(advance, invoice, result.Allocation, now))

		assert.True(t, advance.AvailableAmount.Equal(decimal.NewFromInt(100000)))
		assert.Equal(t, AdvanceStatusPending, advance.Status)
		assert.True(t, invoice.PendingAmount.Equal(decimal.NewFromInt(80000)))
		assert.True(t, invoice.AdvanceAmount.IsZero())
	})

	t.Run("fully allocated advance returns to pending", func(t *testing.T) {
		engine, advance, invoice := engineFixture(t, "80000.00", "80000.00")
		result, err := engine.AllocateToInvoice(advance, invoice, nil, mustMoney(t, "80000.00"), nil, now)
		require.NoError(t, err)
		require.Equal(t, AdvanceStatusFullyAllocated, advance.Status)

		require.NoError(t, engine.ReverseAllocation(advance, invoice, result.Allocation, now))
		assert.Equal(t, AdvanceStatusPending, advance.Status)
	})

	t.Run("paid invoice keeps its status after reversal", func(t *testing.T) {
		engine, advance, invoice := engineFixture(t, "80000.00", "80000.00")
		result, err := engine.AllocateToInvoice(advance, invoice, nil, mustMoney(t, "80000.00"), nil, now)
		require.NoError(t, err)
		require.Equal(t, InvoiceStatusPaid, invoice.Status)

		require.NoError(t, engine.ReverseAllocation(advance, invoice, result.Allocation, now))
		assert.Equal(t, InvoiceStatusPaid, invoice.Status)
		assert.True(t, invoice.PendingAmount.Equal(decimal.NewFromInt(80000)))
	})

	t.Run("rejects a record belonging to another pair", func(t *testing.T) {
		engine, advance, invoice := engineFixture(t, "80000.00", "80000.00")
		foreign, err := NewAllocation(uuid.New(), uuid.New(), mustMoney(t, "10.00"), nil, now)
		require.NoError(t, err)

		assert.Error(t, engine.ReverseAllocation(advance, invoice, foreign, now))
	})
}

func TestEngineRecompute(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("recompute invoice drives sent to overdue", func(t *testing.T) {
		engine, _, _ := engineFixture(t, "100000.00", "80000.00")

		due := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
		inv, err := NewInvoice("FAC-200", uuid.New(), uuid.New(), InvoiceTypeProgress,
			mustMoney(t, "10000.00"), mustMoney(t, "0.00"), nil,
			time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), &due, nil)
		require.NoError(t, err)
		require.NoError(t, inv.Issue(due.AddDate(0, 0, -10)))
		require.NoError(t, inv.MarkSent(due.AddDate(0, 0, -10)))

		changed := engine.RecomputeInvoice(inv, now)
		assert.True(t, changed)
		assert.Equal(t, InvoiceStatusOverdue, inv.Status)

		version := inv.GetVersion()
		changed = engine.RecomputeInvoice(inv, now)
		assert.False(t, changed)
		assert.Equal(t, version, inv.GetVersion(), "no version bump without change")
	})

	t.Run("recompute advance is idempotent", func(t *testing.T) {
		engine, advance, _ := engineFixture(t, "100000.00", "80000.00")
		require.NoError(t, engine.AllocateToProject(advance, mustMoney(t, "100000.00"), now))

		version := advance.GetVersion()
		assert.False(t, engine.RecomputeAdvance(advance, now))
		assert.Equal(t, version, advance.GetVersion())
	})
}

func TestConservationProperty(t *testing.T) {
	// allocated_to_invoices + allocated_to_project + available == total
	// after every engine operation, to fixed-point precision.
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	engine, advance, invoice := engineFixture(t, "100000.00", "500000.00")

	check := func(step string) {
		t.Helper()
		sum := advance.AllocatedToInvoices.Add(advance.AllocatedToProject).Add(advance.AvailableAmount)
		assert.True(t, sum.Equal(advance.TotalAmount), "conservation violated after %s", step)
	}

	result, err := engine.AllocateToInvoice(advance, invoice, nil, mustMoney(t, "12345.67"), nil, now)
	require.NoError(t, err)
	check("invoice allocation")

	require.NoError(t, engine.AllocateToProject(advance, mustMoney(t, "0.01"), now))
	check("project allocation")

	require.NoError(t, engine.ReverseAllocation(advance, invoice, result.Allocation, now))
	check("reversal")

	require.NoError(t, engine.AllocateToProject(advance, mustMoney(t, "99999.99"), now))
	check("exhausting allocation")
	assert.True(t, advance.AvailableAmount.IsZero())
}

func TestAllocationAugment(t *testing.T) {
	now := time.Now()
	actor := uuid.New()

	al, err := NewAllocation(uuid.New(), uuid.New(), mustMoney(t, "100.00"), nil, now)
	require.NoError(t, err)

	later := now.Add(time.Hour)
	require.NoError(t, al.Augment(mustMoney(t, "50.00"), &actor, later))

	assert.True(t, al.Amount.Equal(decimal.NewFromFloat(150)))
	assert.Equal(t, later, al.AppliedAt)
	assert.Equal(t, &actor, al.AppliedBy)

	assert.ErrorIs(t, al.Augment(mustMoney(t, "0.00"), nil, later), ErrInvalidAmount)
}

func TestAllocationValidation(t *testing.T) {
	now := time.Now()

	_, err := NewAllocation(uuid.Nil, uuid.New(), mustMoney(t, "10.00"), nil, now)
	assert.Error(t, err)

	_, err = NewAllocation(uuid.New(), uuid.New(), mustMoney(t, "-10.00"), nil, now)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
