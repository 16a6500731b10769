package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/constructora/backend/internal/domain/settlement"
	"github.com/constructora/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedDueInvoice(t *testing.T, repo *fakeInvoiceRepo, number string, due time.Time, status settlement.InvoiceStatus) *settlement.Invoice {
	t.Helper()
	total, err := valueobject.NewMoneyGTQFromString("10000.00")
	require.NoError(t, err)
	zero, _ := valueobject.NewMoneyGTQFromString("0.00")

	issue := due.AddDate(0, -1, 0)
	inv, err := settlement.NewInvoice(number, uuid.New(), uuid.New(),
		settlement.InvoiceTypeProgress, total, zero, nil, issue, &due, nil)
	require.NoError(t, err)

	if status == settlement.InvoiceStatusIssued || status == settlement.InvoiceStatusSent {
		require.NoError(t, inv.Issue(issue))
	}
	if status == settlement.InvoiceStatusSent {
		require.NoError(t, inv.MarkSent(issue))
	}
	repo.items[inv.ID] = inv
	return inv
}

func TestOverdueServiceMarkOverdueInvoices(t *testing.T) {
	asOf := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)

	t.Run("marks past-due issued and sent invoices", func(t *testing.T) {
		invoices := newFakeInvoiceRepo()
		tx := &fakeTxManager{repos: settlement.Repositories{
			Advances:    newFakeAdvanceRepo(),
			Invoices:    invoices,
			Allocations: newFakeAllocationRepo(),
		}}
		svc := NewOverdueService(tx, zap.NewNop())

		pastDue := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
		futureDue := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)

		issued := seedDueInvoice(t, invoices, "FAC-A", pastDue, settlement.InvoiceStatusIssued)
		sent := seedDueInvoice(t, invoices, "FAC-B", pastDue, settlement.InvoiceStatusSent)
		notDue := seedDueInvoice(t, invoices, "FAC-C", futureDue, settlement.InvoiceStatusSent)

		marked, err := svc.MarkOverdueInvoices(context.Background(), asOf)
		require.NoError(t, err)

		assert.Equal(t, 2, marked)
		assert.Equal(t, settlement.InvoiceStatusOverdue, invoices.items[issued.ID].Status)
		assert.Equal(t, settlement.InvoiceStatusOverdue, invoices.items[sent.ID].Status)
		assert.Equal(t, settlement.InvoiceStatusSent, invoices.items[notDue.ID].Status)
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		invoices := newFakeInvoiceRepo()
		tx := &fakeTxManager{repos: settlement.Repositories{
			Advances:    newFakeAdvanceRepo(),
			Invoices:    invoices,
			Allocations: newFakeAllocationRepo(),
		}}
		svc := NewOverdueService(tx, zap.NewNop())

		pastDue := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
		seedDueInvoice(t, invoices, "FAC-A", pastDue, settlement.InvoiceStatusSent)

		marked, err := svc.MarkOverdueInvoices(context.Background(), asOf)
		require.NoError(t, err)
		require.Equal(t, 1, marked)

		marked, err = svc.MarkOverdueInvoices(context.Background(), asOf)
		require.NoError(t, err)
		assert.Equal(t, 0, marked)
	})

	t.Run("concurrent modification skips the invoice", func(t *testing.T) {
		invoices := newFakeInvoiceRepo()
		tx := &fakeTxManager{repos: settlement.Repositories{
			Advances:    newFakeAdvanceRepo(),
			Invoices:    invoices,
			Allocations: newFakeAllocationRepo(),
		}}
		svc := NewOverdueService(tx, zap.NewNop())

		pastDue := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
		contested := seedDueInvoice(t, invoices, "FAC-A", pastDue, settlement.InvoiceStatusSent)
		seedDueInvoice(t, invoices, "FAC-B", pastDue, settlement.InvoiceStatusSent)
		invoices.conflictOn[contested.ID] = true

		marked, err := svc.MarkOverdueInvoices(context.Background(), asOf)
		require.NoError(t, err)
		assert.Equal(t, 1, marked, "the contested invoice is left for the next run")
	})
}
