package settlement

import "github.com/constructora/backend/internal/domain/shared"

// Settlement error taxonomy. CONCURRENCY_CONFLICT (shared.ErrConcurrencyConflict)
// is the only retryable error; everything else requires caller correction.
var (
	ErrInvalidAmount              = shared.NewDomainError("INVALID_AMOUNT", "Amount must be a positive decimal")
	ErrInsufficientAdvanceBalance = shared.NewDomainError("INSUFFICIENT_ADVANCE_BALANCE", "Amount exceeds the advance's available balance")
	ErrInvoiceNotEligible         = shared.NewDomainError("INVOICE_NOT_ELIGIBLE", "Invoice cannot receive advance allocations in its current state")
	ErrIllegalStateTransition     = shared.NewDomainError("ILLEGAL_STATE_TRANSITION", "Operation not allowed from the current lifecycle state")
)
