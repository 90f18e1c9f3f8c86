package journals

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
)

// Repository persists entries. Implementations are bound to an open
// transaction and never update or delete rows.
type Repository interface {
	// Insert writes the header and every line, returning the stored entry.
	Insert(ctx context.Context, in EntryInput) (JournalEntry, error)
	Get(ctx context.Context, companyID, entryID int64) (JournalEntry, error)
	// ListByDocument returns the non-reversal entries of a source document in
	// creation order.
	ListByDocument(ctx context.Context, companyID int64, documentType DocumentType, documentID int64) ([]JournalEntry, error)
}

// Tx is the slice of a ledger transaction the engine needs.
type Tx interface {
	Periods() periods.Repository
	Accounts() accounts.Repository
	Journals() Repository
}

// IdempotencyKeys records processed request keys inside the transaction.
type IdempotencyKeys interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// ManualTx adds idempotency to Tx for hand-keyed journals.
type ManualTx interface {
	Tx
	Idempotency() IdempotencyKeys
}

// Store opens transactions for manual journals.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, ManualTx) error) error
}
