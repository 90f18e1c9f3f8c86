package posting

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	kinds "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Tx bundles the repositories of one ledger transaction.
type Tx interface {
	Periods() periods.Repository
	Accounts() accounts.Repository
	Journals() journals.Repository
	Inventory() inventory.Repository
	Documents() documents.Repository
}

// Store opens ledger transactions. fn's error rolls everything back.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
}

// Locker serialises post/cancel of one document across processes. The
// returned release func must be called once the action finished.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context), err error)
}

// Metrics counts document actions.
type Metrics interface {
	ObserveDocument(kind, action, outcome string)
}

// ErrSourceEntryMissing indicates a posted document without its journal entry.
var ErrSourceEntryMissing = kinds.NewError(kinds.ErrNotFound, "posting: original journal entry not found")

// PostCommand asks to post a draft.
type PostCommand struct {
	CompanyID  int64
	DocumentID int64
	// VATMode overrides the mode stored on the document.
	VATMode mappings.VATMode
	// Overrides replace resolved accounts per role.
	Overrides map[mappings.Role]int64
	ActorID   int64
}

// PostResult describes the ledger footprint of a posting.
type PostResult struct {
	Document      documents.Document
	EntryID       int64
	LineCount     int
	COGSEntryID   int64
	COGSLineCount int
	Totals        documents.Totals
	// TotalCOGS is set for sales.
	TotalCOGS   decimal.Decimal
	Allocations []inventory.Allocation
	Lots        []inventory.Lot
}

// CancelCommand asks to cancel a posted document.
type CancelCommand struct {
	CompanyID  int64
	DocumentID int64
	ActorID    int64
}

// CancelResult describes the storno entries of a cancellation.
type CancelResult struct {
	Document         documents.Document
	ReversalEntryIDs []int64
	LineCount        int
	Allocations      []inventory.Allocation
}

// LockCommand asks to lock a posted document.
type LockCommand struct {
	CompanyID  int64
	DocumentID int64
	ActorID    int64
}
