package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	kinds "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Lot is one receipt of stock at a fixed unit cost. Only RemainingQty ever
// changes and it stays within [0, InitialQty].
type Lot struct {
	ID               int64
	CompanyID        int64
	WarehouseID      int64
	ItemCode         string
	PurchaseDate     time.Time
	UnitCost         decimal.Decimal
	InitialQty       decimal.Decimal
	RemainingQty     decimal.Decimal
	SourceDocumentID int64
	CreatedAt        time.Time
}

// FullyAvailable reports whether nothing has been consumed from the lot.
func (l Lot) FullyAvailable() bool {
	return l.RemainingQty.Equal(l.InitialQty)
}

// AllocationKind tags an allocation record.
type AllocationKind string

const (
	// AllocationKindIssue consumes lot quantity for a sale line.
	AllocationKindIssue AllocationKind = "ISSUE"
	// AllocationKindReversal restores quantity of an earlier issue.
	AllocationKindReversal AllocationKind = "REVERSAL"
	// AllocationKindReceiptReversal retires a lot whose receipt was cancelled.
	AllocationKindReceiptReversal AllocationKind = "RECEIPT_REVERSAL"
)

// Allocation is the append-only audit of quantity taken from or returned to a lot.
type Allocation struct {
	ID             int64
	CompanyID      int64
	LotID          int64
	DocumentID     int64
	DocumentLineNo int
	Kind           AllocationKind
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	ReversalOf     *int64
	CreatedAt      time.Time
}

// Cost is the value of the allocated quantity.
func (a Allocation) Cost() decimal.Decimal {
	return a.Quantity.Mul(a.UnitCost)
}

// DocumentRef points at the consuming document line.
type DocumentRef struct {
	DocumentID int64
	LineNo     int
}

// LotInput creates a lot from a receipt line.
type LotInput struct {
	CompanyID        int64
	WarehouseID      int64
	ItemCode         string
	PurchaseDate     time.Time
	UnitCost         decimal.Decimal
	Quantity         decimal.Decimal
	SourceDocumentID int64
}

// Validate checks quantity and cost ranges.
func (in LotInput) Validate() error {
	if in.CompanyID <= 0 || in.WarehouseID <= 0 || strings.TrimSpace(in.ItemCode) == "" {
		return ErrStockKeyRequired
	}
	if !in.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if in.UnitCost.IsNegative() {
		return ErrInvalidUnitCost
	}
	if in.PurchaseDate.IsZero() {
		return ErrPurchaseDateRequired
	}
	return nil
}

// AllocateInput requests FIFO consumption for one sale line.
type AllocateInput struct {
	CompanyID   int64
	WarehouseID int64
	ItemCode    string
	Quantity    decimal.Decimal
	Ref         DocumentRef
}

// AllocationResult lists the lots touched by one allocation.
type AllocationResult struct {
	Allocations []Allocation
	TotalCost   decimal.Decimal
}

var (
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = kinds.NewError(kinds.ErrValidation, "inventory: quantity must be positive")
	// ErrInvalidUnitCost indicates invalid cost value.
	ErrInvalidUnitCost = kinds.NewError(kinds.ErrValidation, "inventory: unit cost must be >= 0")
	// ErrStockKeyRequired indicates missing company, warehouse or item.
	ErrStockKeyRequired = kinds.NewError(kinds.ErrValidation, "inventory: company, warehouse and item required")
	// ErrPurchaseDateRequired indicates a lot without a purchase date.
	ErrPurchaseDateRequired = kinds.NewError(kinds.ErrValidation, "inventory: purchase date required")
	// ErrInsufficientStock indicates the pre-check found less than requested.
	ErrInsufficientStock = kinds.NewError(kinds.ErrConflict, "inventory: insufficient stock")
	// ErrAllocationIncomplete indicates visible lots ran out under contention.
	ErrAllocationIncomplete = kinds.NewError(kinds.ErrIntegrity, "inventory: allocation incomplete")
	// ErrLotsAlreadyConsumed indicates receipt lots were sold onward.
	ErrLotsAlreadyConsumed = kinds.NewError(kinds.ErrConflict, "inventory: lots already consumed")
	// ErrRestoreInvariant indicates a restore would exceed the initial quantity.
	ErrRestoreInvariant = kinds.NewError(kinds.ErrIntegrity, "inventory: restore invariant violated")
	// ErrNegativeStock triggered when a movement would leave remaining below zero.
	ErrNegativeStock = kinds.NewError(kinds.ErrIntegrity, "inventory: negative stock not allowed")
	// ErrLotNotFound indicates a lot referenced by an allocation is missing.
	ErrLotNotFound = kinds.NewError(kinds.ErrNotFound, "inventory: lot not found")
)

// InsufficientStockError reports availability at pre-check time.
type InsufficientStockError struct {
	ItemCode  string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s: available %s, requested %s", e.ItemCode, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// AllocationIncompleteError reports the quantity left unsatisfied.
type AllocationIncompleteError struct {
	ItemCode  string
	Remaining decimal.Decimal
}

func (e *AllocationIncompleteError) Error() string {
	return fmt.Sprintf("inventory: allocation incomplete for %s: %s unallocated", e.ItemCode, e.Remaining)
}

func (e *AllocationIncompleteError) Unwrap() error { return ErrAllocationIncomplete }

// LotsConsumedError lists receipt lots that are no longer fully available.
type LotsConsumedError struct {
	LotIDs []int64
}

func (e *LotsConsumedError) Error() string {
	ids := make([]string, 0, len(e.LotIDs))
	for _, id := range e.LotIDs {
		ids = append(ids, fmt.Sprintf("%d", id))
	}
	return fmt.Sprintf("inventory: lots already consumed: %s", strings.Join(ids, ", "))
}

func (e *LotsConsumedError) Unwrap() error { return ErrLotsAlreadyConsumed }

// RestoreViolationError reports a lot that would be over-restored.
type RestoreViolationError struct {
	LotID     int64
	Remaining decimal.Decimal
	Restore   decimal.Decimal
	Initial   decimal.Decimal
}

func (e *RestoreViolationError) Error() string {
	return fmt.Sprintf("inventory: restoring %s to lot %d (remaining %s) exceeds initial %s", e.Restore, e.LotID, e.Remaining, e.Initial)
}

func (e *RestoreViolationError) Unwrap() error { return ErrRestoreInvariant }
