package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository persists lots and allocations. Implementations are bound to an
// open transaction; lot locks are held until it ends.
type Repository interface {
	InsertLot(ctx context.Context, in LotInput) (Lot, error)
	// AvailableQuantity sums remaining quantity of every lot of the stock key,
	// locked or not.
	AvailableQuantity(ctx context.Context, companyID, warehouseID int64, itemCode string) (decimal.Decimal, error)
	// LockAvailableLots locks lots with remaining quantity, oldest first by
	// (purchase date, id), skipping rows locked by other transactions.
	LockAvailableLots(ctx context.Context, companyID, warehouseID int64, itemCode string) ([]Lot, error)
	// LockLots locks the given lots in id order, waiting for other holders.
	LockLots(ctx context.Context, companyID int64, lotIDs []int64) ([]Lot, error)
	// LockLotsBySource locks every lot created by a receipt document.
	LockLotsBySource(ctx context.Context, companyID, documentID int64) ([]Lot, error)
	SetRemaining(ctx context.Context, lotID int64, remaining decimal.Decimal) error
	InsertAllocation(ctx context.Context, a Allocation) (Allocation, error)
	ListAllocations(ctx context.Context, companyID, documentID int64) ([]Allocation, error)
}
