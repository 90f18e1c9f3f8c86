package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Engine implements FIFO lot costing. It is the only component that changes
// lot quantities and every change is paired with an allocation record in the
// same transaction.
type Engine struct {
	logger  *slog.Logger
	metrics AllocationMetrics
}

// AllocationMetrics counts allocation outcomes.
type AllocationMetrics interface {
	ObserveAllocation(outcome string)
}

// NewEngine constructs the FIFO engine. metrics may be nil.
func NewEngine(logger *slog.Logger, metrics AllocationMetrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger, metrics: metrics}
}

// CreateLot records a receipt line as a fully available lot.
func (e *Engine) CreateLot(ctx context.Context, repo Repository, in LotInput) (Lot, error) {
	if err := in.Validate(); err != nil {
		return Lot{}, err
	}
	in.ItemCode = strings.TrimSpace(in.ItemCode)
	return repo.InsertLot(ctx, in)
}

// Allocate consumes in.Quantity from the oldest visible lots. Either the whole
// quantity is allocated or an error is returned and the caller must roll back.
func (e *Engine) Allocate(ctx context.Context, repo Repository, in AllocateInput) (AllocationResult, error) {
	if in.CompanyID <= 0 || in.WarehouseID <= 0 || strings.TrimSpace(in.ItemCode) == "" {
		return AllocationResult{}, ErrStockKeyRequired
	}
	if !in.Quantity.IsPositive() {
		return AllocationResult{}, ErrInvalidQuantity
	}
	itemCode := strings.TrimSpace(in.ItemCode)
	available, err := repo.AvailableQuantity(ctx, in.CompanyID, in.WarehouseID, itemCode)
	if err != nil {
		return AllocationResult{}, err
	}
	if available.LessThan(in.Quantity) {
		e.observe("insufficient")
		return AllocationResult{}, &InsufficientStockError{ItemCode: itemCode, Available: available, Requested: in.Quantity}
	}
	lots, err := repo.LockAvailableLots(ctx, in.CompanyID, in.WarehouseID, itemCode)
	if err != nil {
		return AllocationResult{}, err
	}
	if visible := sumRemaining(lots); visible.LessThan(in.Quantity) {
		// a competing sale committed after the pre-check; when no row was
		// skipped the shortage is real stock, not contention
		current, err := repo.AvailableQuantity(ctx, in.CompanyID, in.WarehouseID, itemCode)
		if err != nil {
			return AllocationResult{}, err
		}
		if current.Equal(visible) {
			e.observe("insufficient")
			return AllocationResult{}, &InsufficientStockError{ItemCode: itemCode, Available: visible, Requested: in.Quantity}
		}
	}
	result := AllocationResult{TotalCost: decimal.Zero}
	outstanding := in.Quantity
	for _, lot := range lots {
		if !outstanding.IsPositive() {
			break
		}
		take := decimal.Min(lot.RemainingQty, outstanding)
		if !take.IsPositive() {
			continue
		}
		left := lot.RemainingQty.Sub(take)
		if left.IsNegative() {
			return AllocationResult{}, fmt.Errorf("%w: lot %d", ErrNegativeStock, lot.ID)
		}
		if err := repo.SetRemaining(ctx, lot.ID, left); err != nil {
			return AllocationResult{}, err
		}
		alloc, err := repo.InsertAllocation(ctx, Allocation{
			CompanyID:      in.CompanyID,
			LotID:          lot.ID,
			DocumentID:     in.Ref.DocumentID,
			DocumentLineNo: in.Ref.LineNo,
			Kind:           AllocationKindIssue,
			Quantity:       take,
			UnitCost:       lot.UnitCost,
		})
		if err != nil {
			return AllocationResult{}, err
		}
		result.Allocations = append(result.Allocations, alloc)
		result.TotalCost = result.TotalCost.Add(alloc.Cost())
		outstanding = outstanding.Sub(take)
	}
	if outstanding.IsPositive() {
		e.observe("incomplete")
		e.logger.Error("fifo allocation incomplete",
			slog.Int64("company_id", in.CompanyID),
			slog.Int64("warehouse_id", in.WarehouseID),
			slog.String("item_code", itemCode),
			slog.Int64("document_id", in.Ref.DocumentID),
			slog.String("requested", in.Quantity.String()),
			slog.String("unallocated", outstanding.String()))
		return AllocationResult{}, &AllocationIncompleteError{ItemCode: itemCode, Remaining: outstanding}
	}
	e.observe("allocated")
	return result, nil
}

// ReverseAllocations returns every issued quantity of the document to its lot
// and appends a REVERSAL allocation per issue. A restore beyond the initial
// quantity, or of an issue reversed before, fails with
// *RestoreViolationError.
func (e *Engine) ReverseAllocations(ctx context.Context, repo Repository, companyID, documentID int64) ([]Allocation, error) {
	existing, err := repo.ListAllocations(ctx, companyID, documentID)
	if err != nil {
		return nil, err
	}
	reversed := make(map[int64]struct{})
	var issues []Allocation
	for _, a := range existing {
		switch a.Kind {
		case AllocationKindIssue:
			issues = append(issues, a)
		case AllocationKindReversal:
			if a.ReversalOf != nil {
				reversed[*a.ReversalOf] = struct{}{}
			}
		}
	}
	if len(issues) == 0 {
		return nil, nil
	}
	lots, err := e.lockLots(ctx, repo, companyID, lotIDs(issues))
	if err != nil {
		return nil, err
	}
	var out []Allocation
	for _, issue := range issues {
		lot := lots[issue.LotID]
		restored := lot.RemainingQty.Add(issue.Quantity)
		if _, done := reversed[issue.ID]; done || restored.GreaterThan(lot.InitialQty) {
			violation := &RestoreViolationError{LotID: lot.ID, Remaining: lot.RemainingQty, Restore: issue.Quantity, Initial: lot.InitialQty}
			e.logger.Error("fifo restore invariant violated",
				slog.Int64("company_id", companyID),
				slog.Int64("document_id", documentID),
				slog.Int64("lot_id", lot.ID),
				slog.Int64("allocation_id", issue.ID),
				slog.Any("error", violation))
			return nil, violation
		}
		if err := repo.SetRemaining(ctx, lot.ID, restored); err != nil {
			return nil, err
		}
		lot.RemainingQty = restored
		lots[lot.ID] = lot
		issueID := issue.ID
		alloc, err := repo.InsertAllocation(ctx, Allocation{
			CompanyID:      companyID,
			LotID:          lot.ID,
			DocumentID:     documentID,
			DocumentLineNo: issue.DocumentLineNo,
			Kind:           AllocationKindReversal,
			Quantity:       issue.Quantity,
			UnitCost:       issue.UnitCost,
			ReversalOf:     &issueID,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, alloc)
	}
	return out, nil
}

// AssertLotsUntouched locks the lots created by a receipt and fails with
// *LotsConsumedError when any of them is no longer fully available.
func (e *Engine) AssertLotsUntouched(ctx context.Context, repo Repository, companyID, documentID int64) ([]Lot, error) {
	lots, err := repo.LockLotsBySource(ctx, companyID, documentID)
	if err != nil {
		return nil, err
	}
	var consumed []int64
	for _, lot := range lots {
		if !lot.FullyAvailable() {
			consumed = append(consumed, lot.ID)
		}
	}
	if len(consumed) > 0 {
		return nil, &LotsConsumedError{LotIDs: consumed}
	}
	return lots, nil
}

// RetireLots empties the lots of a cancelled receipt, as returned by
// AssertLotsUntouched, recording a RECEIPT_REVERSAL allocation for each so the
// stock can no longer be issued.
func (e *Engine) RetireLots(ctx context.Context, repo Repository, companyID, documentID int64, lots []Lot) ([]Allocation, error) {
	out := make([]Allocation, 0, len(lots))
	for _, lot := range lots {
		if lot.SourceDocumentID != documentID || !lot.FullyAvailable() {
			return nil, &LotsConsumedError{LotIDs: []int64{lot.ID}}
		}
		if err := repo.SetRemaining(ctx, lot.ID, decimal.Zero); err != nil {
			return nil, err
		}
		alloc, err := repo.InsertAllocation(ctx, Allocation{
			CompanyID:  companyID,
			LotID:      lot.ID,
			DocumentID: documentID,
			Kind:       AllocationKindReceiptReversal,
			Quantity:   lot.InitialQty,
			UnitCost:   lot.UnitCost,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, alloc)
	}
	return out, nil
}

func (e *Engine) lockLots(ctx context.Context, repo Repository, companyID int64, ids []int64) (map[int64]Lot, error) {
	locked, err := repo.LockLots(ctx, companyID, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Lot, len(locked))
	for _, lot := range locked {
		out[lot.ID] = lot
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrLotNotFound, id)
		}
	}
	return out, nil
}

func (e *Engine) observe(outcome string) {
	if e.metrics != nil {
		e.metrics.ObserveAllocation(outcome)
	}
}

func sumRemaining(lots []Lot) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range lots {
		total = total.Add(lot.RemainingQty)
	}
	return total
}

func lotIDs(allocs []Allocation) []int64 {
	seen := make(map[int64]struct{}, len(allocs))
	ids := make([]int64, 0, len(allocs))
	for _, a := range allocs {
		if _, ok := seen[a.LotID]; ok {
			continue
		}
		seen[a.LotID] = struct{}{}
		ids = append(ids, a.LotID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
