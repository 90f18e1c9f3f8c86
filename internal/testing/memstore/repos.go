package memstore

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	kinds "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type periodRepo struct{ t *Tx }

func (r periodRepo) Find(_ context.Context, key periods.Key) (periods.Period, bool, error) {
	p, ok := r.t.st.periods[key]
	return p, ok, nil
}

func (r periodRepo) FindForUpdate(ctx context.Context, key periods.Key) (periods.Period, bool, error) {
	return r.Find(ctx, key)
}

func (r periodRepo) Save(_ context.Context, p periods.Period) error {
	p.UpdatedAt = r.t.now().UTC()
	r.t.st.periods[p.Key] = p
	return nil
}

type accountRepo struct{ t *Tx }

func (r accountRepo) List(_ context.Context, companyID int64) ([]accounts.Account, error) {
	var out []accounts.Account
	for _, a := range r.t.st.accounts {
		if a.CompanyID == companyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r accountRepo) FindIDsByCodes(_ context.Context, companyID int64, codes []string) (map[string]int64, error) {
	wanted := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		wanted[c] = struct{}{}
	}
	out := make(map[string]int64, len(codes))
	for _, a := range r.t.st.accounts {
		if _, ok := wanted[a.Code]; ok && a.CompanyID == companyID {
			out[a.Code] = a.ID
		}
	}
	return out, nil
}

func (r accountRepo) ExistingIDs(_ context.Context, companyID int64, ids []int64) (map[int64]struct{}, error) {
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if a, ok := r.t.st.accounts[id]; ok && a.CompanyID == companyID {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (r accountRepo) HasJournalLines(_ context.Context, companyID, accountID int64) (bool, error) {
	for _, e := range r.t.st.entries {
		if e.CompanyID != companyID {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				return true, nil
			}
		}
	}
	return false, nil
}

type journalRepo struct{ t *Tx }

func (r journalRepo) Insert(_ context.Context, in journals.EntryInput) (journals.JournalEntry, error) {
	st := r.t.st
	entry := journals.JournalEntry{
		ID:           st.nextID(),
		CompanyID:    in.CompanyID,
		Date:         in.Date,
		DocumentType: in.DocumentType,
		DocumentID:   in.DocumentID,
		ReversalOf:   in.ReversalOf,
		Memo:         in.Memo,
		CreatedAt:    r.t.now().UTC(),
	}
	for idx, l := range in.Lines {
		entry.Lines = append(entry.Lines, journals.JournalLine{
			ID:        st.nextID(),
			EntryID:   entry.ID,
			LineNo:    idx + 1,
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
			Memo:      l.Memo,
		})
	}
	st.entries[entry.ID] = entry
	return entry, nil
}

func (r journalRepo) Get(_ context.Context, companyID, entryID int64) (journals.JournalEntry, error) {
	e, ok := r.t.st.entries[entryID]
	if !ok || e.CompanyID != companyID {
		return journals.JournalEntry{}, accshared.ErrJournalNotFound
	}
	return e, nil
}

func (r journalRepo) ListByDocument(_ context.Context, companyID int64, documentType journals.DocumentType, documentID int64) ([]journals.JournalEntry, error) {
	var out []journals.JournalEntry
	for _, e := range r.t.st.entries {
		if e.CompanyID == companyID && e.DocumentType == documentType && e.DocumentID != nil && *e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type inventoryRepo struct{ t *Tx }

func (r inventoryRepo) InsertLot(_ context.Context, in inventory.LotInput) (inventory.Lot, error) {
	lot := inventory.Lot{
		ID:               r.t.st.nextID(),
		CompanyID:        in.CompanyID,
		WarehouseID:      in.WarehouseID,
		ItemCode:         in.ItemCode,
		PurchaseDate:     in.PurchaseDate,
		UnitCost:         in.UnitCost,
		InitialQty:       in.Quantity,
		RemainingQty:     in.Quantity,
		SourceDocumentID: in.SourceDocumentID,
		CreatedAt:        r.t.now().UTC(),
	}
	r.t.st.lots[lot.ID] = lot
	return lot, nil
}

func (r inventoryRepo) AvailableQuantity(_ context.Context, companyID, warehouseID int64, itemCode string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, lot := range r.t.st.lots {
		if lot.CompanyID == companyID && lot.WarehouseID == warehouseID && lot.ItemCode == itemCode {
			total = total.Add(lot.RemainingQty)
		}
	}
	return total, nil
}

func (r inventoryRepo) LockAvailableLots(_ context.Context, companyID, warehouseID int64, itemCode string) ([]inventory.Lot, error) {
	out := r.filterLots(func(lot inventory.Lot) bool {
		return lot.CompanyID == companyID && lot.WarehouseID == warehouseID && lot.ItemCode == itemCode && lot.RemainingQty.IsPositive()
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchaseDate.Equal(out[j].PurchaseDate) {
			return out[i].PurchaseDate.Before(out[j].PurchaseDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r inventoryRepo) LockLots(_ context.Context, companyID int64, lotIDs []int64) ([]inventory.Lot, error) {
	wanted := make(map[int64]struct{}, len(lotIDs))
	for _, id := range lotIDs {
		wanted[id] = struct{}{}
	}
	return r.filterLots(func(lot inventory.Lot) bool {
		_, ok := wanted[lot.ID]
		return ok && lot.CompanyID == companyID
	}), nil
}

func (r inventoryRepo) LockLotsBySource(_ context.Context, companyID, documentID int64) ([]inventory.Lot, error) {
	return r.filterLots(func(lot inventory.Lot) bool {
		return lot.CompanyID == companyID && lot.SourceDocumentID == documentID
	}), nil
}

func (r inventoryRepo) SetRemaining(_ context.Context, lotID int64, remaining decimal.Decimal) error {
	lot, ok := r.t.st.lots[lotID]
	if !ok || remaining.IsNegative() || remaining.GreaterThan(lot.InitialQty) {
		return inventory.ErrNegativeStock
	}
	lot.RemainingQty = remaining
	r.t.st.lots[lotID] = lot
	return nil
}

func (r inventoryRepo) InsertAllocation(_ context.Context, a inventory.Allocation) (inventory.Allocation, error) {
	a.ID = r.t.st.nextID()
	a.CreatedAt = r.t.now().UTC()
	r.t.st.allocations[a.ID] = a
	return a, nil
}

func (r inventoryRepo) ListAllocations(_ context.Context, companyID, documentID int64) ([]inventory.Allocation, error) {
	var out []inventory.Allocation
	for _, a := range r.t.st.allocations {
		if a.CompanyID == companyID && a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// filterLots returns matching lots in id order.
func (r inventoryRepo) filterLots(match func(inventory.Lot) bool) []inventory.Lot {
	var out []inventory.Lot
	for _, lot := range r.t.st.lots {
		if match(lot) {
			out = append(out, lot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type documentRepo struct{ t *Tx }

func (r documentRepo) GetForUpdate(_ context.Context, companyID, documentID int64) (documents.Document, error) {
	doc, ok := r.t.st.documents[docKey{companyID, documentID}]
	if !ok {
		return documents.Document{}, documents.ErrDocumentNotFound
	}
	return copyDocument(doc), nil
}

func (r documentRepo) SaveState(_ context.Context, doc documents.Document) error {
	key := docKey{doc.CompanyID, doc.ID}
	stored, ok := r.t.st.documents[key]
	if !ok {
		return documents.ErrDocumentNotFound
	}
	stored.Status = doc.Status
	stored.VATMode = doc.VATMode
	stored.PostingAccounts = copyRoles(doc.PostingAccounts)
	stored.EntryIDs = append([]int64(nil), doc.EntryIDs...)
	stored.PostedAt = doc.PostedAt
	stored.CancelledAt = doc.CancelledAt
	stored.LockedAt = doc.LockedAt
	stored.UpdatedAt = r.t.now().UTC()
	r.t.st.documents[key] = stored
	return nil
}

type idempotencyRepo struct{ t *Tx }

func (r idempotencyRepo) CheckAndInsert(_ context.Context, key, module string) error {
	k := module + "|" + key
	if _, ok := r.t.st.idempotency[k]; ok {
		return kinds.ErrIdempotencyConflict
	}
	r.t.st.idempotency[k] = r.t.now()
	return nil
}

func copyRoles(in map[mappings.Role]int64) map[mappings.Role]int64 {
	if in == nil {
		return nil
	}
	out := make(map[mappings.Role]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
