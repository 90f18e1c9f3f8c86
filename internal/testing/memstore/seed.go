package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
)

// SeedAccount adds an active account and returns its id.
func (s *Store) SeedAccount(companyID int64, code string, typ accounts.AccountType) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.state.nextID()
	now := s.now().UTC()
	s.state.accounts[id] = accounts.Account{
		ID: id, CompanyID: companyID, Code: code, Name: "Account " + code,
		Type: typ, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	return id
}

// SeedChart adds every code referenced by mapping and returns code -> id.
func (s *Store) SeedChart(companyID int64, mapping mappings.ChartMapping) map[string]int64 {
	out := make(map[string]int64)
	for _, code := range mapping.ProtectedCodes() {
		out[code] = s.SeedAccount(companyID, code, accounts.AccountTypeAsset)
	}
	return out
}

// SeedDocument stores doc, assigning an id when zero, and returns it.
func (s *Store) SeedDocument(doc documents.Document) documents.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == 0 {
		doc.ID = s.state.nextID()
	}
	if doc.Status == "" {
		doc.Status = documents.StatusDraft
	}
	doc.UpdatedAt = s.now().UTC()
	s.state.documents[docKey{doc.CompanyID, doc.ID}] = copyDocument(doc)
	return copyDocument(doc)
}

// SeedLot stores a fully available lot.
func (s *Store) SeedLot(in inventory.LotInput) inventory.Lot {
	var lot inventory.Lot
	_ = s.WithTx(context.Background(), func(ctx context.Context, tx *Tx) error {
		var err error
		lot, err = tx.Inventory().InsertLot(ctx, in)
		return err
	})
	return lot
}

// Document returns the committed document.
func (s *Store) Document(companyID, id int64) (documents.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.state.documents[docKey{companyID, id}]
	return copyDocument(doc), ok
}

// Entries returns committed entries of a company in id order.
func (s *Store) Entries(companyID int64) []journals.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []journals.JournalEntry
	for _, e := range s.state.entries {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lot returns a committed lot.
func (s *Store) Lot(id int64) (inventory.Lot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, ok := s.state.lots[id]
	return lot, ok
}

// Lots returns committed lots of a company in id order.
func (s *Store) Lots(companyID int64) []inventory.Lot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.Lot
	for _, lot := range s.state.lots {
		if lot.CompanyID == companyID {
			out = append(out, lot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Allocations returns committed allocations of a company in id order.
func (s *Store) Allocations(companyID int64) []inventory.Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.Allocation
	for _, a := range s.state.allocations {
		if a.CompanyID == companyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Integrity adapts committed state to integrity.Repository.
func (s *Store) Integrity() integrity.Repository { return integrityRepo{s} }

type integrityRepo struct{ s *Store }

func (r integrityRepo) UnbalancedEntries(context.Context) ([]integrity.Violation, error) {
	var out []integrity.Violation
	for _, e := range r.s.allEntries() {
		debit, credit := e.Totals()
		if len(e.Lines) < 2 || debit.Sub(credit).Abs().GreaterThan(journals.BalanceTolerance) {
			out = append(out, integrity.Violation{
				Check: integrity.CheckUnbalancedEntry, CompanyID: e.CompanyID, EntityID: e.ID,
				Detail: fmt.Sprintf("debit %s credit %s", debit, credit),
			})
		}
	}
	return out, nil
}

func (r integrityRepo) InvalidLineSides(context.Context) ([]integrity.Violation, error) {
	var out []integrity.Violation
	for _, e := range r.s.allEntries() {
		for _, l := range e.Lines {
			if l.Debit.IsPositive() == l.Credit.IsPositive() || l.Debit.IsNegative() || l.Credit.IsNegative() {
				out = append(out, integrity.Violation{
					Check: integrity.CheckLineSides, CompanyID: e.CompanyID, EntityID: l.ID,
					Detail: fmt.Sprintf("debit %s credit %s", l.Debit, l.Credit),
				})
			}
		}
	}
	return out, nil
}

func (r integrityRepo) LotsOutOfBounds(context.Context) ([]integrity.Violation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []integrity.Violation
	for _, lot := range r.s.state.lots {
		if lot.RemainingQty.IsNegative() || lot.RemainingQty.GreaterThan(lot.InitialQty) {
			out = append(out, integrity.Violation{
				Check: integrity.CheckLotBounds, CompanyID: lot.CompanyID, EntityID: lot.ID,
				Detail: fmt.Sprintf("remaining %s initial %s", lot.RemainingQty, lot.InitialQty),
			})
		}
	}
	return out, nil
}

func (r integrityRepo) DoubleReversals(context.Context) ([]integrity.Violation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	restored := make(map[int64]int)
	for _, a := range r.s.state.allocations {
		if a.Kind == inventory.AllocationKindReversal && a.ReversalOf != nil {
			restored[*a.ReversalOf]++
		}
	}
	var out []integrity.Violation
	for id, count := range restored {
		if count > 1 {
			issue := r.s.state.allocations[id]
			out = append(out, integrity.Violation{
				Check: integrity.CheckDoubleReversal, CompanyID: issue.CompanyID, EntityID: id,
				Detail: fmt.Sprintf("allocation reversed %d times", count),
			})
		}
	}
	reversed := make(map[int64]int)
	for _, e := range r.s.state.entries {
		if e.ReversalOf != nil {
			reversed[*e.ReversalOf]++
		}
	}
	for id, count := range reversed {
		original, ok := r.s.state.entries[id]
		if !ok {
			continue
		}
		if count > 1 || original.ReversalOf != nil {
			storno := 0
			if original.ReversalOf != nil {
				storno = 1
			}
			out = append(out, integrity.Violation{
				Check: integrity.CheckDoubleReversal, CompanyID: original.CompanyID, EntityID: id,
				Detail: fmt.Sprintf("journal entry reversed %d times, storno %d", count, storno),
			})
		}
	}
	return out, nil
}

func (s *Store) allEntries() []journals.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]journals.JournalEntry, 0, len(s.state.entries))
	for _, e := range s.state.entries {
		out = append(out, e)
	}
	return out
}
