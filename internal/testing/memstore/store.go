// Package memstore is an in-memory ledger store for tests. Transactions are
// serialised by a mutex and run against a copy of the state that replaces the
// committed state only when fn succeeds.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/posting"
	_ "github.com/odyssey-erp/odyssey-ledger/internal/testing/guard"
)

// Store holds committed state.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

// WithNow overrides the clock used for created_at stamps.
func (s *Store) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithTx runs fn in a transaction.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	working := s.state.clone()
	if err := fn(ctx, &Tx{st: working, now: s.now}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Posting adapts the store to posting.Store.
func (s *Store) Posting() posting.Store { return postingStore{s} }

// Journals adapts the store to journals.Store.
func (s *Store) Journals() journals.Store { return journalStore{s} }

// Periods adapts the store to periods.Store.
func (s *Store) Periods() periods.Store { return periodStore{s} }

type postingStore struct{ s *Store }

func (p postingStore) WithTx(ctx context.Context, fn func(context.Context, posting.Tx) error) error {
	return p.s.WithTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

type journalStore struct{ s *Store }

func (j journalStore) WithTx(ctx context.Context, fn func(context.Context, journals.ManualTx) error) error {
	return j.s.WithTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx) })
}

type periodStore struct{ s *Store }

func (p periodStore) WithTx(ctx context.Context, fn func(context.Context, periods.Repository) error) error {
	return p.s.WithTx(ctx, func(ctx context.Context, tx *Tx) error { return fn(ctx, tx.Periods()) })
}

// Tx exposes the repositories of one transaction.
type Tx struct {
	st  *state
	now func() time.Time
}

func (t *Tx) Periods() periods.Repository { return periodRepo{t} }
func (t *Tx) Accounts() accounts.Repository { return accountRepo{t} }
func (t *Tx) Journals() journals.Repository { return journalRepo{t} }
func (t *Tx) Inventory() inventory.Repository { return inventoryRepo{t} }
func (t *Tx) Documents() documents.Repository { return documentRepo{t} }
func (t *Tx) Idempotency() journals.IdempotencyKeys { return idempotencyRepo{t} }

type docKey struct {
	companyID int64
	id        int64
}

type state struct {
	seq         int64
	accounts    map[int64]accounts.Account
	periods     map[periods.Key]periods.Period
	entries     map[int64]journals.JournalEntry
	lots        map[int64]inventory.Lot
	allocations map[int64]inventory.Allocation
	documents   map[docKey]documents.Document
	idempotency map[string]time.Time
}

func newState() *state {
	return &state{
		accounts:    map[int64]accounts.Account{},
		periods:     map[periods.Key]periods.Period{},
		entries:     map[int64]journals.JournalEntry{},
		lots:        map[int64]inventory.Lot{},
		allocations: map[int64]inventory.Allocation{},
		documents:   map[docKey]documents.Document{},
		idempotency: map[string]time.Time{},
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// clone copies every map. Entries, lots and allocations are never mutated in
// place so their values can be shared; documents carry slices and are copied.
func (s *state) clone() *state {
	out := &state{
		seq:         s.seq,
		accounts:    make(map[int64]accounts.Account, len(s.accounts)),
		periods:     make(map[periods.Key]periods.Period, len(s.periods)),
		entries:     make(map[int64]journals.JournalEntry, len(s.entries)),
		lots:        make(map[int64]inventory.Lot, len(s.lots)),
		allocations: make(map[int64]inventory.Allocation, len(s.allocations)),
		documents:   make(map[docKey]documents.Document, len(s.documents)),
		idempotency: make(map[string]time.Time, len(s.idempotency)),
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.periods {
		out.periods[k] = v
	}
	for k, v := range s.entries {
		out.entries[k] = v
	}
	for k, v := range s.lots {
		out.lots[k] = v
	}
	for k, v := range s.allocations {
		out.allocations[k] = v
	}
	for k, v := range s.documents {
		out.documents[k] = copyDocument(v)
	}
	for k, v := range s.idempotency {
		out.idempotency[k] = v
	}
	return out
}

func copyDocument(doc documents.Document) documents.Document {
	doc.Lines = append([]documents.Line(nil), doc.Lines...)
	doc.EntryIDs = append([]int64(nil), doc.EntryIDs...)
	doc.PostingAccounts = copyRoles(doc.PostingAccounts)
	return doc
}
