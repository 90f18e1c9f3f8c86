package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	kinds "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service sequences period guard, account resolution, ledger and FIFO engine
// inside one transaction per document action.
type Service struct {
	store     Store
	resolver  *mappings.Resolver
	ledger    *journals.Engine
	fifo      *inventory.Engine
	validator *documents.Validator
	locker    Locker
	audit     kinds.AuditPort
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Options carries optional collaborators.
type Options struct {
	Locker  Locker
	Audit   kinds.AuditPort
	Metrics Metrics
	Logger  *slog.Logger
}

// NewService constructs the document lifecycle orchestrator.
func NewService(store Store, resolver *mappings.Resolver, ledger *journals.Engine, fifo *inventory.Engine, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if ledger == nil {
		ledger = journals.NewEngine(logger)
	}
	if fifo == nil {
		fifo = inventory.NewEngine(logger, nil)
	}
	return &Service{
		store:     store,
		resolver:  resolver,
		ledger:    ledger,
		fifo:      fifo,
		validator: documents.NewValidator(),
		locker:    opts.Locker,
		audit:     opts.Audit,
		metrics:   opts.Metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post turns a draft into ledger entries and stock movements.
func (s *Service) Post(ctx context.Context, cmd PostCommand) (PostResult, error) {
	var (
		result PostResult
		kind   documents.Kind
	)
	err := s.withDocumentLock(ctx, cmd.CompanyID, cmd.DocumentID, func() error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			doc, err := tx.Documents().GetForUpdate(ctx, cmd.CompanyID, cmd.DocumentID)
			if err != nil {
				return err
			}
			kind = doc.Kind
			res, err := s.post(ctx, tx, doc, cmd)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	s.finish(ctx, "post", kind, cmd.CompanyID, cmd.DocumentID, cmd.ActorID, err, func() map[string]any {
		return map[string]any{
			"entry_id":      result.EntryID,
			"cogs_entry_id": result.COGSEntryID,
			"total_cogs":    result.TotalCOGS.StringFixed(2),
			"gross":         result.Totals.Gross.StringFixed(2),
			"vat_mode":      string(result.Document.VATMode),
		}
	})
	if err != nil {
		return PostResult{}, err
	}
	return result, nil
}

func (s *Service) post(ctx context.Context, tx Tx, doc documents.Document, cmd PostCommand) (PostResult, error) {
	if err := doc.CanPost(); err != nil {
		return PostResult{}, err
	}
	mode := cmd.VATMode
	if mode == "" {
		mode = doc.VATMode
	}
	if mode == "" {
		mode = mappings.VATModeStandard
	}
	doc.VATMode = mode
	if err := s.validator.Validate(doc); err != nil {
		return PostResult{}, err
	}
	if err := periods.AssertOpen(ctx, tx.Periods(), doc.CompanyID, doc.Date); err != nil {
		return PostResult{}, err
	}
	rate, ok := s.resolver.Mapping().Rate(mode)
	if !ok {
		return PostResult{}, fmt.Errorf("%w: %s", accshared.ErrUnknownVATMode, mode)
	}
	roles := mappings.PurchaseRoles()
	if doc.Kind == documents.KindSale {
		roles = mappings.SaleRoles()
	}
	accountsByRole, err := s.resolveAccounts(ctx, tx, doc.CompanyID, roles, mode, cmd.Overrides)
	if err != nil {
		return PostResult{}, err
	}

	result := PostResult{Totals: doc.ComputeTotals(rate), TotalCOGS: decimal.Zero}
	docID := doc.ID
	header := journals.EntryInput{
		CompanyID:    doc.CompanyID,
		Date:         doc.Date,
		DocumentType: entryType(doc.Kind),
		DocumentID:   &docID,
		Memo:         doc.Number,
		Lines:        headerLines(doc.Kind, result.Totals, accountsByRole),
	}
	if result.Totals.Gross.IsPositive() {
		entry, err := s.ledger.CreateEntry(ctx, tx, header)
		if err != nil {
			return PostResult{}, err
		}
		result.EntryID = entry.ID
		result.LineCount = len(entry.Lines)
		doc.EntryIDs = append(doc.EntryIDs, entry.ID)
	}

	switch doc.Kind {
	case documents.KindSale:
		for _, line := range doc.Lines {
			alloc, err := s.fifo.Allocate(ctx, tx.Inventory(), inventory.AllocateInput{
				CompanyID:   doc.CompanyID,
				WarehouseID: doc.WarehouseID,
				ItemCode:    line.ItemCode,
				Quantity:    line.Quantity,
				Ref:         inventory.DocumentRef{DocumentID: doc.ID, LineNo: line.LineNo},
			})
			if err != nil {
				return PostResult{}, err
			}
			result.Allocations = append(result.Allocations, alloc.Allocations...)
			result.TotalCOGS = result.TotalCOGS.Add(alloc.TotalCost)
		}
		result.TotalCOGS = result.TotalCOGS.Round(2)
		if result.TotalCOGS.IsPositive() {
			entry, err := s.ledger.CreateEntry(ctx, tx, journals.EntryInput{
				CompanyID:    doc.CompanyID,
				Date:         doc.Date,
				DocumentType: journals.DocumentTypeSale,
				DocumentID:   &docID,
				Memo:         doc.Number + " COGS",
				Lines: []journals.LineInput{
					{AccountID: accountsByRole[mappings.RoleCOGS], Debit: result.TotalCOGS},
					{AccountID: accountsByRole[mappings.RoleInventory], Credit: result.TotalCOGS},
				},
			})
			if err != nil {
				return PostResult{}, err
			}
			result.COGSEntryID = entry.ID
			result.COGSLineCount = len(entry.Lines)
			doc.EntryIDs = append(doc.EntryIDs, entry.ID)
		}
	case documents.KindPurchase:
		for _, line := range doc.Lines {
			lot, err := s.fifo.CreateLot(ctx, tx.Inventory(), inventory.LotInput{
				CompanyID:        doc.CompanyID,
				WarehouseID:      doc.WarehouseID,
				ItemCode:         line.ItemCode,
				PurchaseDate:     doc.Date,
				UnitCost:         line.UnitPrice,
				Quantity:         line.Quantity,
				SourceDocumentID: doc.ID,
			})
			if err != nil {
				return PostResult{}, err
			}
			result.Lots = append(result.Lots, lot)
		}
	}

	now := s.now().UTC()
	doc.Status = documents.StatusPosted
	doc.PostingAccounts = accountsByRole
	doc.PostedAt = &now
	if err := tx.Documents().SaveState(ctx, doc); err != nil {
		return PostResult{}, err
	}
	result.Document = doc
	return result, nil
}

func (s *Service) resolveAccounts(ctx context.Context, tx Tx, companyID int64, roles []mappings.Role, mode mappings.VATMode, overrides map[mappings.Role]int64) (map[mappings.Role]int64, error) {
	pending := make([]mappings.Role, 0, len(roles))
	for _, role := range roles {
		if _, ok := overrides[role]; !ok {
			pending = append(pending, role)
		}
	}
	resolved, err := s.resolver.Resolve(ctx, tx.Accounts(), companyID, pending, mode)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if id, ok := overrides[role]; ok {
			resolved[role] = id
		}
	}
	return resolved, nil
}

// Cancel reverses a posted document with storno entries and stock movements.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (CancelResult, error) {
	var (
		result CancelResult
		kind   documents.Kind
	)
	err := s.withDocumentLock(ctx, cmd.CompanyID, cmd.DocumentID, func() error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			doc, err := tx.Documents().GetForUpdate(ctx, cmd.CompanyID, cmd.DocumentID)
			if err != nil {
				return err
			}
			kind = doc.Kind
			res, err := s.cancel(ctx, tx, doc)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	s.finish(ctx, "cancel", kind, cmd.CompanyID, cmd.DocumentID, cmd.ActorID, err, func() map[string]any {
		return map[string]any{
			"reversal_entry_ids": result.ReversalEntryIDs,
			"line_count":         result.LineCount,
		}
	})
	if err != nil {
		return CancelResult{}, err
	}
	return result, nil
}

func (s *Service) cancel(ctx context.Context, tx Tx, doc documents.Document) (CancelResult, error) {
	if err := doc.CanCancel(); err != nil {
		return CancelResult{}, err
	}
	if err := periods.AssertOpen(ctx, tx.Periods(), doc.CompanyID, doc.Date); err != nil {
		return CancelResult{}, err
	}
	var receiptLots []inventory.Lot
	if doc.Kind == documents.KindPurchase {
		lots, err := s.fifo.AssertLotsUntouched(ctx, tx.Inventory(), doc.CompanyID, doc.ID)
		if err != nil {
			return CancelResult{}, err
		}
		receiptLots = lots
	}
	originals, err := tx.Journals().ListByDocument(ctx, doc.CompanyID, entryType(doc.Kind), doc.ID)
	if err != nil {
		return CancelResult{}, err
	}
	if len(originals) == 0 && len(doc.EntryIDs) > 0 {
		return CancelResult{}, ErrSourceEntryMissing
	}

	var result CancelResult
	for _, original := range originals {
		reversal, err := s.ledger.Reverse(ctx, tx, original, doc.Date)
		if err != nil {
			return CancelResult{}, err
		}
		result.ReversalEntryIDs = append(result.ReversalEntryIDs, reversal.ID)
		result.LineCount += len(reversal.Lines)
		doc.EntryIDs = append(doc.EntryIDs, reversal.ID)
	}

	switch doc.Kind {
	case documents.KindSale:
		allocs, err := s.fifo.ReverseAllocations(ctx, tx.Inventory(), doc.CompanyID, doc.ID)
		if err != nil {
			return CancelResult{}, err
		}
		result.Allocations = allocs
	case documents.KindPurchase:
		allocs, err := s.fifo.RetireLots(ctx, tx.Inventory(), doc.CompanyID, doc.ID, receiptLots)
		if err != nil {
			return CancelResult{}, err
		}
		result.Allocations = allocs
	}

	now := s.now().UTC()
	doc.Status = documents.StatusCancelled
	doc.CancelledAt = &now
	if err := tx.Documents().SaveState(ctx, doc); err != nil {
		return CancelResult{}, err
	}
	result.Document = doc
	return result, nil
}

// Lock moves a posted document to LOCKED, blocking further cancellation.
func (s *Service) Lock(ctx context.Context, cmd LockCommand) (documents.Document, error) {
	var (
		out  documents.Document
		kind documents.Kind
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		doc, err := tx.Documents().GetForUpdate(ctx, cmd.CompanyID, cmd.DocumentID)
		if err != nil {
			return err
		}
		kind = doc.Kind
		if err := doc.CanLock(); err != nil {
			return err
		}
		now := s.now().UTC()
		doc.Status = documents.StatusLocked
		doc.LockedAt = &now
		if err := tx.Documents().SaveState(ctx, doc); err != nil {
			return err
		}
		out = doc
		return nil
	})
	s.finish(ctx, "lock", kind, cmd.CompanyID, cmd.DocumentID, cmd.ActorID, err, nil)
	if err != nil {
		return documents.Document{}, err
	}
	return out, nil
}

func (s *Service) withDocumentLock(ctx context.Context, companyID, documentID int64, fn func() error) error {
	if s.locker == nil {
		return fn()
	}
	release, err := s.locker.Acquire(ctx, kinds.DocumentLockKey(companyID, documentID))
	if err != nil {
		return err
	}
	defer release(context.WithoutCancel(ctx))
	return fn()
}

// finish logs, counts and audits the outcome of an action.
func (s *Service) finish(ctx context.Context, action string, kind documents.Kind, companyID, documentID, actorID int64, err error, meta func() map[string]any) {
	outcome := "ok"
	if err != nil {
		outcome = string(kinds.KindOf(err))
	}
	if s.metrics != nil {
		s.metrics.ObserveDocument(string(kind), action, outcome)
	}
	attrs := []any{
		slog.String("action", action),
		slog.String("kind", string(kind)),
		slog.Int64("company_id", companyID),
		slog.Int64("document_id", documentID),
	}
	if err != nil {
		attrs = append(attrs, slog.String("outcome", outcome), slog.Any("error", err))
		switch {
		case errors.Is(err, kinds.ErrIntegrity), outcome == string(kinds.KindInternal):
			s.logger.Error("document action failed", attrs...)
		default:
			s.logger.Warn("document action rejected", attrs...)
		}
		return
	}
	s.logger.Info("document action completed", attrs...)
	if s.audit == nil {
		return
	}
	log := kinds.AuditLog{
		ActorID:       actorID,
		CompanyID:     companyID,
		Action:        "document." + action,
		Entity:        "document",
		EntityID:      fmt.Sprintf("%d", documentID),
		CorrelationID: uuid.New(),
		At:            s.now(),
	}
	if meta != nil {
		log.Meta = meta()
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", log.Action), slog.Any("error", err))
	}
}

func entryType(kind documents.Kind) journals.DocumentType {
	if kind == documents.KindSale {
		return journals.DocumentTypeSale
	}
	return journals.DocumentTypePurchase
}

func headerLines(kind documents.Kind, totals documents.Totals, accounts map[mappings.Role]int64) []journals.LineInput {
	var lines []journals.LineInput
	add := func(role mappings.Role, debit, credit decimal.Decimal) {
		if debit.IsZero() && credit.IsZero() {
			return
		}
		lines = append(lines, journals.LineInput{AccountID: accounts[role], Debit: debit, Credit: credit})
	}
	if kind == documents.KindSale {
		add(mappings.RoleReceivable, totals.Gross, decimal.Zero)
		add(mappings.RoleRevenue, decimal.Zero, totals.Net)
		add(mappings.RoleVATOutput, decimal.Zero, totals.VAT)
		return lines
	}
	add(mappings.RoleExpense, totals.Net, decimal.Zero)
	add(mappings.RoleVATInput, totals.VAT, decimal.Zero)
	add(mappings.RolePayable, decimal.Zero, totals.Gross)
	return lines
}
