package posting_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/posting"
	kinds "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/testing/memstore"
)

const (
	companyID   = int64(1)
	warehouseID = int64(3)
	partnerID   = int64(9)
	item        = "SKU-1"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 0, 0, 0, 0, time.UTC)
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *outcomeRecorder) ObserveDocument(kind, action, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, kind+"/"+action+"/"+outcome)
}

type auditRecorder struct {
	mu   sync.Mutex
	logs []kinds.AuditLog
}

func (a *auditRecorder) Record(ctx context.Context, log kinds.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type fixture struct {
	store   *memstore.Store
	service *posting.Service
	chart   map[string]int64
	metrics *outcomeRecorder
	audit   *auditRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mapping := mappings.DefaultMapping()
	store := memstore.New()
	f := &fixture{
		store:   store,
		chart:   store.SeedChart(companyID, mapping),
		metrics: &outcomeRecorder{},
		audit:   &auditRecorder{},
	}
	f.service = posting.NewService(store.Posting(), mappings.NewResolver(mapping), nil, nil, posting.Options{
		Metrics: f.metrics,
		Audit:   f.audit,
	})
	f.service.WithNow(func() time.Time { return time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC) })
	return f
}

func (f *fixture) purchase(date time.Time, qty, cost string) documents.Document {
	return f.store.SeedDocument(documents.Document{
		CompanyID:   companyID,
		Kind:        documents.KindPurchase,
		Number:      "PO-" + date.Format("0102") + "-" + qty,
		Date:        date,
		WarehouseID: warehouseID,
		PartnerID:   partnerID,
		VATMode:     mappings.VATModeStandard,
		Lines:       []documents.Line{{LineNo: 1, ItemCode: item, Quantity: dec(qty), UnitPrice: dec(cost)}},
	})
}

func (f *fixture) sale(date time.Time, qty, price string) documents.Document {
	return f.store.SeedDocument(documents.Document{
		CompanyID:   companyID,
		Kind:        documents.KindSale,
		Number:      "SO-" + date.Format("0102") + "-" + qty,
		Date:        date,
		WarehouseID: warehouseID,
		PartnerID:   partnerID,
		VATMode:     mappings.VATModeStandard,
		Lines:       []documents.Line{{LineNo: 1, ItemCode: item, Quantity: dec(qty), UnitPrice: dec(price)}},
	})
}

func (f *fixture) post(t *testing.T, doc documents.Document) posting.PostResult {
	t.Helper()
	res, err := f.service.Post(context.Background(), posting.PostCommand{CompanyID: companyID, DocumentID: doc.ID})
	require.NoError(t, err)
	return res
}

func (f *fixture) requireClean(t *testing.T) {
	t.Helper()
	report, err := integrity.NewScanner(f.store.Integrity(), nil).Scan(context.Background())
	require.NoError(t, err)
	require.True(t, report.Clean(), "%+v", report.Violations)
}

type lineView struct {
	AccountID int64
	Debit     string
	Credit    string
}

func linesOf(entry journals.JournalEntry) []lineView {
	out := make([]lineView, 0, len(entry.Lines))
	for _, l := range entry.Lines {
		out = append(out, lineView{AccountID: l.AccountID, Debit: l.Debit.StringFixed(2), Credit: l.Credit.StringFixed(2)})
	}
	return out
}

func TestPostPurchaseCreatesEntryAndLot(t *testing.T) {
	f := newFixture(t)
	doc := f.purchase(day(time.January, 1), "10", "5")

	res := f.post(t, doc)
	require.Equal(t, 3, res.LineCount)
	require.Zero(t, res.COGSEntryID)
	require.Len(t, res.Lots, 1)
	require.Equal(t, "10", res.Lots[0].RemainingQty.String())

	entries := f.store.Entries(companyID)
	require.Len(t, entries, 1)
	require.Equal(t, journals.DocumentTypePurchase, entries[0].DocumentType)
	require.Equal(t, []lineView{
		{AccountID: f.chart["4000"], Debit: "50.00", Credit: "0.00"},
		{AccountID: f.chart["1600"], Debit: "10.00", Credit: "0.00"},
		{AccountID: f.chart["2200"], Debit: "0.00", Credit: "60.00"},
	}, linesOf(entries[0]))

	stored, ok := f.store.Document(companyID, doc.ID)
	require.True(t, ok)
	require.Equal(t, documents.StatusPosted, stored.Status)
	require.Equal(t, []int64{entries[0].ID}, stored.EntryIDs)
	require.Equal(t, f.chart["2200"], stored.PostingAccounts[mappings.RolePayable])
	require.NotNil(t, stored.PostedAt)
	f.requireClean(t)
}

func TestPostSaleAllocatesFIFO(t *testing.T) {
	f := newFixture(t)
	first := f.post(t, f.purchase(day(time.January, 1), "10", "5"))
	second := f.post(t, f.purchase(day(time.January, 15), "10", "7"))
	sale := f.sale(day(time.February, 1), "15", "12")

	res := f.post(t, sale)
	require.Equal(t, "180.00", res.Totals.Net.StringFixed(2))
	require.Equal(t, "36.00", res.Totals.VAT.StringFixed(2))
	require.Equal(t, "216.00", res.Totals.Gross.StringFixed(2))
	require.Equal(t, "85.00", res.TotalCOGS.StringFixed(2))
	require.Len(t, res.Allocations, 2)
	require.Equal(t, first.Lots[0].ID, res.Allocations[0].LotID)
	require.Equal(t, "10", res.Allocations[0].Quantity.String())
	require.Equal(t, second.Lots[0].ID, res.Allocations[1].LotID)
	require.Equal(t, "5", res.Allocations[1].Quantity.String())

	lot1, _ := f.store.Lot(first.Lots[0].ID)
	lot2, _ := f.store.Lot(second.Lots[0].ID)
	require.True(t, lot1.RemainingQty.IsZero())
	require.Equal(t, "5", lot2.RemainingQty.String())

	entries := f.store.Entries(companyID)
	require.Len(t, entries, 4)
	header, cogs := entries[2], entries[3]
	require.Equal(t, res.EntryID, header.ID)
	require.Equal(t, res.COGSEntryID, cogs.ID)
	require.Equal(t, []lineView{
		{AccountID: f.chart["1200"], Debit: "216.00", Credit: "0.00"},
		{AccountID: f.chart["7600"], Debit: "0.00", Credit: "180.00"},
		{AccountID: f.chart["2600"], Debit: "0.00", Credit: "36.00"},
	}, linesOf(header))
	require.Equal(t, []lineView{
		{AccountID: f.chart["5000"], Debit: "85.00", Credit: "0.00"},
		{AccountID: f.chart["1300"], Debit: "0.00", Credit: "85.00"},
	}, linesOf(cogs))
	require.Equal(t, journals.DocumentTypeSale, cogs.DocumentType)
	f.requireClean(t)
}

func TestPostExemptSaleHasNoVATLine(t *testing.T) {
	f := newFixture(t)
	f.post(t, f.purchase(day(time.January, 1), "10", "5"))
	sale := f.sale(day(time.February, 1), "2", "12")

	res, err := f.service.Post(context.Background(), posting.PostCommand{
		CompanyID:  companyID,
		DocumentID: sale.ID,
		VATMode:    mappings.VATModeExempt,
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.LineCount)
	require.True(t, res.Totals.VAT.IsZero())
	require.Equal(t, mappings.VATModeExempt, res.Document.VATMode)
	require.Equal(t, f.chart["7620"], res.Document.PostingAccounts[mappings.RoleRevenue])
	require.NotContains(t, res.Document.PostingAccounts, mappings.RoleVATOutput)
}

func TestPostInsufficientStockLeavesDraft(t *testing.T) {
	f := newFixture(t)
	f.post(t, f.purchase(day(time.January, 1), "4", "5"))
	sale := f.sale(day(time.February, 1), "5", "12")

	_, err := f.service.Post(context.Background(), posting.PostCommand{CompanyID: companyID, DocumentID: sale.ID})
	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.Equal(t, "4", short.Available.String())
	require.Equal(t, "5", short.Requested.String())
	require.Equal(t, kinds.KindConflict, kinds.KindOf(err))

	stored, _ := f.store.Document(companyID, sale.ID)
	require.Equal(t, documents.StatusDraft, stored.Status)
	require.Len(t, f.store.Entries(companyID), 1)
	require.Equal(t, "4", f.store.Lots(companyID)[0].RemainingQty.String())
	require.Contains(t, f.metrics.outcomes, "SALE/post/conflict")
}

func TestPostRejectsIncompleteDocument(t *testing.T) {
	f := newFixture(t)
	doc := f.store.SeedDocument(documents.Document{
		CompanyID: companyID,
		Kind:      documents.KindSale,
		Number:    "SO-EMPTY",
		Date:      day(time.February, 1),
	})

	_, err := f.service.Post(context.Background(), posting.PostCommand{CompanyID: companyID, DocumentID: doc.ID})
	require.Equal(t, kinds.KindValidation, kinds.KindOf(err))
	require.Empty(t, f.store.Entries(companyID))
}

func TestPostMissingChartReportsCodes(t *testing.T) {
	f := newFixture(t)
	doc := f.store.SeedDocument(documents.Document{
		CompanyID:   2,
		Kind:        documents.KindPurchase,
		Number:      "PO-2",
		Date:        day(time.January, 3),
		WarehouseID: warehouseID,
		PartnerID:   partnerID,
		Lines:       []documents.Line{{LineNo: 1, ItemCode: item, Quantity: dec("1"), UnitPrice: dec("1")}},
	})
	f.store.SeedAccount(2, "2200", accounts.AccountTypeLiability)

	_, err := f.service.Post(context.Background(), posting.PostCommand{CompanyID: 2, DocumentID: doc.ID})
	var missing *accshared.ProfileMissingError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"1600", "4000"}, missing.Codes)
	require.Empty(t, f.store.Entries(2))
	require.Empty(t, f.store.Lots(2))
}

func TestPostOverridesReplaceResolvedAccounts(t *testing.T) {
	f := newFixture(t)
	special := f.store.SeedAccount(companyID, "4100", accounts.AccountTypeExpense)
	doc := f.purchase(day(time.January, 1), "1", "10")

	res, err := f.service.Post(context.Background(), posting.PostCommand{
		CompanyID:  companyID,
		DocumentID: doc.ID,
		Overrides:  map[mappings.Role]int64{mappings.RoleExpense: special},
	})
	require.NoError(t, err)
	require.Equal(t, special, res.Document.PostingAccounts[mappings.RoleExpense])
	require.Equal(t, special, f.store.Entries(companyID)[0].Lines[0].AccountID)

	bad := f.purchase(day(time.January, 2), "1", "10")
	_, err = f.service.Post(context.Background(), posting.PostCommand{
		CompanyID:  companyID,
		DocumentID: bad.ID,
		Overrides:  map[mappings.Role]int64{mappings.RoleExpense: 424242},
	})
	require.ErrorIs(t, err, accshared.ErrAccountNotFound)
}

func TestPostTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	doc := f.purchase(day(time.January, 1), "1", "10")
	f.post(t, doc)

	_, err := f.service.Post(context.Background(), posting.PostCommand{CompanyID: companyID, DocumentID: doc.ID})
	require.ErrorIs(t, err, documents.ErrNotDraft)
	require.Len(t, f.store.Entries(companyID), 1)
}

func TestPostUnknownDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Post(context.Background(), posting.PostCommand{CompanyID: companyID, DocumentID: 999})
	require.ErrorIs(t, err, documents.ErrDocumentNotFound)
}

func TestCancelSaleRestoresLotsAndMirrorsEntries(t *testing.T) {
	f := newFixture(t)
	first := f.post(t, f.purchase(day(time.January, 1), "10", "5"))
	second := f.post(t, f.purchase(day(time.January, 15), "10", "7"))
	sale := f.sale(day(time.February, 1), "15", "12")
	posted := f.post(t, sale)

	res, err := f.service.Cancel(context.Background(), posting.CancelCommand{CompanyID: companyID, DocumentID: sale.ID, ActorID: 5})
	require.NoError(t, err)
	require.Len(t, res.ReversalEntryIDs, 2)
	require.Equal(t, 5, res.LineCount)
	require.Len(t, res.Allocations, 2)
	for _, a := range res.Allocations {
		require.Equal(t, inventory.AllocationKindReversal, a.Kind)
		require.NotNil(t, a.ReversalOf)
	}

	lot1, _ := f.store.Lot(first.Lots[0].ID)
	lot2, _ := f.store.Lot(second.Lots[0].ID)
	require.Equal(t, "10", lot1.RemainingQty.String())
	require.Equal(t, "10", lot2.RemainingQty.String())

	byID := map[int64]journals.JournalEntry{}
	for _, e := range f.store.Entries(companyID) {
		byID[e.ID] = e
	}
	for _, id := range res.ReversalEntryIDs {
		reversal := byID[id]
		require.Equal(t, journals.DocumentTypeSaleReversal, reversal.DocumentType)
		require.Equal(t, sale.ID, *reversal.DocumentID)
		original := byID[*reversal.ReversalOf]
		require.Contains(t, []int64{posted.EntryID, posted.COGSEntryID}, original.ID)
		require.Len(t, reversal.Lines, len(original.Lines))
		for i := range original.Lines {
			require.Equal(t, original.Lines[i].AccountID, reversal.Lines[i].AccountID)
			require.True(t, original.Lines[i].Debit.Equal(reversal.Lines[i].Credit))
			require.True(t, original.Lines[i].Credit.Equal(reversal.Lines[i].Debit))
		}
	}

	stored, _ := f.store.Document(companyID, sale.ID)
	require.Equal(t, documents.StatusCancelled, stored.Status)
	require.NotNil(t, stored.CancelledAt)
	require.Len(t, stored.EntryIDs, 4)

	_, err = f.service.Cancel(context.Background(), posting.CancelCommand{CompanyID: companyID, DocumentID: sale.ID})
	require.ErrorIs(t, err, documents.ErrAlreadyCancelled)
	f.requireClean(t)

	var actions []string
	for _, log := range f.audit.logs {
		actions = append(actions, log.Action)
	}
	require.Equal(t, []string{"document.post", "document.post", "document.post", "document.cancel"}, actions)
	require.Equal(t, int64(5), f.audit.logs[3].ActorID)
}

func TestCancelPurchaseRejectedOnceConsumed(t *testing.T) {
	f := newFixture(t)
	receipt := f.purchase(day(time.January, 1), "10", "5")
	posted := f.post(t, receipt)
	f.post(t, f.sale(day(time.February, 1), "1", "12"))

	_, err := f.service.Cancel(context.Background(), posting.CancelCommand{CompanyID: companyID, DocumentID: receipt.ID})
	var consumed *inventory.LotsConsumedError
	require.ErrorAs(t, err, &consumed)
	require.Equal(t, []int64{posted.Lots[0].ID}, consumed.LotIDs)
	require.Equal(t, kinds.KindConflict, kinds.KindOf(err))

	stored, _ := f.store.Document(companyID, receipt.ID)
	require.Equal(t, documents.StatusPosted, stored.Status)
}

func TestCancelUntouchedPurchaseRetiresLots(t *testing.T) {
	f := newFixture(t)
	receipt := f.purchase(day(time.January, 1), "10", "5")
	posted := f.post(t, receipt)

	res, err := f.service.Cancel(context.Background(), posting.CancelCommand{CompanyID: companyID, DocumentID: receipt.ID})
	require.NoError(t, err)
	require.Len(t, res.ReversalEntryIDs, 1)
	require.Len(t, res.Allocations, 1)
	require.Equal(t, inventory.AllocationKindReceiptReversal, res.Allocations[0].Kind)

	lot, _ := f.store.Lot(posted.Lots[0].ID)
	require.True(t, lot.RemainingQty.IsZero())
	require.Equal(t, "10", lot.InitialQty.String())

	sale := f.sale(day(time.February, 1), "1", "12")
	_, err = f.service.Post(context.Background(), posting.PostCommand{CompanyID: companyID, DocumentID: sale.ID})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	f.requireClean(t)
}

func TestCancelDraftAndLocked(t *testing.T) {
	f := newFixture(t)
	draft := f.purchase(day(time.January, 1), "1", "5")
	_, err := f.service.Cancel(context.Background(), posting.CancelCommand{CompanyID: companyID, DocumentID: draft.ID})
	require.ErrorIs(t, err, documents.ErrDraftNotCancellable)

	_, err = f.service.Lock(context.Background(), posting.LockCommand{CompanyID: companyID, DocumentID: draft.ID})
	require.ErrorIs(t, err, documents.ErrNotPosted)

	f.post(t, draft)
	locked, err := f.service.Lock(context.Background(), posting.LockCommand{CompanyID: companyID, DocumentID: draft.ID})
	require.NoError(t, err)
	require.Equal(t, documents.StatusLocked, locked.Status)
	require.NotNil(t, locked.LockedAt)

	_, err = f.service.Cancel(context.Background(), posting.CancelCommand{CompanyID: companyID, DocumentID: draft.ID})
	require.ErrorIs(t, err, documents.ErrDocumentLocked)
	require.Len(t, f.store.Entries(companyID), 1)
}

func TestClosedPeriodBlocksPostAndCancelUntilReopened(t *testing.T) {
	f := newFixture(t)
	periodSvc := periods.NewService(f.store.Periods(), nil, nil)
	periodSvc.WithNow(func() time.Time { return time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC) })
	january := periods.Key{CompanyID: companyID, Year: 2024, Month: time.January}
	february := periods.Key{CompanyID: companyID, Year: 2024, Month: time.February}

	receipt := f.purchase(day(time.January, 20), "10", "5")
	f.post(t, receipt)
	_, err := periodSvc.Close(context.Background(), january, 1)
	require.NoError(t, err)

	_, err = f.service.Cancel(context.Background(), posting.CancelCommand{CompanyID: companyID, DocumentID: receipt.ID})
	var closed *accshared.PeriodClosedError
	require.ErrorAs(t, err, &closed)
	require.Equal(t, time.January, closed.Month)

	_, err = periodSvc.Close(context.Background(), february, 1)
	require.NoError(t, err)
	sale := f.sale(day(time.February, 28), "3", "12")
	_, err = f.service.Post(context.Background(), posting.PostCommand{CompanyID: companyID, DocumentID: sale.ID})
	require.ErrorIs(t, err, accshared.ErrPeriodClosed)
	require.Equal(t, "10", f.store.Lots(companyID)[0].RemainingQty.String())
	require.Len(t, f.store.Entries(companyID), 1)

	_, err = periodSvc.Reopen(context.Background(), february, 1)
	require.NoError(t, err)
	res := f.post(t, sale)
	require.Equal(t, "15.00", res.TotalCOGS.StringFixed(2))

	// a sale posted into March still works while January stays closed
	march := f.sale(day(time.March, 2), "1", "12")
	f.post(t, march)
	f.requireClean(t)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t)
	f.post(t, f.purchase(day(time.January, 1), "10", "5"))
	sales := []documents.Document{
		f.sale(day(time.February, 1), "7", "12"),
		f.sale(day(time.February, 2), "7", "12"),
	}

	errs := make([]error, len(sales))
	var wg sync.WaitGroup
	for i, sale := range sales {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = f.service.Post(context.Background(), posting.PostCommand{CompanyID: companyID, DocumentID: id})
		}(i, sale.ID)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, inventory.ErrInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, rejected)
	require.Equal(t, "3", f.store.Lots(companyID)[0].RemainingQty.String())
	require.Len(t, f.store.Allocations(companyID), 1)
	f.requireClean(t)
}

type busyLocker struct {
	err      error
	acquired []string
	released int
}

func (l *busyLocker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	l.acquired = append(l.acquired, key)
	if l.err != nil {
		return nil, l.err
	}
	return func(context.Context) { l.released++ }, nil
}

func TestDocumentLockWrapsPostAndCancel(t *testing.T) {
	f := newFixture(t)
	locker := &busyLocker{}
	svc := posting.NewService(f.store.Posting(), mappings.NewResolver(mappings.DefaultMapping()), nil, nil, posting.Options{Locker: locker})
	doc := f.purchase(day(time.January, 1), "1", "5")

	_, err := svc.Post(context.Background(), posting.PostCommand{CompanyID: companyID, DocumentID: doc.ID})
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), posting.CancelCommand{CompanyID: companyID, DocumentID: doc.ID})
	require.NoError(t, err)
	require.Equal(t, []string{kinds.DocumentLockKey(companyID, doc.ID), kinds.DocumentLockKey(companyID, doc.ID)}, locker.acquired)
	require.Equal(t, 2, locker.released)

	busy := kinds.NewError(kinds.ErrTransient, "busy")
	locker.err = busy
	other := f.purchase(day(time.January, 2), "1", "5")
	_, err = svc.Post(context.Background(), posting.PostCommand{CompanyID: companyID, DocumentID: other.ID})
	require.ErrorIs(t, err, busy)
	require.Equal(t, kinds.KindTransient, kinds.KindOf(err))
	stored, _ := f.store.Document(companyID, other.ID)
	require.Equal(t, documents.StatusDraft, stored.Status)
}
