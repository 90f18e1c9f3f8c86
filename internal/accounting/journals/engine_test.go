package journals_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	kinds "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/testing/memstore"
)

var may2 = time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC)

func amount(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func seedCashAndRevenue(store *memstore.Store) (int64, int64) {
	cash := store.SeedAccount(1, "1000", accounts.AccountTypeAsset)
	revenue := store.SeedAccount(1, "7600", accounts.AccountTypeIncome)
	return cash, revenue
}

func createEntry(t *testing.T, store *memstore.Store, engine *journals.Engine, in journals.EntryInput) (journals.JournalEntry, error) {
	t.Helper()
	var entry journals.JournalEntry
	err := store.WithTx(context.Background(), func(ctx context.Context, tx *memstore.Tx) error {
		var err error
		entry, err = engine.CreateEntry(ctx, tx, in)
		return err
	})
	return entry, err
}

func TestCreateEntryPersistsBalancedLines(t *testing.T) {
	store := memstore.New()
	cash, revenue := seedCashAndRevenue(store)
	engine := journals.NewEngine(nil)

	entry, err := createEntry(t, store, engine, journals.EntryInput{
		CompanyID:    1,
		Date:         may2,
		DocumentType: journals.DocumentTypeManual,
		Lines: []journals.LineInput{
			{AccountID: cash, Debit: amount("120.00")},
			{AccountID: revenue, Credit: amount("120.00")},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, 1, entry.Lines[0].LineNo)
	debit, credit := entry.Totals()
	require.True(t, debit.Equal(credit))
	require.Len(t, store.Entries(1), 1)
}

func TestCreateEntryRejectsAmountsBelowCents(t *testing.T) {
	store := memstore.New()
	cash, revenue := seedCashAndRevenue(store)
	engine := journals.NewEngine(nil)

	// each line would round on its own once stored, leaving the entry 0.02 apart
	lines := make([]journals.LineInput, 0, 401)
	for i := 0; i < 400; i++ {
		lines = append(lines, journals.LineInput{AccountID: cash, Debit: amount("0.00005")})
	}
	lines = append(lines, journals.LineInput{AccountID: revenue, Credit: amount("0.02")})

	cases := map[string][]journals.LineInput{
		"accumulated rounding": lines,
		"rounds to zero": {
			{AccountID: cash, Debit: amount("0.00004")},
			{AccountID: revenue, Credit: amount("0.00004")},
		},
	}
	for name, lines := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := createEntry(t, store, engine, journals.EntryInput{
				CompanyID:    1,
				Date:         may2,
				DocumentType: journals.DocumentTypeManual,
				Lines:        lines,
			})
			var lineErr *shared.InvalidLineError
			require.ErrorAs(t, err, &lineErr)
			require.Equal(t, 0, lineErr.Index)
			require.Equal(t, kinds.KindValidation, kinds.KindOf(err))
			require.Empty(t, store.Entries(1))
		})
	}
}

func TestCreateEntryRejectsForeignAccounts(t *testing.T) {
	store := memstore.New()
	cash, _ := seedCashAndRevenue(store)
	foreign := store.SeedAccount(2, "7600", accounts.AccountTypeIncome)

	_, err := createEntry(t, store, journals.NewEngine(nil), journals.EntryInput{
		CompanyID:    1,
		Date:         may2,
		DocumentType: journals.DocumentTypeManual,
		Lines: []journals.LineInput{
			{AccountID: cash, Debit: amount("5")},
			{AccountID: foreign, Credit: amount("5")},
			{AccountID: 9999, Credit: amount("0.5")},
			{AccountID: 9998, Debit: amount("0.5")},
		},
	})
	var missing *shared.AccountNotFoundError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []int64{foreign, 9998, 9999}, missing.IDs)
	require.Equal(t, kinds.KindNotFound, kinds.KindOf(err))
	require.Empty(t, store.Entries(1))
}

func TestCreateEntryRejectsClosedPeriodBeforeLookups(t *testing.T) {
	store := memstore.New()
	svc := periods.NewService(store.Periods(), nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC) })
	_, err := svc.Close(context.Background(), periods.Key{CompanyID: 1, Year: 2024, Month: time.May}, 0)
	require.NoError(t, err)

	_, err = createEntry(t, store, journals.NewEngine(nil), journals.EntryInput{
		CompanyID:    1,
		Date:         may2,
		DocumentType: journals.DocumentTypeManual,
		Lines: []journals.LineInput{
			{AccountID: 404, Debit: amount("1")},
			{AccountID: 405, Credit: amount("1")},
		},
	})
	require.ErrorIs(t, err, shared.ErrPeriodClosed)
}

func TestReverseMirrorsLines(t *testing.T) {
	store := memstore.New()
	cash, revenue := seedCashAndRevenue(store)
	engine := journals.NewEngine(nil)
	docID := int64(77)

	original, err := createEntry(t, store, engine, journals.EntryInput{
		CompanyID:    1,
		Date:         may2,
		DocumentType: journals.DocumentTypeSale,
		DocumentID:   &docID,
		Lines: []journals.LineInput{
			{AccountID: cash, Debit: amount("30")},
			{AccountID: revenue, Credit: amount("30")},
		},
	})
	require.NoError(t, err)

	var reversal journals.JournalEntry
	err = store.WithTx(context.Background(), func(ctx context.Context, tx *memstore.Tx) error {
		reversal, err = engine.Reverse(ctx, tx, original, may2.AddDate(0, 0, 3))
		return err
	})
	require.NoError(t, err)
	require.Equal(t, journals.DocumentTypeSaleReversal, reversal.DocumentType)
	require.Equal(t, original.ID, *reversal.ReversalOf)
	require.Equal(t, docID, *reversal.DocumentID)
	require.Len(t, reversal.Lines, 2)
	for i, line := range reversal.Lines {
		require.Equal(t, original.Lines[i].AccountID, line.AccountID)
		require.True(t, original.Lines[i].Debit.Equal(line.Credit))
		require.True(t, original.Lines[i].Credit.Equal(line.Debit))
	}

	err = store.WithTx(context.Background(), func(ctx context.Context, tx *memstore.Tx) error {
		_, err := engine.Reverse(ctx, tx, reversal, may2)
		return err
	})
	require.ErrorIs(t, err, journals.ErrReverseReversal)
}

func TestPostManualIdempotency(t *testing.T) {
	store := memstore.New()
	cash, revenue := seedCashAndRevenue(store)
	svc := journals.NewService(store.Journals(), nil, nil, nil)
	in := journals.ManualInput{
		CompanyID:      1,
		Date:           may2,
		IdempotencyKey: "req-1",
		Lines: []journals.LineInput{
			{AccountID: cash, Debit: amount("10")},
			{AccountID: revenue, Credit: amount("10")},
		},
	}

	entry, err := svc.PostManual(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, journals.DocumentTypeManual, entry.DocumentType)

	_, err = svc.PostManual(context.Background(), in)
	require.ErrorIs(t, err, kinds.ErrIdempotencyConflict)
	require.Len(t, store.Entries(1), 1)

	in.IdempotencyKey = ""
	_, err = svc.PostManual(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, store.Entries(1), 2)
}

func TestPostManualRollsBackKeyOnFailure(t *testing.T) {
	store := memstore.New()
	cash, _ := seedCashAndRevenue(store)
	svc := journals.NewService(store.Journals(), nil, nil, nil)
	in := journals.ManualInput{
		CompanyID:      1,
		Date:           may2,
		IdempotencyKey: "req-2",
		Lines: []journals.LineInput{
			{AccountID: cash, Debit: amount("10")},
			{AccountID: 31337, Credit: amount("10")},
		},
	}
	_, err := svc.PostManual(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrAccountNotFound)

	in.Lines[1].AccountID = store.SeedAccount(1, "7610", accounts.AccountTypeIncome)
	_, err = svc.PostManual(context.Background(), in)
	require.NoError(t, err)
}

func TestHandlerCreate(t *testing.T) {
	store := memstore.New()
	cash, revenue := seedCashAndRevenue(store)
	handler := journals.NewHandler(nil, journals.NewService(store.Journals(), nil, nil, nil))
	router := chi.NewRouter()
	router.Route("/companies/{companyID}/journals", handler.MountRoutes)

	body := `{"date":"2024-05-02","memo":"opening","lines":[` +
		`{"account_id":` + itoa(cash) + `,"debit":"50.00"},` +
		`{"account_id":` + itoa(revenue) + `,"credit":"50.00"}]}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/companies/1/journals/", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"document_type":"MANUAL"`)

	unbalanced := strings.Replace(body, `"credit":"50.00"`, `"credit":"49.00"`, 1)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/companies/1/journals/", strings.NewReader(unbalanced)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	subCent := strings.NewReplacer(`"debit":"50.00"`, `"debit":"0.00004"`, `"credit":"50.00"`, `"credit":"0.00004"`).Replace(body)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/companies/1/journals/", strings.NewReader(subCent)))
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	require.Len(t, store.Entries(1), 1)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/companies/1/journals/", strings.NewReader(`{"date":"02/05/2024","lines":[]}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
