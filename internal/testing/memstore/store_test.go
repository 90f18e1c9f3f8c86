package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
)

func TestFailedTransactionDiscardsWrites(t *testing.T) {
	store := New()
	lot := store.SeedLot(inventory.LotInput{
		CompanyID:    1,
		WarehouseID:  1,
		ItemCode:     "SKU",
		PurchaseDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		UnitCost:     decimal.NewFromInt(5),
		Quantity:     decimal.NewFromInt(10),
	})

	boom := errors.New("boom")
	err := store.WithTx(context.Background(), func(ctx context.Context, tx *Tx) error {
		if err := tx.Inventory().SetRemaining(ctx, lot.ID, decimal.NewFromInt(4)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, ok := store.Lot(lot.ID)
	require.True(t, ok)
	require.Equal(t, "10", stored.RemainingQty.String())
}

func TestSetRemainingStaysInBounds(t *testing.T) {
	store := New()
	lot := store.SeedLot(inventory.LotInput{
		CompanyID:    1,
		WarehouseID:  1,
		ItemCode:     "SKU",
		PurchaseDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		UnitCost:     decimal.NewFromInt(5),
		Quantity:     decimal.NewFromInt(10),
	})

	for _, remaining := range []int64{-1, 11} {
		err := store.WithTx(context.Background(), func(ctx context.Context, tx *Tx) error {
			return tx.Inventory().SetRemaining(ctx, lot.ID, decimal.NewFromInt(remaining))
		})
		require.ErrorIs(t, err, inventory.ErrNegativeStock)
	}
}

func TestIntegrityFlagsRepeatedJournalReversals(t *testing.T) {
	store := New()
	original := int64(1)
	storno := int64(2)
	store.state.entries[original] = journals.JournalEntry{ID: original, CompanyID: 1}
	store.state.entries[storno] = journals.JournalEntry{ID: storno, CompanyID: 1, ReversalOf: &original}

	found, err := store.Integrity().DoubleReversals(context.Background())
	require.NoError(t, err)
	require.Empty(t, found)

	// a second storno of the original and a storno of the storno
	store.state.entries[3] = journals.JournalEntry{ID: 3, CompanyID: 1, ReversalOf: &original}
	store.state.entries[4] = journals.JournalEntry{ID: 4, CompanyID: 1, ReversalOf: &storno}

	found, err = store.Integrity().DoubleReversals(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)
	ids := []int64{found[0].EntityID, found[1].EntityID}
	require.ElementsMatch(t, []int64{original, storno}, ids)
	for _, v := range found {
		require.Equal(t, integrity.CheckDoubleReversal, v.Check)
		require.Contains(t, v.Detail, "journal entry")
	}
}
