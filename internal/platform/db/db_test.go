package db

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func TestClassifyMarksLockFailuresTransient(t *testing.T) {
	for _, code := range []string{"55P03", "40001", "40P01"} {
		err := classify(fmt.Errorf("allocate: %w", &pgconn.PgError{Code: code}))
		require.ErrorIs(t, err, shared.ErrTransient, code)
		var transient *TransientError
		require.ErrorAs(t, err, &transient)
		require.Equal(t, code, transient.Code)
	}

	unique := &pgconn.PgError{Code: "23505"}
	require.Same(t, unique, classify(unique))
	require.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", unique)))

	plain := errors.New("boom")
	require.Equal(t, plain, classify(plain))
	require.Equal(t, shared.KindInternal, shared.KindOf(classify(plain)))
}

func TestPgx5URL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/ledger?sslmode=disable", pgx5URL("postgres://u:p@db:5432/ledger?sslmode=disable"))
	require.Equal(t, "pgx5://db/ledger", pgx5URL("postgresql://db/ledger"))
	require.Equal(t, "pgx5://db/ledger", pgx5URL("pgx5://db/ledger"))
}

func TestDecimalConversion(t *testing.T) {
	got, err := Decimal(pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true})
	require.NoError(t, err)
	require.Equal(t, "123.45", got.String())

	got, err = Decimal(pgtype.Numeric{})
	require.NoError(t, err)
	require.True(t, got.IsZero())

	_, err = Decimal(pgtype.Numeric{NaN: true, Valid: true})
	require.Error(t, err)

	require.Equal(t, "0.01", Numeric(decimal.RequireFromString("0.01")))
}
