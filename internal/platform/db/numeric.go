package db

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Decimal converts a scanned NUMERIC into a decimal. NULL maps to zero.
func Decimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, fmt.Errorf("platform/db: non-finite numeric")
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

// Numeric renders a decimal as a NUMERIC query argument.
func Numeric(d decimal.Decimal) string {
	return d.String()
}
