package integrity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) UnbalancedEntries(ctx context.Context) ([]Violation, error) {
	return r.collect(ctx, CheckUnbalancedEntry, `SELECT e.company_id, e.id, SUM(l.debit), SUM(l.credit)
FROM journal_entries e JOIN journal_lines l ON l.entry_id = e.id
GROUP BY e.company_id, e.id
HAVING ABS(SUM(l.debit) - SUM(l.credit)) > $1::numeric OR COUNT(*) < 2`,
		func(a, b string) string { return fmt.Sprintf("debit %s credit %s", a, b) },
		db.Numeric(journals.BalanceTolerance))
}

func (r *repository) InvalidLineSides(ctx context.Context) ([]Violation, error) {
	return r.collect(ctx, CheckLineSides, `SELECT e.company_id, l.id, l.debit, l.credit
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
LEFT JOIN accounts a ON a.id = l.account_id AND a.company_id = e.company_id
WHERE (l.debit > 0) = (l.credit > 0) OR l.debit < 0 OR l.credit < 0 OR a.id IS NULL`,
		func(a, b string) string { return fmt.Sprintf("debit %s credit %s", a, b) })
}

func (r *repository) LotsOutOfBounds(ctx context.Context) ([]Violation, error) {
	return r.collect(ctx, CheckLotBounds, `SELECT company_id, id, remaining_qty, initial_qty
FROM stock_lots WHERE remaining_qty < 0 OR remaining_qty > initial_qty`,
		func(a, b string) string { return fmt.Sprintf("remaining %s initial %s", a, b) })
}

// DoubleReversals reports stock issues restored more than once and journal
// entries reversed more than once or reversing a reversal.
func (r *repository) DoubleReversals(ctx context.Context) ([]Violation, error) {
	allocations, err := r.collect(ctx, CheckDoubleReversal, `SELECT i.company_id, i.id, i.quantity, SUM(rv.quantity)
FROM stock_allocations i JOIN stock_allocations rv ON rv.reversal_of = i.id AND rv.kind = 'REVERSAL'
WHERE i.kind = 'ISSUE'
GROUP BY i.company_id, i.id, i.quantity
HAVING COUNT(rv.id) > 1 OR SUM(rv.quantity) > i.quantity`,
		func(a, b string) string { return fmt.Sprintf("allocation issued %s restored %s", a, b) })
	if err != nil {
		return nil, err
	}
	entries, err := r.collect(ctx, CheckDoubleReversal, `SELECT o.company_id, o.id, COUNT(rv.id)::numeric,
	CASE WHEN o.reversal_of IS NULL THEN 0 ELSE 1 END::numeric
FROM journal_entries o JOIN journal_entries rv ON rv.reversal_of = o.id
GROUP BY o.company_id, o.id, o.reversal_of
HAVING COUNT(rv.id) > 1 OR o.reversal_of IS NOT NULL`,
		func(a, b string) string { return fmt.Sprintf("journal entry reversed %s times, storno %s", a, b) })
	if err != nil {
		return nil, err
	}
	return append(allocations, entries...), nil
}

// collect runs a query returning (company_id, entity_id, numeric, numeric).
func (r *repository) collect(ctx context.Context, check, query string, detail func(a, b string) string, args ...any) ([]Violation, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("integrity: %s: %w", check, err)
	}
	defer rows.Close()
	var out []Violation
	for rows.Next() {
		var (
			v    Violation
			a, b pgtype.Numeric
		)
		if err := rows.Scan(&v.CompanyID, &v.EntityID, &a, &b); err != nil {
			return nil, err
		}
		da, err := db.Decimal(a)
		if err != nil {
			return nil, err
		}
		dbv, err := db.Decimal(b)
		if err != nil {
			return nil, err
		}
		v.Check = check
		v.Detail = detail(da.String(), dbv.String())
		out = append(out, v)
	}
	return out, rows.Err()
}
