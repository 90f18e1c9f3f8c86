package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type repository struct {
	db db.DBTX
}

// NewRepository binds a Postgres Repository to a transaction.
func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

const lotColumns = `id, company_id, warehouse_id, item_code, purchase_date, unit_cost, initial_qty, remaining_qty, source_document_id, created_at`

func (r *repository) InsertLot(ctx context.Context, in LotInput) (Lot, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO stock_lots (company_id, warehouse_id, item_code, purchase_date, unit_cost, initial_qty, remaining_qty, source_document_id)
VALUES ($1,$2,$3,$4,$5,$6,$6,$7) RETURNING `+lotColumns,
		in.CompanyID, in.WarehouseID, in.ItemCode, dateOnly(in.PurchaseDate), db.Numeric(in.UnitCost), db.Numeric(in.Quantity), in.SourceDocumentID)
	return scanLot(row)
}

func (r *repository) AvailableQuantity(ctx context.Context, companyID, warehouseID int64, itemCode string) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(remaining_qty), 0) FROM stock_lots
WHERE company_id=$1 AND warehouse_id=$2 AND item_code=$3`, companyID, warehouseID, itemCode).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return db.Decimal(total)
}

func (r *repository) LockAvailableLots(ctx context.Context, companyID, warehouseID int64, itemCode string) ([]Lot, error) {
	return r.queryLots(ctx, `SELECT `+lotColumns+` FROM stock_lots
WHERE company_id=$1 AND warehouse_id=$2 AND item_code=$3 AND remaining_qty > 0
ORDER BY purchase_date ASC, id ASC
FOR UPDATE SKIP LOCKED`, companyID, warehouseID, itemCode)
}

func (r *repository) LockLots(ctx context.Context, companyID int64, lotIDs []int64) ([]Lot, error) {
	if len(lotIDs) == 0 {
		return nil, nil
	}
	return r.queryLots(ctx, `SELECT `+lotColumns+` FROM stock_lots
WHERE company_id=$1 AND id = ANY($2) ORDER BY id FOR UPDATE`, companyID, lotIDs)
}

func (r *repository) LockLotsBySource(ctx context.Context, companyID, documentID int64) ([]Lot, error) {
	return r.queryLots(ctx, `SELECT `+lotColumns+` FROM stock_lots
WHERE company_id=$1 AND source_document_id=$2 ORDER BY id FOR UPDATE`, companyID, documentID)
}

func (r *repository) SetRemaining(ctx context.Context, lotID int64, remaining decimal.Decimal) error {
	cmd, err := r.db.Exec(ctx, `UPDATE stock_lots SET remaining_qty=$2
WHERE id=$1 AND $2::numeric BETWEEN 0 AND initial_qty`, lotID, db.Numeric(remaining))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() != 1 {
		return ErrNegativeStock
	}
	return nil
}

func (r *repository) InsertAllocation(ctx context.Context, a Allocation) (Allocation, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO stock_allocations (company_id, lot_id, document_id, document_line_no, kind, quantity, unit_cost, reversal_of)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at`,
		a.CompanyID, a.LotID, a.DocumentID, nullLineNo(a.DocumentLineNo), a.Kind, db.Numeric(a.Quantity), db.Numeric(a.UnitCost), a.ReversalOf).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return Allocation{}, err
	}
	return a, nil
}

func (r *repository) ListAllocations(ctx context.Context, companyID, documentID int64) ([]Allocation, error) {
	rows, err := r.db.Query(ctx, `SELECT id, company_id, lot_id, document_id, COALESCE(document_line_no, 0), kind, quantity, unit_cost, reversal_of, created_at
FROM stock_allocations WHERE company_id=$1 AND document_id=$2 ORDER BY id`, companyID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Allocation
	for rows.Next() {
		var (
			a              Allocation
			quantity, cost pgtype.Numeric
		)
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.LotID, &a.DocumentID, &a.DocumentLineNo, &a.Kind, &quantity, &cost, &a.ReversalOf, &a.CreatedAt); err != nil {
			return nil, err
		}
		if a.Quantity, err = db.Decimal(quantity); err != nil {
			return nil, err
		}
		if a.UnitCost, err = db.Decimal(cost); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) queryLots(ctx context.Context, query string, args ...any) ([]Lot, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lots []Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func scanLot(row pgx.Row) (Lot, error) {
	var (
		lot                      Lot
		cost, initial, remaining pgtype.Numeric
	)
	err := row.Scan(&lot.ID, &lot.CompanyID, &lot.WarehouseID, &lot.ItemCode, &lot.PurchaseDate, &cost, &initial, &remaining, &lot.SourceDocumentID, &lot.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lot{}, ErrLotNotFound
		}
		return Lot{}, err
	}
	if lot.UnitCost, err = db.Decimal(cost); err != nil {
		return Lot{}, err
	}
	if lot.InitialQty, err = db.Decimal(initial); err != nil {
		return Lot{}, err
	}
	if lot.RemainingQty, err = db.Decimal(remaining); err != nil {
		return Lot{}, err
	}
	return lot, nil
}

func nullLineNo(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
