package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type repository struct {
	db db.DBTX
}

// NewRepository binds a Postgres Repository to a pool or transaction.
func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

const selectPeriod = `SELECT company_id, year, month, closed, closed_at, closed_by, reopened_at, reopened_by, updated_at
FROM accounting_periods WHERE company_id=$1 AND year=$2 AND month=$3`

func (r *repository) Find(ctx context.Context, key Key) (Period, bool, error) {
	return r.find(ctx, selectPeriod+` FOR SHARE`, key)
}

func (r *repository) FindForUpdate(ctx context.Context, key Key) (Period, bool, error) {
	return r.find(ctx, selectPeriod+` FOR UPDATE`, key)
}

func (r *repository) find(ctx context.Context, query string, key Key) (Period, bool, error) {
	var (
		p     Period
		month int
	)
	err := r.db.QueryRow(ctx, query, key.CompanyID, key.Year, int(key.Month)).
		Scan(&p.CompanyID, &p.Year, &month, &p.Closed, &p.ClosedAt, &p.ClosedBy, &p.ReopenedAt, &p.ReopenedBy, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, false, nil
		}
		return Period{}, false, err
	}
	p.Month = time.Month(month)
	return p, true, nil
}

func (r *repository) Save(ctx context.Context, p Period) error {
	_, err := r.db.Exec(ctx, `INSERT INTO accounting_periods (company_id, year, month, closed, closed_at, closed_by, reopened_at, reopened_by, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (company_id, year, month) DO UPDATE SET
	closed=EXCLUDED.closed, closed_at=EXCLUDED.closed_at, closed_by=EXCLUDED.closed_by,
	reopened_at=EXCLUDED.reopened_at, reopened_by=EXCLUDED.reopened_by, updated_at=EXCLUDED.updated_at`,
		p.CompanyID, p.Year, int(p.Month), p.Closed, p.ClosedAt, p.ClosedBy, p.ReopenedAt, p.ReopenedBy, p.UpdatedAt)
	return err
}

// PgStore runs period management in its own Postgres transaction.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore constructs PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// WithTx executes fn within a read-committed transaction.
func (s *PgStore) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, s.pool, db.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, NewRepository(tx))
	})
}
