package posting

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// PgStore runs document actions in Postgres transactions.
type PgStore struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPgStore constructs PgStore. lockTimeout bounds row lock waits.
func NewPgStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PgStore {
	return &PgStore{pool: pool, lockTimeout: lockTimeout}
}

// WithTx executes fn within a read-committed transaction so the stock
// pre-check and the skip-locked lot scan see the latest committed quantities.
func (s *PgStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	opts := db.TxOptions{IsoLevel: pgx.ReadCommitted, LockTimeout: s.lockTimeout}
	return db.WithTx(ctx, s.pool, opts, func(tx pgx.Tx) error {
		return fn(ctx, newPgTx(tx))
	})
}

type pgTx struct {
	periods   periods.Repository
	accounts  accounts.Repository
	journals  journals.Repository
	inventory inventory.Repository
	documents documents.Repository
}

func newPgTx(tx pgx.Tx) *pgTx {
	return &pgTx{
		periods:   periods.NewRepository(tx),
		accounts:  accounts.NewRepository(tx),
		journals:  journals.NewRepository(tx),
		inventory: inventory.NewRepository(tx),
		documents: documents.NewRepository(tx),
	}
}

func (t *pgTx) Periods() periods.Repository     { return t.periods }
func (t *pgTx) Accounts() accounts.Repository   { return t.accounts }
func (t *pgTx) Journals() journals.Repository   { return t.journals }
func (t *pgTx) Inventory() inventory.Repository { return t.inventory }
func (t *pgTx) Documents() documents.Repository { return t.documents }
