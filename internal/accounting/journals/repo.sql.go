package journals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	kinds "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type repository struct {
	db db.DBTX
}

// NewRepository binds a Postgres Repository to a transaction.
func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

func (r *repository) Insert(ctx context.Context, in EntryInput) (JournalEntry, error) {
	entry := JournalEntry{
		CompanyID:    in.CompanyID,
		Date:         in.Date,
		DocumentType: in.DocumentType,
		DocumentID:   in.DocumentID,
		ReversalOf:   in.ReversalOf,
		Memo:         in.Memo,
	}
	err := r.db.QueryRow(ctx, `INSERT INTO journal_entries (company_id, entry_date, document_type, document_id, reversal_of, memo)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`,
		in.CompanyID, dateOnly(in.Date), in.DocumentType, in.DocumentID, in.ReversalOf, in.Memo).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	batch := &pgx.Batch{}
	for idx, line := range in.Lines {
		batch.Queue(`INSERT INTO journal_lines (entry_id, line_no, account_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, entry.ID, idx+1, line.AccountID, db.Numeric(line.Debit), db.Numeric(line.Credit), line.Memo)
	}
	results := r.db.SendBatch(ctx, batch)
	entry.Lines = make([]JournalLine, 0, len(in.Lines))
	for idx, line := range in.Lines {
		stored := JournalLine{
			EntryID:   entry.ID,
			LineNo:    idx + 1,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		}
		if err := results.QueryRow().Scan(&stored.ID); err != nil {
			_ = results.Close()
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, stored)
	}
	if err := results.Close(); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

const selectEntry = `SELECT id, company_id, entry_date, document_type, document_id, reversal_of, memo, created_at FROM journal_entries`

func (r *repository) Get(ctx context.Context, companyID, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := scanEntry(r.db.QueryRow(ctx, selectEntry+` WHERE company_id=$1 AND id=$2`, companyID, entryID), &entry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	lines, err := r.lines(ctx, []int64{entry.ID})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines[entry.ID]
	return entry, nil
}

func (r *repository) ListByDocument(ctx context.Context, companyID int64, documentType DocumentType, documentID int64) ([]JournalEntry, error) {
	rows, err := r.db.Query(ctx, selectEntry+` WHERE company_id=$1 AND document_type=$2 AND document_id=$3 ORDER BY id`, companyID, documentType, documentID)
	if err != nil {
		return nil, err
	}
	var (
		entries []JournalEntry
		ids     []int64
	)
	for rows.Next() {
		var entry JournalEntry
		if err := scanEntry(rows, &entry); err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, entry)
		ids = append(ids, entry.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	lines, err := r.lines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Lines = lines[entries[i].ID]
	}
	return entries, nil
}

func (r *repository) lines(ctx context.Context, entryIDs []int64) (map[int64][]JournalLine, error) {
	rows, err := r.db.Query(ctx, `SELECT id, entry_id, line_no, account_id, debit, credit, memo
FROM journal_lines WHERE entry_id = ANY($1) ORDER BY entry_id, line_no`, entryIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]JournalLine, len(entryIDs))
	for rows.Next() {
		var (
			line          JournalLine
			debit, credit pgtype.Numeric
		)
		if err := rows.Scan(&line.ID, &line.EntryID, &line.LineNo, &line.AccountID, &debit, &credit, &line.Memo); err != nil {
			return nil, err
		}
		if line.Debit, err = db.Decimal(debit); err != nil {
			return nil, err
		}
		if line.Credit, err = db.Decimal(credit); err != nil {
			return nil, err
		}
		out[line.EntryID] = append(out[line.EntryID], line)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row, entry *JournalEntry) error {
	return row.Scan(&entry.ID, &entry.CompanyID, &entry.Date, &entry.DocumentType, &entry.DocumentID, &entry.ReversalOf, &entry.Memo, &entry.CreatedAt)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PgStore runs manual journals in their own Postgres transaction.
type PgStore struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPgStore constructs PgStore.
func NewPgStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PgStore {
	return &PgStore{pool: pool, lockTimeout: lockTimeout}
}

// WithTx executes fn within a read-committed transaction.
func (s *PgStore) WithTx(ctx context.Context, fn func(context.Context, ManualTx) error) error {
	return db.WithTx(ctx, s.pool, db.TxOptions{LockTimeout: s.lockTimeout}, func(tx pgx.Tx) error {
		return fn(ctx, pgManualTx{tx: tx})
	})
}

type pgManualTx struct {
	tx pgx.Tx
}

func (t pgManualTx) Periods() periods.Repository   { return periods.NewRepository(t.tx) }
func (t pgManualTx) Accounts() accounts.Repository { return accounts.NewRepository(t.tx) }
func (t pgManualTx) Journals() Repository          { return NewRepository(t.tx) }
func (t pgManualTx) Idempotency() IdempotencyKeys  { return kinds.NewIdempotencyStore(t.tx) }
