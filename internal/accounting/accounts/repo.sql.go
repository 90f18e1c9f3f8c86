package accounts

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type repository struct {
	db db.DBTX
}

// NewRepository returns a Postgres-backed Repository bound to a pool or tx.
func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

func (r *repository) List(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT id, company_id, code, name, type, is_active, created_at, updated_at
FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) FindIDsByCodes(ctx context.Context, companyID int64, codes []string) (map[string]int64, error) {
	out := make(map[string]int64, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT code, id FROM accounts WHERE company_id=$1 AND code = ANY($2)`, companyID, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			code string
			id   int64
		)
		if err := rows.Scan(&code, &id); err != nil {
			return nil, err
		}
		out[code] = id
	}
	return out, rows.Err()
}

func (r *repository) ExistingIDs(ctx context.Context, companyID int64, ids []int64) (map[int64]struct{}, error) {
	out := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id FROM accounts WHERE company_id=$1 AND id = ANY($2)`, companyID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (r *repository) HasJournalLines(ctx context.Context, companyID, accountID int64) (bool, error) {
	var used bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
	SELECT 1 FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
	WHERE e.company_id=$1 AND l.account_id=$2)`, companyID, accountID).Scan(&used)
	return used, err
}
