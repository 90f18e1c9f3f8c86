package documents

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type repository struct {
	db db.DBTX
}

// NewRepository binds a Postgres Repository to a transaction.
func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

func (r *repository) GetForUpdate(ctx context.Context, companyID, documentID int64) (Document, error) {
	var (
		doc      Document
		vatMode  *string
		accounts []byte
	)
	err := r.db.QueryRow(ctx, `SELECT id, company_id, kind, number, doc_date, warehouse_id, partner_id, vat_mode, status,
	posting_accounts, entry_ids, posted_at, cancelled_at, locked_at, updated_at
FROM documents WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, documentID).
		Scan(&doc.ID, &doc.CompanyID, &doc.Kind, &doc.Number, &doc.Date, &doc.WarehouseID, &doc.PartnerID, &vatMode, &doc.Status,
			&accounts, &doc.EntryIDs, &doc.PostedAt, &doc.CancelledAt, &doc.LockedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, err
	}
	if vatMode != nil {
		doc.VATMode = mappings.VATMode(*vatMode)
	}
	if len(accounts) > 0 {
		if err := json.Unmarshal(accounts, &doc.PostingAccounts); err != nil {
			return Document{}, err
		}
	}
	rows, err := r.db.Query(ctx, `SELECT line_no, item_code, quantity, unit_price
FROM document_lines WHERE document_id=$1 ORDER BY line_no`, doc.ID)
	if err != nil {
		return Document{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			line            Line
			quantity, price pgtype.Numeric
		)
		if err := rows.Scan(&line.LineNo, &line.ItemCode, &quantity, &price); err != nil {
			return Document{}, err
		}
		if line.Quantity, err = db.Decimal(quantity); err != nil {
			return Document{}, err
		}
		if line.UnitPrice, err = db.Decimal(price); err != nil {
			return Document{}, err
		}
		doc.Lines = append(doc.Lines, line)
	}
	return doc, rows.Err()
}

func (r *repository) SaveState(ctx context.Context, doc Document) error {
	var accounts []byte
	if len(doc.PostingAccounts) > 0 {
		encoded, err := json.Marshal(doc.PostingAccounts)
		if err != nil {
			return err
		}
		accounts = encoded
	}
	var vatMode any
	if doc.VATMode != "" {
		vatMode = string(doc.VATMode)
	}
	cmd, err := r.db.Exec(ctx, `UPDATE documents SET status=$3, vat_mode=$4, posting_accounts=$5, entry_ids=COALESCE($6::bigint[], '{}'),
	posted_at=$7, cancelled_at=$8, locked_at=$9, updated_at=NOW()
WHERE company_id=$1 AND id=$2`,
		doc.CompanyID, doc.ID, doc.Status, vatMode, accounts, doc.EntryIDs, doc.PostedAt, doc.CancelledAt, doc.LockedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
