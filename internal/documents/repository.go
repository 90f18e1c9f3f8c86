package documents

import "context"

// Repository loads and updates documents inside a ledger transaction.
type Repository interface {
	// GetForUpdate loads the document with its lines and locks the header row.
	GetForUpdate(ctx context.Context, companyID, documentID int64) (Document, error)
	// SaveState persists status, VAT mode, posting accounts, entry ids and
	// lifecycle timestamps.
	SaveState(ctx context.Context, doc Document) error
}
