package accounts

import "context"

// Repository reads the chart of accounts. Implementations are scoped to a
// pool or to an open transaction.
type Repository interface {
	List(ctx context.Context, companyID int64) ([]Account, error)
	// FindIDsByCodes returns code -> id for the codes present in the company chart.
	FindIDsByCodes(ctx context.Context, companyID int64, codes []string) (map[string]int64, error)
	// ExistingIDs returns the subset of ids that belong to the company.
	ExistingIDs(ctx context.Context, companyID int64, ids []int64) (map[int64]struct{}, error)
	HasJournalLines(ctx context.Context, companyID, accountID int64) (bool, error)
}
