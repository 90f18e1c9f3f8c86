package periods

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AssertOpen fails with *shared.PeriodClosedError when the month containing
// date is closed for the company. Callers run it first inside every
// transaction that creates a journal entry.
func AssertOpen(ctx context.Context, repo Repository, companyID int64, date time.Time) error {
	key := KeyOf(companyID, date)
	period, ok, err := repo.Find(ctx, key)
	if err != nil {
		return err
	}
	if ok && period.Closed {
		return &shared.PeriodClosedError{Year: key.Year, Month: key.Month}
	}
	return nil
}
