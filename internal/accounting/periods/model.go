package periods

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Key identifies an accounting month of a company.
type Key struct {
	CompanyID int64
	Year      int
	Month     time.Month
}

// KeyOf derives the period key covering date.
func KeyOf(companyID int64, date time.Time) Key {
	return Key{CompanyID: companyID, Year: date.Year(), Month: date.Month()}
}

// Validate checks year/month ranges.
func (k Key) Validate() error {
	if k.CompanyID <= 0 || k.Year < 1900 || k.Year > 9999 || k.Month < time.January || k.Month > time.December {
		return shared.ErrInvalidPeriod
	}
	return nil
}

// Start returns the first instant of the period in UTC.
func (k Key) Start() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Period is the close state of one accounting month. A missing record means
// the month is open.
type Period struct {
	Key
	Closed     bool
	ClosedAt   *time.Time
	ClosedBy   *int64
	ReopenedAt *time.Time
	ReopenedBy *int64
	UpdatedAt  time.Time
}
