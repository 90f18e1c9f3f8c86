package documents

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
)

// Kind distinguishes issue and receipt documents.
type Kind string

const (
	KindSale     Kind = "SALE"
	KindPurchase Kind = "PURCHASE"
)

// Status enumerates the document lifecycle.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
	StatusLocked    Status = "LOCKED"
)

// Line is one item row of a document.
type Line struct {
	LineNo    int             `validate:"gt=0"`
	ItemCode  string          `validate:"required"`
	Quantity  decimal.Decimal `validate:"gt=0"`
	UnitPrice decimal.Decimal `validate:"gte=0"`
}

// Net is quantity times price rounded to cents.
func (l Line) Net() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice).Round(2)
}

// Document is a sale or purchase as seen by the ledger core. Drafts are
// created and edited elsewhere.
type Document struct {
	ID          int64            `validate:"gt=0"`
	CompanyID   int64            `validate:"gt=0"`
	Kind        Kind             `validate:"oneof=SALE PURCHASE"`
	Number      string           `validate:"required"`
	Date        time.Time        `validate:"required"`
	WarehouseID int64            `validate:"gt=0"`
	PartnerID   int64            `validate:"gt=0"`
	VATMode     mappings.VATMode `validate:"omitempty,oneof=STANDARD REDUCED EXEMPT"`
	Status      Status
	Lines       []Line `validate:"min=1,dive"`
	// PostingAccounts holds the accounts used at posting time.
	PostingAccounts map[mappings.Role]int64
	// EntryIDs lists the journal entries produced by posting and cancelling.
	EntryIDs    []int64
	PostedAt    *time.Time
	CancelledAt *time.Time
	LockedAt    *time.Time
	UpdatedAt   time.Time
}

// Totals are the monetary sums of a document.
type Totals struct {
	Net   decimal.Decimal
	VAT   decimal.Decimal
	Gross decimal.Decimal
}

// ComputeTotals sums line nets and applies rate.
func (d Document) ComputeTotals(rate decimal.Decimal) Totals {
	net := decimal.Zero
	for _, line := range d.Lines {
		net = net.Add(line.Net())
	}
	vat := net.Mul(rate).Round(2)
	return Totals{Net: net, VAT: vat, Gross: net.Add(vat)}
}
