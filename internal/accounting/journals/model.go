package journals

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType tags the business event an entry records.
type DocumentType string

const (
	DocumentTypeSale             DocumentType = "SALE"
	DocumentTypePurchase         DocumentType = "PURCHASE"
	DocumentTypeSaleReversal     DocumentType = "SALE_REVERSAL"
	DocumentTypePurchaseReversal DocumentType = "PURCHASE_REVERSAL"
	DocumentTypeManual           DocumentType = "MANUAL"
)

const reversalSuffix = "_REVERSAL"

// Reversal returns the tag of the mirror entry.
func (t DocumentType) Reversal() DocumentType {
	if t.IsReversal() {
		return t
	}
	return t + reversalSuffix
}

// IsReversal reports whether t tags a storno entry.
func (t DocumentType) IsReversal() bool {
	return strings.HasSuffix(string(t), reversalSuffix)
}

// BalanceTolerance is the largest accepted difference between debit and
// credit totals of one entry.
var BalanceTolerance = decimal.RequireFromString("0.01")

// AmountScale is the number of decimal places a line amount may carry.
const AmountScale int32 = 2

// JournalEntry is an immutable, balanced set of lines.
type JournalEntry struct {
	ID           int64
	CompanyID    int64
	Date         time.Time
	DocumentType DocumentType
	DocumentID   *int64
	// ReversalOf points at the entry this one mirrors.
	ReversalOf *int64
	Memo       string
	CreatedAt  time.Time
	Lines      []JournalLine
}

// Totals sums both sides of the entry.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	for _, line := range e.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID        int64
	EntryID   int64
	LineNo    int
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}
