package journals

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	kinds "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var (
	// ErrCompanyRequired indicates a missing company scope.
	ErrCompanyRequired = kinds.NewError(kinds.ErrValidation, "accounting: company required")
	// ErrDateRequired indicates a missing entry date.
	ErrDateRequired = kinds.NewError(kinds.ErrValidation, "accounting: entry date required")
	// ErrDocumentTypeRequired indicates a missing document type tag.
	ErrDocumentTypeRequired = kinds.NewError(kinds.ErrValidation, "accounting: document type required")
	// ErrReverseReversal indicates an attempt to mirror a storno entry.
	ErrReverseReversal = kinds.NewError(kinds.ErrConflict, "accounting: reversal entries cannot be reversed")
)

// LineInput describes a journal line for posting request.
type LineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// EntryInput groups fields required to create a journal entry.
type EntryInput struct {
	CompanyID    int64
	Date         time.Time
	DocumentType DocumentType
	DocumentID   *int64
	ReversalOf   *int64
	Memo         string
	Lines        []LineInput
}

// Validate checks line shape and balance. It performs no lookups.
func (in EntryInput) Validate() error {
	if in.CompanyID <= 0 {
		return ErrCompanyRequired
	}
	if in.Date.IsZero() {
		return ErrDateRequired
	}
	if in.DocumentType == "" {
		return ErrDocumentTypeRequired
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	var debit, credit decimal.Decimal
	for idx, line := range in.Lines {
		if line.AccountID <= 0 {
			return &shared.InvalidLineError{Index: idx, Reason: "missing account"}
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return &shared.InvalidLineError{Index: idx, Reason: "negative amount"}
		}
		hasDebit, hasCredit := line.Debit.IsPositive(), line.Credit.IsPositive()
		if hasDebit && hasCredit {
			return &shared.InvalidLineError{Index: idx, Reason: "cannot be both debit and credit"}
		}
		if !hasDebit && !hasCredit {
			return &shared.InvalidLineError{Index: idx, Reason: "requires a debit or a credit"}
		}
		if !line.Debit.Equal(line.Debit.Round(AmountScale)) || !line.Credit.Equal(line.Credit.Round(AmountScale)) {
			return &shared.InvalidLineError{Index: idx, Reason: "too many decimal places"}
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if debit.Sub(credit).Abs().GreaterThan(BalanceTolerance) {
		return shared.ErrUnbalanced
	}
	return nil
}

// AccountIDs returns the distinct accounts referenced by the lines.
func (in EntryInput) AccountIDs() []int64 {
	seen := make(map[int64]struct{}, len(in.Lines))
	ids := make([]int64, 0, len(in.Lines))
	for _, line := range in.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	return ids
}

// ManualInput is a hand-keyed journal.
type ManualInput struct {
	CompanyID      int64
	Date           time.Time
	Memo           string
	ActorID        int64
	IdempotencyKey string
	Lines          []LineInput
}
