package shared

import (
	"fmt"
	"strings"
	"time"

	kinds "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = kinds.NewError(kinds.ErrValidation, "accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = kinds.NewError(kinds.ErrValidation, "accounting: journal requires at least two lines")
	// ErrInvalidLine indicates a line with both, neither or negative sides.
	ErrInvalidLine = kinds.NewError(kinds.ErrValidation, "accounting: invalid journal line")
	// ErrAccountNotFound indicates accounts missing from the company chart.
	ErrAccountNotFound = kinds.NewError(kinds.ErrNotFound, "accounting: account not found")
	// ErrPeriodClosed indicates the accounting period is closed for posting.
	ErrPeriodClosed = kinds.NewError(kinds.ErrConflict, "accounting: period closed")
	// ErrAlreadyClosed indicates close was requested twice.
	ErrAlreadyClosed = kinds.NewError(kinds.ErrConflict, "accounting: period already closed")
	// ErrAlreadyOpen indicates reopen on an open period.
	ErrAlreadyOpen = kinds.NewError(kinds.ErrConflict, "accounting: period already open")
	// ErrPeriodNotFound indicates reopen on a period that was never closed.
	ErrPeriodNotFound = kinds.NewError(kinds.ErrNotFound, "accounting: period not found")
	// ErrFuturePeriod indicates an attempt to close a period that has not started.
	ErrFuturePeriod = kinds.NewError(kinds.ErrValidation, "accounting: cannot close a future period")
	// ErrInvalidPeriod indicates year/month out of range.
	ErrInvalidPeriod = kinds.NewError(kinds.ErrValidation, "accounting: invalid period")
	// ErrProfileMissing indicates the chart lacks accounts required by a posting profile.
	ErrProfileMissing = kinds.NewError(kinds.ErrNotFound, "accounting: posting profile missing")
	// ErrUnknownVATMode indicates a VAT mode absent from the chart mapping.
	ErrUnknownVATMode = kinds.NewError(kinds.ErrValidation, "accounting: unknown vat mode")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = kinds.NewError(kinds.ErrNotFound, "accounting: journal entry not found")
	// ErrProtectedAccount indicates maintenance on a code the resolver depends on.
	ErrProtectedAccount = kinds.NewError(kinds.ErrConflict, "accounting: account code is protected")
	// ErrAccountInUse indicates a type change on an account that already has postings.
	ErrAccountInUse = kinds.NewError(kinds.ErrConflict, "accounting: account already used in journal")
)

// PeriodClosedError carries the closed period.
type PeriodClosedError struct {
	Year  int
	Month time.Month
}

func (e *PeriodClosedError) Error() string {
	return fmt.Sprintf("accounting: period %04d-%02d is closed", e.Year, int(e.Month))
}

func (e *PeriodClosedError) Unwrap() error { return ErrPeriodClosed }

// AccountNotFoundError lists account ids absent from the company chart.
type AccountNotFoundError struct {
	IDs []int64
}

func (e *AccountNotFoundError) Error() string {
	ids := make([]string, 0, len(e.IDs))
	for _, id := range e.IDs {
		ids = append(ids, fmt.Sprintf("%d", id))
	}
	return fmt.Sprintf("accounting: accounts not found: %s", strings.Join(ids, ", "))
}

func (e *AccountNotFoundError) Unwrap() error { return ErrAccountNotFound }

// ProfileMissingError lists account codes the company has not imported.
type ProfileMissingError struct {
	Codes []string
}

func (e *ProfileMissingError) Error() string {
	return fmt.Sprintf("accounting: posting profile missing codes %s; import the chart of accounts first", strings.Join(e.Codes, ", "))
}

func (e *ProfileMissingError) Unwrap() error { return ErrProfileMissing }

// InvalidLineError points at the offending line.
type InvalidLineError struct {
	Index  int
	Reason string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("accounting: line %d %s", e.Index, e.Reason)
}

func (e *InvalidLineError) Unwrap() error { return ErrInvalidLine }
