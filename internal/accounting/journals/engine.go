package journals

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Engine is the single writer of journal entries.
type Engine struct {
	logger *slog.Logger
}

// NewEngine constructs the ledger engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// CreateEntry validates and persists a balanced entry inside tx. The period
// guard runs before any lookup so closed months fail fast.
func (e *Engine) CreateEntry(ctx context.Context, tx Tx, in EntryInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if err := periods.AssertOpen(ctx, tx.Periods(), in.CompanyID, in.Date); err != nil {
		return JournalEntry{}, err
	}
	ids := in.AccountIDs()
	existing, err := tx.Accounts().ExistingIDs(ctx, in.CompanyID, ids)
	if err != nil {
		return JournalEntry{}, err
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return JournalEntry{}, &shared.AccountNotFoundError{IDs: missing}
	}
	entry, err := tx.Journals().Insert(ctx, in)
	if err != nil {
		return JournalEntry{}, err
	}
	e.logger.Debug("journal entry created",
		slog.Int64("company_id", in.CompanyID),
		slog.Int64("entry_id", entry.ID),
		slog.String("document_type", string(in.DocumentType)),
		slog.Int("lines", len(entry.Lines)))
	return entry, nil
}

// Reverse writes the storno mirror of original dated at date: every debit
// becomes a credit and vice versa, tagged with the reversal document type.
func (e *Engine) Reverse(ctx context.Context, tx Tx, original JournalEntry, date time.Time) (JournalEntry, error) {
	if original.DocumentType.IsReversal() {
		return JournalEntry{}, ErrReverseReversal
	}
	id := original.ID
	in := EntryInput{
		CompanyID:    original.CompanyID,
		Date:         date,
		DocumentType: original.DocumentType.Reversal(),
		DocumentID:   original.DocumentID,
		ReversalOf:   &id,
		Memo:         original.Memo,
		Lines:        reverseLines(original.Lines),
	}
	return e.CreateEntry(ctx, tx, in)
}

func reverseLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
			Memo:      line.Memo,
		})
	}
	return out
}
