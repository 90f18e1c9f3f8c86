package journals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	kinds "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service posts hand-keyed journals through the engine.
type Service struct {
	store  Store
	engine *Engine
	audit  kinds.AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the manual journal service.
func NewService(store Store, engine *Engine, audit kinds.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = NewEngine(logger)
	}
	return &Service{store: store, engine: engine, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostManual creates a MANUAL entry in its own transaction.
func (s *Service) PostManual(ctx context.Context, in ManualInput) (JournalEntry, error) {
	entryIn := EntryInput{
		CompanyID:    in.CompanyID,
		Date:         in.Date,
		DocumentType: DocumentTypeManual,
		Memo:         in.Memo,
		Lines:        in.Lines,
	}
	if err := entryIn.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ManualTx) error {
		if in.IdempotencyKey != "" {
			key := fmt.Sprintf("%d:%s", in.CompanyID, in.IdempotencyKey)
			if err := tx.Idempotency().CheckAndInsert(ctx, key, "journal.manual"); err != nil {
				return err
			}
		}
		created, err := s.engine.CreateEntry(ctx, tx, entryIn)
		if err != nil {
			return err
		}
		entry = created
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, kinds.AuditLog{
			ActorID:   in.ActorID,
			CompanyID: in.CompanyID,
			Action:    "journal.manual",
			Entity:    "journal_entry",
			EntityID:  fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"lines": len(entry.Lines),
				"date":  entry.Date.Format(time.DateOnly),
			},
			At: s.now(),
		}); err != nil {
			s.logger.Warn("audit record failed", slog.Int64("entry_id", entry.ID), slog.Any("error", err))
		}
	}
	return entry, nil
}
