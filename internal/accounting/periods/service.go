package periods

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	kinds "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service closes and reopens accounting months. Both are metadata writes that
// only gate future ledger entries.
type Service struct {
	store  Store
	audit  kinds.AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the period service.
func NewService(store Store, audit kinds.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Close marks the period closed. Future periods cannot be closed.
func (s *Service) Close(ctx context.Context, key Key, actorID int64) (Period, error) {
	if err := key.Validate(); err != nil {
		return Period{}, err
	}
	now := s.now().UTC()
	if key.Start().After(now) {
		return Period{}, shared.ErrFuturePeriod
	}
	var out Period
	err := s.store.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, ok, err := repo.FindForUpdate(ctx, key)
		if err != nil {
			return err
		}
		if ok && current.Closed {
			return shared.ErrAlreadyClosed
		}
		if !ok {
			current = Period{Key: key}
		}
		current.Closed = true
		current.ClosedAt = &now
		current.ClosedBy = actorPtr(actorID)
		current.UpdatedAt = now
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		out = current
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, "period.close", key, actorID)
	return out, nil
}

// Reopen clears the closed flag of a previously closed period.
func (s *Service) Reopen(ctx context.Context, key Key, actorID int64) (Period, error) {
	if err := key.Validate(); err != nil {
		return Period{}, err
	}
	now := s.now().UTC()
	var out Period
	err := s.store.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, ok, err := repo.FindForUpdate(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrPeriodNotFound
		}
		if !current.Closed {
			return shared.ErrAlreadyOpen
		}
		current.Closed = false
		current.ReopenedAt = &now
		current.ReopenedBy = actorPtr(actorID)
		current.UpdatedAt = now
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		out = current
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, "period.reopen", key, actorID)
	return out, nil
}

func (s *Service) record(ctx context.Context, action string, key Key, actorID int64) {
	s.logger.Info(action, slog.Int64("company_id", key.CompanyID), slog.Int("year", key.Year), slog.Int("month", int(key.Month)))
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, kinds.AuditLog{
		ActorID:   actorID,
		CompanyID: key.CompanyID,
		Action:    action,
		Entity:    "accounting_period",
		EntityID:  fmt.Sprintf("%04d-%02d", key.Year, int(key.Month)),
		At:        s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func actorPtr(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
