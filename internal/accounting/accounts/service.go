package accounts

import (
	"context"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Guard protects chart-of-accounts maintenance from breaking posting profiles.
// Chart maintenance itself lives outside the ledger core and calls the guard
// before deleting, recoding or retyping an account.
type Guard struct {
	repo      Repository
	protected map[string]struct{}
}

// NewGuard constructs a Guard over the given protected codes.
func NewGuard(repo Repository, protected []string) *Guard {
	set := make(map[string]struct{}, len(protected))
	for _, code := range protected {
		set[strings.TrimSpace(code)] = struct{}{}
	}
	return &Guard{repo: repo, protected: set}
}

// IsProtected reports whether code is referenced by a posting profile.
func (g *Guard) IsProtected(code string) bool {
	_, ok := g.protected[strings.TrimSpace(code)]
	return ok
}

// AssertMutable fails for codes that must never be deleted or renumbered.
func (g *Guard) AssertMutable(code string) error {
	if g.IsProtected(code) {
		return shared.ErrProtectedAccount
	}
	return nil
}

// AssertTypeChangeAllowed fails once the account carries journal lines.
func (g *Guard) AssertTypeChangeAllowed(ctx context.Context, companyID, accountID int64) error {
	used, err := g.repo.HasJournalLines(ctx, companyID, accountID)
	if err != nil {
		return err
	}
	if used {
		return shared.ErrAccountInUse
	}
	return nil
}

// Service exposes read access to the chart together with the guard verdicts
// chart maintenance needs.
type Service struct {
	repo  Repository
	guard *Guard
}

func NewService(repo Repository, guard *Guard) *Service {
	if guard == nil {
		guard = NewGuard(repo, nil)
	}
	return &Service{repo: repo, guard: guard}
}

// ChartEntry is an account annotated with its protection state.
type ChartEntry struct {
	Account
	Protected bool
}

func (s *Service) List(ctx context.Context, companyID int64) ([]ChartEntry, error) {
	list, err := s.repo.List(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := make([]ChartEntry, 0, len(list))
	for _, a := range list {
		out = append(out, ChartEntry{Account: a, Protected: s.guard.IsProtected(a.Code)})
	}
	return out, nil
}

// CheckTypeChange reports whether accountID may still change its type.
func (s *Service) CheckTypeChange(ctx context.Context, companyID, accountID int64) error {
	return s.guard.AssertTypeChangeAllowed(ctx, companyID, accountID)
}

// CheckRecode reports whether code may be deleted or renumbered.
func (s *Service) CheckRecode(code string) error {
	return s.guard.AssertMutable(code)
}
