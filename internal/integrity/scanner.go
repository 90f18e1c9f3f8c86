// Package integrity re-verifies ledger and stock invariants from stored data.
// It never writes.
package integrity

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Check names.
const (
	CheckUnbalancedEntry = "unbalanced_entry"
	CheckLineSides       = "line_sides"
	CheckLotBounds       = "lot_bounds"
	CheckDoubleReversal  = "double_reversal"
)

// Violation is one broken invariant.
type Violation struct {
	Check     string
	CompanyID int64
	EntityID  int64
	Detail    string
}

// Repository runs read-only invariant queries.
type Repository interface {
	UnbalancedEntries(ctx context.Context) ([]Violation, error)
	InvalidLineSides(ctx context.Context) ([]Violation, error)
	LotsOutOfBounds(ctx context.Context) ([]Violation, error)
	DoubleReversals(ctx context.Context) ([]Violation, error)
}

// Report is the outcome of one scan.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Violations []Violation
}

// Counts groups violations by check. Every check appears, clean ones with 0.
func (r Report) Counts() map[string]int {
	out := map[string]int{
		CheckUnbalancedEntry: 0,
		CheckLineSides:       0,
		CheckLotBounds:       0,
		CheckDoubleReversal:  0,
	}
	for _, v := range r.Violations {
		out[v.Check]++
	}
	return out
}

// Clean reports whether no invariant was broken.
func (r Report) Clean() bool {
	return len(r.Violations) == 0
}

// Scanner runs every check concurrently.
type Scanner struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewScanner constructs Scanner.
func NewScanner(repo Repository, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{repo: repo, logger: logger, now: time.Now}
}

// Scan executes all checks. The first query error aborts the scan.
func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	report := Report{StartedAt: s.now()}
	checks := []func(context.Context) ([]Violation, error){
		s.repo.UnbalancedEntries,
		s.repo.InvalidLineSides,
		s.repo.LotsOutOfBounds,
		s.repo.DoubleReversals,
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, check := range checks {
		check := check
		g.Go(func() error {
			found, err := check(gctx)
			if err != nil {
				return err
			}
			mu.Lock()
			report.Violations = append(report.Violations, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	sort.Slice(report.Violations, func(i, j int) bool {
		a, b := report.Violations[i], report.Violations[j]
		if a.Check != b.Check {
			return a.Check < b.Check
		}
		if a.CompanyID != b.CompanyID {
			return a.CompanyID < b.CompanyID
		}
		return a.EntityID < b.EntityID
	})
	report.FinishedAt = s.now()
	for _, v := range report.Violations {
		s.logger.Error("ledger invariant violated",
			slog.String("check", v.Check),
			slog.Int64("company_id", v.CompanyID),
			slog.Int64("entity_id", v.EntityID),
			slog.String("detail", v.Detail))
	}
	return report, nil
}
