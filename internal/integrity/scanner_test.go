package integrity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	unbalanced []Violation
	sides      []Violation
	lots       []Violation
	reversals  []Violation
	err        error
}

func (r stubRepo) UnbalancedEntries(ctx context.Context) ([]Violation, error) {
	return r.unbalanced, nil
}

func (r stubRepo) InvalidLineSides(ctx context.Context) ([]Violation, error) {
	return r.sides, nil
}

func (r stubRepo) LotsOutOfBounds(ctx context.Context) ([]Violation, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.lots, nil
}

func (r stubRepo) DoubleReversals(ctx context.Context) ([]Violation, error) {
	return r.reversals, nil
}

func TestScanCleanLedger(t *testing.T) {
	report, err := NewScanner(stubRepo{}, nil).Scan(context.Background())
	require.NoError(t, err)
	require.True(t, report.Clean())
	require.Equal(t, map[string]int{
		CheckUnbalancedEntry: 0,
		CheckLineSides:       0,
		CheckLotBounds:       0,
		CheckDoubleReversal:  0,
	}, report.Counts())
	require.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestScanSortsAndCountsViolations(t *testing.T) {
	repo := stubRepo{
		unbalanced: []Violation{
			{Check: CheckUnbalancedEntry, CompanyID: 2, EntityID: 5},
			{Check: CheckUnbalancedEntry, CompanyID: 1, EntityID: 9},
		},
		lots: []Violation{{Check: CheckLotBounds, CompanyID: 1, EntityID: 3, Detail: "remaining -1 initial 10"}},
	}

	report, err := NewScanner(repo, nil).Scan(context.Background())
	require.NoError(t, err)
	require.False(t, report.Clean())
	require.Len(t, report.Violations, 3)
	require.Equal(t, CheckLotBounds, report.Violations[0].Check)
	require.Equal(t, int64(1), report.Violations[1].CompanyID)
	require.Equal(t, int64(2), report.Violations[2].CompanyID)
	require.Equal(t, 2, report.Counts()[CheckUnbalancedEntry])
	require.Equal(t, 1, report.Counts()[CheckLotBounds])
}

func TestScanAbortsOnQueryError(t *testing.T) {
	boom := errors.New("relation stock_lots does not exist")
	_, err := NewScanner(stubRepo{err: boom}, nil).Scan(context.Background())
	require.ErrorIs(t, err, boom)
}
