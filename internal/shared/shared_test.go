package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(nil))
	require.Equal(t, KindValidation, KindOf(NewError(ErrValidation, "x")))
	require.Equal(t, KindConflict, KindOf(fmt.Errorf("ctx: %w", NewError(ErrConflict, "x"))))
	require.Equal(t, KindNotFound, KindOf(NewError(ErrNotFound, "x")))
	require.Equal(t, KindIntegrity, KindOf(NewError(ErrIntegrity, "x")))
	require.Equal(t, KindTransient, KindOf(errors.Join(ErrTransient, errors.New("dial tcp"))))
	require.Equal(t, KindInternal, KindOf(errors.New("x")))
}

func TestNewErrorKeepsMessage(t *testing.T) {
	err := NewError(ErrConflict, "accounting: period closed")
	require.EqualError(t, err, "accounting: period closed")
	require.ErrorIs(t, err, ErrConflict)
	require.NotErrorIs(t, err, ErrValidation)
}

func TestDocumentLockKey(t *testing.T) {
	require.Equal(t, "ledger:company:3:document:42:lock", DocumentLockKey(3, 42))
}

type stubExecer struct {
	err   error
	calls []string
}

func (s *stubExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, sql)
	return pgconn.CommandTag{}, s.err
}

func TestIdempotencyStore(t *testing.T) {
	db := &stubExecer{}
	store := NewIdempotencyStore(db)
	require.NoError(t, store.CheckAndInsert(context.Background(), "1:req", "journal.manual"))
	require.Error(t, store.CheckAndInsert(context.Background(), "", "journal.manual"))
	require.Error(t, store.CheckAndInsert(context.Background(), "1:req", ""))

	db.err = &pgconn.PgError{Code: "23505"}
	err := store.CheckAndInsert(context.Background(), "1:req", "journal.manual")
	require.ErrorIs(t, err, ErrIdempotencyConflict)
	require.Equal(t, KindConflict, KindOf(err))

	db.err = nil
	require.NoError(t, store.Cleanup(context.Background(), 24*time.Hour))
	require.Len(t, db.calls, 3)

	var nilStore *IdempotencyStore
	require.Error(t, nilStore.CheckAndInsert(context.Background(), "k", "m"))
	require.NoError(t, nilStore.Cleanup(context.Background(), time.Hour))
}

func TestAuditLoggerRejectsIncompleteRecords(t *testing.T) {
	var nilLogger *AuditLogger
	require.Error(t, nilLogger.Record(context.Background(), AuditLog{Action: "a", Entity: "e", EntityID: "1"}))

	logger := NewAuditLogger(nil)
	require.Error(t, logger.Record(context.Background(), AuditLog{Action: "document.post"}))
}
