package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrDocumentBusy indicates another process holds the document lock.
var ErrDocumentBusy = shared.NewError(shared.ErrTransient, "platform/cache: document is being processed")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a best-effort distributed mutex. Database row locks stay
// authoritative; the lock only turns concurrent requests for the same
// document into fast ErrDocumentBusy failures.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocker constructs Locker. A zero ttl defaults to 30s.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire takes key or fails with ErrDocumentBusy.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("platform/cache: acquire %s: %w", key, errors.Join(shared.ErrTransient, err))
	}
	if !ok {
		return nil, ErrDocumentBusy
	}
	return func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}
