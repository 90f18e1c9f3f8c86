package periods

import "context"

// Repository persists period close metadata. Implementations are bound to an
// open transaction.
type Repository interface {
	// Find returns the period and whether a record exists. It takes a shared
	// row lock so a concurrent close waits for in-flight postings.
	Find(ctx context.Context, key Key) (Period, bool, error)
	// FindForUpdate is Find with an exclusive row lock.
	FindForUpdate(ctx context.Context, key Key) (Period, bool, error)
	Save(ctx context.Context, p Period) error
}

// Store opens transactions for period management.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}
