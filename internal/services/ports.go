// Package services holds the business logic of the tracker: input
// validation, balance delta computation, split normalization and
// orchestration of the atomic persistence operations.
package services

import (
	"context"
	"time"

	"tally/internal/core"
	"tally/internal/storage"
)

// Store is the persistence surface the services build on. Implemented
// by storage.SQLiteRepository; small fakes implement it in tests.
type Store interface {
	FindOrCreateUser(ctx context.Context, externalID string) (*core.User, error)

	CreateAccount(ctx context.Context, a *core.Account) error
	SetDefaultAccount(ctx context.Context, userID, accountID string) (*core.Account, error)
	GetAccount(ctx context.Context, userID, accountID string) (*core.Account, error)
	ListAccountsWithCounts(ctx context.Context, userID string) ([]core.AccountWithCount, error)

	CreateTransaction(ctx context.Context, t *core.Transaction) error
	UpdateTransaction(ctx context.Context, t *core.Transaction) error
	DeleteTransactions(ctx context.Context, userID string, ids []string) error
	GetTransaction(ctx context.Context, userID, id string) (*core.Transaction, error)
	ListTransactions(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error)
	MarkSplitPaid(ctx context.Context, userID, splitID string) (*core.Split, error)

	ListDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error)
	MaterializeRecurring(ctx context.Context, instance *core.Transaction, templateID string, next core.Date) error

	SumMonthExpenses(ctx context.Context, accountID string, year, month int) (int64, error)
	UpsertBudget(ctx context.Context, b *core.Budget) error
	GetBudget(ctx context.Context, userID string) (*core.Budget, error)
}

// EventPublisher announces committed changes to downstream consumers.
// Publishing is best-effort: failures are logged, never surfaced.
type EventPublisher interface {
	PublishChange(ctx context.Context, entity, id, action string) error
}

var _ Store = (*storage.SQLiteRepository)(nil)
