package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"tally/internal/core"
)

// AccountService owns account creation, the default-account invariant
// and account listings.
type AccountService struct {
	store  Store
	events EventPublisher
}

func NewAccountService(store Store, events EventPublisher) *AccountService {
	return &AccountService{store: store, events: events}
}

// CreateAccountInput is the payload for CreateAccount. Balance is the
// opening balance as a decimal string.
type CreateAccountInput struct {
	Name      string
	Type      core.AccountType
	Balance   string
	IsDefault bool
}

// CreateAccount validates the input and persists a new account. The
// user's first account becomes the default regardless of the flag.
func (s *AccountService) CreateAccount(ctx context.Context, userID string, in CreateAccountInput) (*core.Account, error) {
	cents, err := core.ParseDecimalToCents(in.Balance)
	if err != nil {
		return nil, core.Validationf("invalid balance amount %q", in.Balance)
	}

	a := &core.Account{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Type:      in.Type,
		Balance:   core.Money{Cents: cents},
		IsDefault: in.IsDefault,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreateAccount(ctx, a); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.publish(ctx, "account", a.ID, "created")
	return a, nil
}

// SetDefault makes the given account the user's default.
func (s *AccountService) SetDefault(ctx context.Context, userID, accountID string) (*core.Account, error) {
	a, err := s.store.SetDefaultAccount(ctx, userID, accountID)
	if err != nil {
		return nil, fmt.Errorf("set default account: %w", err)
	}
	s.publish(ctx, "account", accountID, "default")
	return a, nil
}

// List returns the user's accounts with transaction counts, newest
// first.
func (s *AccountService) List(ctx context.Context, userID string) ([]core.AccountWithCount, error) {
	accounts, err := s.store.ListAccountsWithCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (s *AccountService) publish(ctx context.Context, entity, id, action string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishChange(ctx, entity, id, action); err != nil {
		slog.WarnContext(ctx, "Failed to publish change event",
			"entity", entity, "id", id, "action", action, "error", err)
	}
}
