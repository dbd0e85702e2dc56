package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

// BudgetService stores the user's monthly budget and derives how much
// of it the current calendar month has consumed.
type BudgetService struct {
	store Store
	now   func() time.Time
}

func NewBudgetService(store Store) *BudgetService {
	return &BudgetService{store: store, now: time.Now}
}

// BudgetStatus reports the budget against the current month's
// expenses. PercentUsed is not clamped; display clamping is the
// caller's concern.
type BudgetStatus struct {
	BudgetAmount    core.Money
	CurrentExpenses core.Money
	PercentUsed     float64
}

// SetBudget upserts the user's single budget row.
func (s *BudgetService) SetBudget(ctx context.Context, userID, amount string) (*core.Budget, error) {
	cents, err := core.ParsePositiveCents(amount)
	if err != nil {
		return nil, core.Validationf("budget amount must be greater than 0")
	}
	b := &core.Budget{
		ID:     uuid.NewString(),
		UserID: userID,
		Amount: core.Money{Cents: cents},
	}
	if err := s.store.UpsertBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("set budget: %w", err)
	}
	return b, nil
}

// GetStatus computes the budget status for the given account over the
// current calendar month. A user without a budget gets a zero budget
// amount and a zero percentage.
func (s *BudgetService) GetStatus(ctx context.Context, userID, accountID string) (*BudgetStatus, error) {
	if _, err := s.store.GetAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}

	status := &BudgetStatus{}
	b, err := s.store.GetBudget(ctx, userID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		// No budget set yet; expenses are still reported.
	case err != nil:
		return nil, fmt.Errorf("get budget: %w", err)
	default:
		status.BudgetAmount = b.Amount
	}

	now := s.now().UTC()
	expenses, err := s.store.SumMonthExpenses(ctx, accountID, now.Year(), int(now.Month()))
	if err != nil {
		return nil, fmt.Errorf("sum month expenses: %w", err)
	}
	status.CurrentExpenses = core.Money{Cents: expenses}

	if status.BudgetAmount.Cents > 0 {
		status.PercentUsed = float64(expenses) / float64(status.BudgetAmount.Cents) * 100
	}
	return status, nil
}
