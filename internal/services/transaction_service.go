package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"tally/internal/categories"
	"tally/internal/core"
	"tally/internal/storage"
)

// TransactionService is the transaction engine: it validates input,
// derives recurring dates, normalizes splits and delegates the atomic
// write (row + splits + balance) to the store.
type TransactionService struct {
	store  Store
	events EventPublisher
}

func NewTransactionService(store Store, events EventPublisher) *TransactionService {
	return &TransactionService{store: store, events: events}
}

// SplitInput is one requested share of a transaction.
type SplitInput struct {
	Name   string
	Amount string
	Paid   bool
}

// TransactionInput is the payload for Create and Update. Amounts are
// decimal strings, the date is YYYY-MM-DD.
type TransactionInput struct {
	Type              core.TransactionType
	Amount            string
	AccountID         string
	Category          string
	Date              string
	Description       string
	IsRecurring       bool
	RecurringInterval core.RecurringInterval
	Splits            []SplitInput
}

// build turns raw input into a validated core.Transaction with
// normalized splits and, when recurring, the projected next date.
func (s *TransactionService) build(userID string, in TransactionInput) (*core.Transaction, error) {
	cents, err := core.ParsePositiveCents(in.Amount)
	if err != nil {
		return nil, core.Validationf("amount must be greater than 0")
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return nil, err
	}

	t := &core.Transaction{
		UserID:            userID,
		AccountID:         in.AccountID,
		Type:              in.Type,
		Amount:            core.Money{Cents: cents},
		Description:       in.Description,
		Category:          in.Category,
		Date:              date,
		IsRecurring:       in.IsRecurring,
		RecurringInterval: in.RecurringInterval,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := categories.Validate(t.Category, t.Type); err != nil {
		return nil, err
	}

	if t.IsRecurring {
		next, err := core.NextRecurringDate(t.Date, t.RecurringInterval)
		if err != nil {
			return nil, err
		}
		t.NextRecurringDate = next
	}

	splits := make([]core.Split, 0, len(in.Splits))
	for _, si := range in.Splits {
		if strings.TrimSpace(si.Name) == "" {
			// Blank rows from the entry form carry no claim.
			continue
		}
		c, err := core.ParsePositiveCents(si.Amount)
		if err != nil {
			return nil, core.Validationf("split %q: amount must be greater than 0", si.Name)
		}
		splits = append(splits, core.Split{Name: si.Name, Amount: core.Money{Cents: c}, Paid: si.Paid})
	}
	t.Splits, err = core.NormalizeSplits(t.Amount, splits)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// Create persists a new transaction atomically with its splits and
// the account balance adjustment.
func (s *TransactionService) Create(ctx context.Context, userID string, in TransactionInput) (*core.Transaction, error) {
	t, err := s.build(userID, in)
	if err != nil {
		return nil, err
	}
	t.ID = uuid.NewString()

	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	s.publish(ctx, "transaction", t.ID, "created")
	return t, nil
}

// Update replaces a transaction's fields and splits and nets the
// balance change, all in one atomic unit. Splits are rewritten
// wholesale: callers resend the full split set on every edit.
func (s *TransactionService) Update(ctx context.Context, userID, id string, in TransactionInput) (*core.Transaction, error) {
	t, err := s.build(userID, in)
	if err != nil {
		return nil, err
	}
	t.ID = id

	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	s.publish(ctx, "transaction", t.ID, "updated")
	return t, nil
}

// Delete removes the given transactions and reverses their balance
// contributions. All-or-nothing across the batch.
func (s *TransactionService) Delete(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return core.Validationf("no transaction ids given")
	}
	if err := s.store.DeleteTransactions(ctx, userID, ids); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	for _, id := range ids {
		s.publish(ctx, "transaction", id, "deleted")
	}
	return nil
}

// Get loads one transaction with splits, scoped to the caller.
func (s *TransactionService) Get(ctx context.Context, userID, id string) (*core.Transaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

// List returns the caller's transactions matching the filter,
// date-descending.
func (s *TransactionService) List(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, userID, f)
}

// MarkSplitPaid flags a split as settled and credits the owning
// account with the split amount. An unpaid split is money the owner
// is owed; marking it paid records its arrival, independent of the
// parent transaction's type. Idempotent on already-paid splits.
func (s *TransactionService) MarkSplitPaid(ctx context.Context, userID, splitID string) (*core.Split, error) {
	split, err := s.store.MarkSplitPaid(ctx, userID, splitID)
	if err != nil {
		return nil, fmt.Errorf("mark split paid: %w", err)
	}
	s.publish(ctx, "split", splitID, "paid")
	return split, nil
}

func (s *TransactionService) publish(ctx context.Context, entity, id, action string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishChange(ctx, entity, id, action); err != nil {
		slog.WarnContext(ctx, "Failed to publish change event",
			"entity", entity, "id", id, "action", action, "error", err)
	}
}
