package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/storage"
)

// fakeStore is an in-memory Store for service tests. Only the
// behavior the services exercise is implemented.
type fakeStore struct {
	users        map[string]*core.User
	accounts     map[string]*core.Account
	transactions map[string]*core.Transaction
	budgets      map[string]*core.Budget

	monthExpenses int64
	createErr     error
	materialized  []string
	advancedTo    map[string]core.Date
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[string]*core.User),
		accounts:     make(map[string]*core.Account),
		transactions: make(map[string]*core.Transaction),
		budgets:      make(map[string]*core.Budget),
		advancedTo:   make(map[string]core.Date),
	}
}

func (f *fakeStore) FindOrCreateUser(_ context.Context, externalID string) (*core.User, error) {
	if u, ok := f.users[externalID]; ok {
		return u, nil
	}
	u := &core.User{ID: "user-" + externalID, ExternalID: externalID}
	f.users[externalID] = u
	return u, nil
}

func (f *fakeStore) CreateAccount(_ context.Context, a *core.Account) error {
	f.accounts[a.ID] = a
	return nil
}

func (f *fakeStore) SetDefaultAccount(_ context.Context, userID, accountID string) (*core.Account, error) {
	a, ok := f.accounts[accountID]
	if !ok || a.UserID != userID {
		return nil, core.NotFoundf("account %s", accountID)
	}
	for _, other := range f.accounts {
		if other.UserID == userID {
			other.IsDefault = false
		}
	}
	a.IsDefault = true
	return a, nil
}

func (f *fakeStore) GetAccount(_ context.Context, userID, accountID string) (*core.Account, error) {
	a, ok := f.accounts[accountID]
	if !ok || a.UserID != userID {
		return nil, core.NotFoundf("account %s", accountID)
	}
	return a, nil
}

func (f *fakeStore) ListAccountsWithCounts(_ context.Context, userID string) ([]core.AccountWithCount, error) {
	var out []core.AccountWithCount
	for _, a := range f.accounts {
		if a.UserID == userID {
			out = append(out, core.AccountWithCount{Account: *a})
		}
	}
	return out, nil
}

func (f *fakeStore) CreateTransaction(_ context.Context, t *core.Transaction) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.transactions[t.ID] = t
	return nil
}

func (f *fakeStore) UpdateTransaction(_ context.Context, t *core.Transaction) error {
	if _, ok := f.transactions[t.ID]; !ok {
		return core.NotFoundf("transaction %s", t.ID)
	}
	f.transactions[t.ID] = t
	return nil
}

func (f *fakeStore) DeleteTransactions(_ context.Context, userID string, ids []string) error {
	for _, id := range ids {
		t, ok := f.transactions[id]
		if !ok || t.UserID != userID {
			return core.NotFoundf("transaction %s", id)
		}
	}
	for _, id := range ids {
		delete(f.transactions, id)
	}
	return nil
}

func (f *fakeStore) GetTransaction(_ context.Context, userID, id string) (*core.Transaction, error) {
	t, ok := f.transactions[id]
	if !ok || t.UserID != userID {
		return nil, core.NotFoundf("transaction %s", id)
	}
	return t, nil
}

func (f *fakeStore) ListTransactions(_ context.Context, userID string, _ storage.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range f.transactions {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkSplitPaid(_ context.Context, userID, splitID string) (*core.Split, error) {
	for _, t := range f.transactions {
		for i := range t.Splits {
			if t.Splits[i].ID == splitID {
				if t.UserID != userID {
					return nil, fmt.Errorf("%w: split belongs to another user", core.ErrUnauthorized)
				}
				t.Splits[i].Paid = true
				return &t.Splits[i], nil
			}
		}
	}
	return nil, core.NotFoundf("split %s", splitID)
}

func (f *fakeStore) ListDueRecurring(_ context.Context, now time.Time) ([]core.Transaction, error) {
	cutoff := core.DateOf(now)
	var out []core.Transaction
	for _, t := range f.transactions {
		if t.IsRecurring && !t.NextRecurringDate.After(cutoff.Time) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) MaterializeRecurring(_ context.Context, instance *core.Transaction, templateID string, next core.Date) error {
	tmpl, ok := f.transactions[templateID]
	if !ok {
		return core.NotFoundf("transaction %s", templateID)
	}
	f.transactions[instance.ID] = instance
	tmpl.NextRecurringDate = next
	f.materialized = append(f.materialized, templateID)
	f.advancedTo[templateID] = next
	return nil
}

func (f *fakeStore) SumMonthExpenses(_ context.Context, _ string, _, _ int) (int64, error) {
	return f.monthExpenses, nil
}

func (f *fakeStore) UpsertBudget(_ context.Context, b *core.Budget) error {
	if prev, ok := f.budgets[b.UserID]; ok {
		b.ID = prev.ID
	}
	f.budgets[b.UserID] = b
	return nil
}

func (f *fakeStore) GetBudget(_ context.Context, userID string) (*core.Budget, error) {
	b, ok := f.budgets[userID]
	if !ok {
		return nil, core.NotFoundf("budget for user %s", userID)
	}
	return b, nil
}

type fakePublisher struct {
	published []string
	err       error
}

func (p *fakePublisher) PublishChange(_ context.Context, entity, id, action string) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, entity+":"+action)
	return nil
}

func TestAccountService_CreateAccount(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateAccountInput
		wantErr error
	}{
		{
			name:  "valid checking account",
			input: CreateAccountInput{Name: "Main", Type: core.Checking, Balance: "100.50"},
		},
		{
			name:  "zero opening balance",
			input: CreateAccountInput{Name: "Empty", Type: core.Savings, Balance: "0"},
		},
		{
			name:    "invalid balance",
			input:   CreateAccountInput{Name: "Bad", Type: core.Checking, Balance: "abc"},
			wantErr: core.ErrValidation,
		},
		{
			name:    "blank name",
			input:   CreateAccountInput{Name: "  ", Type: core.Checking, Balance: "10"},
			wantErr: core.ErrValidation,
		},
		{
			name:    "unknown account type",
			input:   CreateAccountInput{Name: "Weird", Type: "OFFSHORE", Balance: "10"},
			wantErr: core.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			pub := &fakePublisher{}
			svc := NewAccountService(store, pub)

			a, err := svc.CreateAccount(context.Background(), "u1", tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.ID == "" {
				t.Error("expected generated account ID")
			}
			if len(pub.published) != 1 || pub.published[0] != "account:created" {
				t.Errorf("expected account:created event, got %v", pub.published)
			}
		})
	}
}

func TestAccountService_PublishFailureDoesNotFailCreate(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewAccountService(store, pub)

	_, err := svc.CreateAccount(context.Background(), "u1", CreateAccountInput{
		Name: "Main", Type: core.Checking, Balance: "10",
	})
	if err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
}

func TestTransactionService_Create(t *testing.T) {
	tests := []struct {
		name    string
		input   TransactionInput
		wantErr error
		check   func(t *testing.T, tx *core.Transaction)
	}{
		{
			name: "valid expense",
			input: TransactionInput{
				Type: core.Expense, Amount: "42.50", AccountID: "a1",
				Category: "groceries", Date: "2024-06-15",
			},
			check: func(t *testing.T, tx *core.Transaction) {
				if tx.Amount.Cents != 4250 {
					t.Errorf("expected 4250 cents, got %d", tx.Amount.Cents)
				}
			},
		},
		{
			name: "recurring projects next date",
			input: TransactionInput{
				Type: core.Income, Amount: "1000", AccountID: "a1",
				Category: "salary", Date: "2024-01-31",
				IsRecurring: true, RecurringInterval: core.Monthly,
			},
			check: func(t *testing.T, tx *core.Transaction) {
				if got := tx.NextRecurringDate.Format(); got != "2024-03-02" {
					t.Errorf("expected next date 2024-03-02, got %s", got)
				}
			},
		},
		{
			name: "named splits get owner remainder",
			input: TransactionInput{
				Type: core.Expense, Amount: "100", AccountID: "a1",
				Category: "food", Date: "2024-06-15",
				Splits: []SplitInput{
					{Name: "Alice", Amount: "40"},
					{Name: "Bob", Amount: "30"},
				},
			},
			check: func(t *testing.T, tx *core.Transaction) {
				if len(tx.Splits) != 3 {
					t.Fatalf("expected 3 splits, got %d", len(tx.Splits))
				}
				last := tx.Splits[2]
				if last.Name != core.OwnerSplitName || last.Amount.Cents != 3000 || !last.Paid {
					t.Errorf("unexpected owner split: %+v", last)
				}
			},
		},
		{
			name: "blank split rows dropped",
			input: TransactionInput{
				Type: core.Expense, Amount: "50", AccountID: "a1",
				Category: "food", Date: "2024-06-15",
				Splits: []SplitInput{{Name: "  ", Amount: ""}},
			},
			check: func(t *testing.T, tx *core.Transaction) {
				if len(tx.Splits) != 0 {
					t.Errorf("expected no splits, got %d", len(tx.Splits))
				}
			},
		},
		{
			name: "zero amount",
			input: TransactionInput{
				Type: core.Expense, Amount: "0", AccountID: "a1",
				Category: "food", Date: "2024-06-15",
			},
			wantErr: core.ErrValidation,
		},
		{
			name: "unknown category",
			input: TransactionInput{
				Type: core.Expense, Amount: "10", AccountID: "a1",
				Category: "yachts", Date: "2024-06-15",
			},
			wantErr: core.ErrUnknownCategory,
		},
		{
			name: "income category on expense",
			input: TransactionInput{
				Type: core.Expense, Amount: "10", AccountID: "a1",
				Category: "salary", Date: "2024-06-15",
			},
			wantErr: core.ErrValidation,
		},
		{
			name: "bad date",
			input: TransactionInput{
				Type: core.Expense, Amount: "10", AccountID: "a1",
				Category: "food", Date: "15/06/2024",
			},
			wantErr: core.ErrInvalidDate,
		},
		{
			name: "recurring without interval",
			input: TransactionInput{
				Type: core.Expense, Amount: "10", AccountID: "a1",
				Category: "food", Date: "2024-06-15", IsRecurring: true,
			},
			wantErr: core.ErrInvalidInterval,
		},
		{
			name: "splits exceed total",
			input: TransactionInput{
				Type: core.Expense, Amount: "50", AccountID: "a1",
				Category: "food", Date: "2024-06-15",
				Splits: []SplitInput{{Name: "Alice", Amount: "60"}},
			},
			wantErr: core.ErrSplitsExceed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := NewTransactionService(store, nil)

			tx, err := svc.Create(context.Background(), "u1", tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tx.ID == "" {
				t.Error("expected generated transaction ID")
			}
			if tt.check != nil {
				tt.check(t, tx)
			}
		})
	}
}

func TestTransactionService_DeleteRequiresIDs(t *testing.T) {
	svc := NewTransactionService(newFakeStore(), nil)
	err := svc.Delete(context.Background(), "u1", nil)
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransactionService_DeleteBatchFailsOnMissingID(t *testing.T) {
	store := newFakeStore()
	store.transactions["t1"] = &core.Transaction{ID: "t1", UserID: "u1"}
	svc := NewTransactionService(store, nil)

	err := svc.Delete(context.Background(), "u1", []string{"t1", "missing"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, ok := store.transactions["t1"]; !ok {
		t.Error("batch failure must not delete any transaction")
	}
}

func TestBudgetService_SetBudget(t *testing.T) {
	store := newFakeStore()
	svc := NewBudgetService(store)

	if _, err := svc.SetBudget(context.Background(), "u1", "0"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for zero budget, got %v", err)
	}

	b1, err := svc.SetBudget(context.Background(), "u1", "500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b2, err := svc.SetBudget(context.Background(), "u1", "750")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b2.ID != b1.ID {
		t.Error("upsert should keep the existing budget row")
	}
	if b2.Amount.Cents != 75000 {
		t.Errorf("expected 75000 cents, got %d", b2.Amount.Cents)
	}
}

func TestBudgetService_GetStatus(t *testing.T) {
	store := newFakeStore()
	store.accounts["a1"] = &core.Account{ID: "a1", UserID: "u1", Name: "Main", Type: core.Checking}
	store.monthExpenses = 25000
	store.budgets["u1"] = &core.Budget{ID: "b1", UserID: "u1", Amount: core.Money{Cents: 100000}}

	svc := NewBudgetService(store)
	svc.now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }

	status, err := svc.GetStatus(context.Background(), "u1", "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.BudgetAmount.Cents != 100000 {
		t.Errorf("expected budget 100000, got %d", status.BudgetAmount.Cents)
	}
	if status.CurrentExpenses.Cents != 25000 {
		t.Errorf("expected expenses 25000, got %d", status.CurrentExpenses.Cents)
	}
	if status.PercentUsed != 25 {
		t.Errorf("expected 25%% used, got %v", status.PercentUsed)
	}
}

func TestBudgetService_GetStatusWithoutBudget(t *testing.T) {
	store := newFakeStore()
	store.accounts["a1"] = &core.Account{ID: "a1", UserID: "u1", Name: "Main", Type: core.Checking}
	store.monthExpenses = 1234

	svc := NewBudgetService(store)
	status, err := svc.GetStatus(context.Background(), "u1", "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.BudgetAmount.Cents != 0 || status.PercentUsed != 0 {
		t.Errorf("expected zero budget and percent, got %+v", status)
	}
	if status.CurrentExpenses.Cents != 1234 {
		t.Errorf("expected expenses to still be reported, got %d", status.CurrentExpenses.Cents)
	}
}

func TestBudgetService_GetStatusUnknownAccount(t *testing.T) {
	svc := NewBudgetService(newFakeStore())
	_, err := svc.GetStatus(context.Background(), "u1", "ghost")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecurringProcessor_ProcessDue(t *testing.T) {
	store := newFakeStore()
	store.transactions["tmpl"] = &core.Transaction{
		ID: "tmpl", UserID: "u1", AccountID: "a1",
		Type: core.Expense, Amount: core.Money{Cents: 999},
		Category: "bills", Date: core.NewDate(2024, 5, 1),
		IsRecurring: true, RecurringInterval: core.Monthly,
		NextRecurringDate: core.NewDate(2024, 6, 1),
	}
	store.transactions["future"] = &core.Transaction{
		ID: "future", UserID: "u1", AccountID: "a1",
		Type: core.Expense, Amount: core.Money{Cents: 500},
		Category: "bills", Date: core.NewDate(2024, 5, 1),
		IsRecurring: true, RecurringInterval: core.Monthly,
		NextRecurringDate: core.NewDate(2024, 12, 1),
	}

	p := NewRecurringProcessor(store)
	now := time.Date(2024, 6, 2, 3, 0, 0, 0, time.UTC)

	processed, err := p.ProcessDue(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed, got %d", processed)
	}
	if got := store.advancedTo["tmpl"].Format(); got != "2024-07-01" {
		t.Errorf("expected template advanced to 2024-07-01, got %s", got)
	}
	if len(store.transactions) != 3 {
		t.Errorf("expected a new instance row, have %d transactions", len(store.transactions))
	}
}

func TestRecurringProcessor_SkipsBrokenTemplates(t *testing.T) {
	store := newFakeStore()
	store.transactions["bad"] = &core.Transaction{
		ID: "bad", UserID: "u1", AccountID: "a1",
		Type: core.Expense, Amount: core.Money{Cents: 100},
		Category: "bills", Date: core.NewDate(2024, 5, 1),
		IsRecurring: true, RecurringInterval: "FORTNIGHTLY",
		NextRecurringDate: core.NewDate(2024, 6, 1),
	}
	store.transactions["good"] = &core.Transaction{
		ID: "good", UserID: "u1", AccountID: "a1",
		Type: core.Expense, Amount: core.Money{Cents: 100},
		Category: "bills", Date: core.NewDate(2024, 5, 1),
		IsRecurring: true, RecurringInterval: core.Weekly,
		NextRecurringDate: core.NewDate(2024, 6, 1),
	}

	p := NewRecurringProcessor(store)
	processed, err := p.ProcessDue(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected the valid template processed, got %d", processed)
	}
	if len(store.materialized) != 1 || store.materialized[0] != "good" {
		t.Errorf("expected only the valid template materialized, got %v", store.materialized)
	}
}
