package core

import (
	"strings"
	"time"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"

	Daily   RecurringInterval = "DAILY"
	Weekly  RecurringInterval = "WEEKLY"
	Monthly RecurringInterval = "MONTHLY"
	Yearly  RecurringInterval = "YEARLY"

	Checking AccountType = "CHECKING"
	Savings  AccountType = "SAVINGS"
)

type (
	TransactionType   string
	RecurringInterval string
	AccountType       string

	// Date is a calendar date. The time-of-day portion is always
	// midnight UTC.
	Date struct {
		time.Time
	}

	// User anchors ownership. ExternalID is the identity provider's
	// subject; ID is ours.
	User struct {
		ID         string
		ExternalID string
		CreatedAt  time.Time
	}

	// Account is a named money container with a cached running
	// balance. Exactly one account per user is the default whenever
	// the user has at least one account.
	Account struct {
		ID        string
		UserID    string
		Name      string
		Type      AccountType
		Balance   Money
		IsDefault bool
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// AccountWithCount is an account together with how many
	// transactions reference it.
	AccountWithCount struct {
		Account
		TransactionCount int64
	}

	// Transaction is a single dated income or expense event against
	// one account. Amount is always strictly positive; the sign is
	// carried by Type.
	Transaction struct {
		ID                string
		UserID            string
		AccountID         string
		Type              TransactionType
		Amount            Money
		Description       string
		Category          string
		Date              Date
		IsRecurring       bool
		RecurringInterval RecurringInterval
		NextRecurringDate Date
		CreatedAt         time.Time
		UpdatedAt         time.Time
		Splits            []Split
	}

	// Split is a named partial claim on a transaction's amount.
	// Paid only ever transitions false -> true.
	Split struct {
		ID            string
		TransactionID string
		Name          string
		Amount        Money
		Paid          bool
	}

	// Budget is the user's monthly expense ceiling, tracked against
	// the default account's current-month expenses.
	Budget struct {
		ID        string
		UserID    string
		Amount    Money
		UpdatedAt time.Time
	}
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.UTC().Year(), int(t.UTC().Month()), t.UTC().Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Format renders the date as YYYY-MM-DD.
func (d Date) Format() string {
	return d.Time.Format("2006-01-02")
}

// InMonth reports whether the date falls in the given calendar month.
func (d Date) InMonth(year, month int) bool {
	return d.Year() == year && int(d.Month()) == month
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	}
	return Validationf("invalid transaction type %q", string(t))
}

func (iv RecurringInterval) Validate() error {
	switch iv {
	case Daily, Weekly, Monthly, Yearly:
		return nil
	}
	return ErrInvalidInterval
}

func (at AccountType) Validate() error {
	switch at {
	case Checking, Savings:
		return nil
	}
	return Validationf("invalid account type %q", string(at))
}

// SignedDelta is the transaction's contribution to its account
// balance: negative for expenses, positive for income.
func SignedDelta(t TransactionType, amount Money) int64 {
	if t == Expense {
		return -amount.Cents
	}
	return amount.Cents
}

// NextRecurringDate projects the next occurrence of a recurring
// transaction by adding exactly one interval unit. Month and year
// additions use calendar arithmetic with roll-over, so Jan 31 +
// MONTHLY lands on Mar 2 (or Mar 3 in a non-leap year). Deterministic
// for any (date, interval) pair.
func NextRecurringDate(d Date, iv RecurringInterval) (Date, error) {
	switch iv {
	case Daily:
		return Date{Time: d.AddDate(0, 0, 1)}, nil
	case Weekly:
		return Date{Time: d.AddDate(0, 0, 7)}, nil
	case Monthly:
		return Date{Time: d.AddDate(0, 1, 0)}, nil
	case Yearly:
		return Date{Time: d.AddDate(1, 0, 0)}, nil
	}
	return Date{}, ErrInvalidInterval
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return Validationf("account name is required")
	}
	if err := a.Type.Validate(); err != nil {
		return err
	}
	if a.Balance.Cents < 0 {
		return Validationf("initial balance must be 0 or greater")
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.AccountID == "" {
		return Validationf("account is required")
	}
	if strings.TrimSpace(t.Category) == "" {
		return Validationf("category is required")
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(t.Description) > 200 {
		return Validationf("description too long (max 200 characters)")
	}
	if t.IsRecurring {
		if err := t.RecurringInterval.Validate(); err != nil {
			return err
		}
	} else if t.RecurringInterval != "" {
		return Validationf("recurring interval set on non-recurring transaction")
	}
	return nil
}

func (s Split) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return Validationf("split name is required")
	}
	return s.Amount.Validate()
}

func (b Budget) Validate() error {
	return b.Amount.Validate()
}
