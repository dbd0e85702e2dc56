package http

import (
	"time"

	"tally/internal/core"
	"tally/internal/services"
)

// Response shapes. Money renders as a decimal string so clients never
// see raw cents.

type accountJSON struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	Balance          string    `json:"balance"`
	IsDefault        bool      `json:"isDefault"`
	TransactionCount int64     `json:"transactionCount,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

type splitJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Paid   bool   `json:"paid"`
}

type transactionJSON struct {
	ID                string      `json:"id"`
	AccountID         string      `json:"accountId"`
	Type              string      `json:"type"`
	Amount            string      `json:"amount"`
	Description       string      `json:"description,omitempty"`
	Category          string      `json:"category"`
	Date              string      `json:"date"`
	IsRecurring       bool        `json:"isRecurring"`
	RecurringInterval string      `json:"recurringInterval,omitempty"`
	NextRecurringDate string      `json:"nextRecurringDate,omitempty"`
	Splits            []splitJSON `json:"splits,omitempty"`
}

type budgetStatusJSON struct {
	BudgetAmount    string  `json:"budgetAmount"`
	CurrentExpenses string  `json:"currentExpenses"`
	PercentUsed     float64 `json:"percentUsed"`
}

func newAccountJSON(a core.Account) accountJSON {
	return accountJSON{
		ID:        a.ID,
		Name:      a.Name,
		Type:      string(a.Type),
		Balance:   core.FormatCents(a.Balance.Cents),
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt,
	}
}

func newAccountListJSON(accounts []core.AccountWithCount) []accountJSON {
	out := make([]accountJSON, 0, len(accounts))
	for _, a := range accounts {
		item := newAccountJSON(a.Account)
		item.TransactionCount = a.TransactionCount
		out = append(out, item)
	}
	return out
}

func newSplitJSON(s core.Split) splitJSON {
	return splitJSON{
		ID:     s.ID,
		Name:   s.Name,
		Amount: core.FormatCents(s.Amount.Cents),
		Paid:   s.Paid,
	}
}

func newTransactionJSON(t core.Transaction) transactionJSON {
	out := transactionJSON{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Type:        string(t.Type),
		Amount:      core.FormatCents(t.Amount.Cents),
		Description: t.Description,
		Category:    t.Category,
		Date:        t.Date.Format(),
		IsRecurring: t.IsRecurring,
	}
	if t.IsRecurring {
		out.RecurringInterval = string(t.RecurringInterval)
		out.NextRecurringDate = t.NextRecurringDate.Format()
	}
	for _, s := range t.Splits {
		out.Splits = append(out.Splits, newSplitJSON(s))
	}
	return out
}

func newTransactionListJSON(items []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(items))
	for _, t := range items {
		out = append(out, newTransactionJSON(t))
	}
	return out
}

func newBudgetStatusJSON(st services.BudgetStatus) budgetStatusJSON {
	return budgetStatusJSON{
		BudgetAmount:    core.FormatCents(st.BudgetAmount.Cents),
		CurrentExpenses: core.FormatCents(st.CurrentExpenses.Cents),
		PercentUsed:     st.PercentUsed,
	}
}
