// Package categories is the static registry of transaction categories.
// Categories are data, not behavior: a lookup table keyed by id that
// handlers use for presentation and the transaction engine uses to
// validate that a category exists and matches the transaction type.
package categories

import (
	"tally/internal/core"
)

// Category describes one entry of the registry.
type Category struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Type          core.TransactionType `json:"type"`
	Color         string               `json:"color"`
	Icon          string               `json:"icon"`
	Subcategories []string             `json:"subcategories,omitempty"`
}

var registry = []Category{
	// Income
	{ID: "salary", Name: "Salary", Type: core.Income, Color: "#22c55e", Icon: "Wallet"},
	{ID: "freelance", Name: "Freelance", Type: core.Income, Color: "#0ea5e9", Icon: "Laptop"},
	{ID: "investments", Name: "Investments", Type: core.Income, Color: "#6366f1", Icon: "TrendingUp"},
	{ID: "business", Name: "Business", Type: core.Income, Color: "#ec4899", Icon: "Building"},
	{ID: "rental", Name: "Rental", Type: core.Income, Color: "#a78bfa", Icon: "Home"},
	{ID: "other-income", Name: "Other Income", Type: core.Income, Color: "#64748b", Icon: "Plus"},

	// Expenses
	{ID: "housing", Name: "Housing", Type: core.Expense, Color: "#ef4444", Icon: "Home",
		Subcategories: []string{"Rent", "Mortgage", "Property Tax", "Maintenance"}},
	{ID: "transportation", Name: "Transportation", Type: core.Expense, Color: "#f97316", Icon: "Car",
		Subcategories: []string{"Fuel", "Public Transport", "Maintenance", "Parking"}},
	{ID: "groceries", Name: "Groceries", Type: core.Expense, Color: "#84cc16", Icon: "Shopping"},
	{ID: "utilities", Name: "Utilities", Type: core.Expense, Color: "#0d9488", Icon: "Zap",
		Subcategories: []string{"Electricity", "Water", "Gas", "Internet", "Phone"}},
	{ID: "entertainment", Name: "Entertainment", Type: core.Expense, Color: "#8b5cf6", Icon: "Film",
		Subcategories: []string{"Movies", "Games", "Streaming Services"}},
	{ID: "food", Name: "Food", Type: core.Expense, Color: "#f43f5e", Icon: "UtensilsCrossed"},
	{ID: "shopping", Name: "Shopping", Type: core.Expense, Color: "#d946ef", Icon: "ShoppingBag",
		Subcategories: []string{"Clothing", "Electronics", "Home Goods"}},
	{ID: "healthcare", Name: "Healthcare", Type: core.Expense, Color: "#14b8a6", Icon: "HeartPulse",
		Subcategories: []string{"Medical", "Dental", "Pharmacy", "Insurance"}},
	{ID: "education", Name: "Education", Type: core.Expense, Color: "#6366f1", Icon: "GraduationCap",
		Subcategories: []string{"Tuition", "Books", "Courses"}},
	{ID: "personal", Name: "Personal Care", Type: core.Expense, Color: "#e879f9", Icon: "Smile",
		Subcategories: []string{"Haircut", "Gym", "Beauty"}},
	{ID: "travel", Name: "Travel", Type: core.Expense, Color: "#38bdf8", Icon: "Plane"},
	{ID: "insurance", Name: "Insurance", Type: core.Expense, Color: "#475569", Icon: "Shield",
		Subcategories: []string{"Life", "Home", "Vehicle"}},
	{ID: "gifts", Name: "Gifts & Donations", Type: core.Expense, Color: "#f472b6", Icon: "Gift"},
	{ID: "bills", Name: "Bills & Fees", Type: core.Expense, Color: "#fb7185", Icon: "Receipt",
		Subcategories: []string{"Bank Fees", "Late Fees", "Service Charges"}},
	{ID: "reimbursed", Name: "Reimbursed Expenses", Type: core.Expense, Color: "#fde047", Icon: "Receipt"},
	{ID: "other-expense", Name: "Other Expenses", Type: core.Expense, Color: "#94a3b8", Icon: "MoreHorizontal"},
}

var byID = func() map[string]Category {
	m := make(map[string]Category, len(registry))
	for _, c := range registry {
		m[c.ID] = c
	}
	return m
}()

// All returns the registry in presentation order.
func All() []Category {
	out := make([]Category, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the category for the given id.
func Lookup(id string) (Category, bool) {
	c, ok := byID[id]
	return c, ok
}

// Validate checks that id exists and that its type matches the
// transaction type it is being used with.
func Validate(id string, txType core.TransactionType) error {
	c, ok := byID[id]
	if !ok {
		return core.ErrUnknownCategory
	}
	if c.Type != txType {
		return core.Validationf("category %q is %s, not %s", id, c.Type, txType)
	}
	return nil
}
