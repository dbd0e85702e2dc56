package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

// UpsertBudget creates or replaces the user's single budget row.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b *core.Budget) error {
	now := time.Now().UTC()
	b.UpdatedAt = now
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var existingID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM budgets WHERE user_id = ?`, b.UserID).Scan(&existingID)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO budgets (id, user_id, amount_cents, updated_at) VALUES (?, ?, ?, ?)`,
				b.ID, b.UserID, b.Amount.Cents, b.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert budget: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find budget: %w", err)
		default:
			b.ID = existingID
			_, err = tx.ExecContext(ctx,
				`UPDATE budgets SET amount_cents = ?, updated_at = ? WHERE id = ?`,
				b.Amount.Cents, b.UpdatedAt, b.ID)
			if err != nil {
				return fmt.Errorf("update budget: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Budget saved",
		"budget_id", b.ID,
		"user_id", b.UserID,
		"amount_cents", b.Amount.Cents)
	return nil
}

// GetBudget returns the user's budget, or a not-found error when none
// has been set yet.
func (r *SQLiteRepository) GetBudget(ctx context.Context, userID string) (*core.Budget, error) {
	b := &core.Budget{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount_cents, updated_at FROM budgets WHERE user_id = ?`,
		userID).Scan(&b.ID, &b.UserID, &b.Amount.Cents, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, core.NotFoundf("budget for user %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}
