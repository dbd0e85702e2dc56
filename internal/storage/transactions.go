package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

// TransactionFilter narrows ListTransactions by field equality.
// Zero values mean "no constraint".
type TransactionFilter struct {
	AccountID   string
	Type        core.TransactionType
	Category    string
	IsRecurring *bool
}

// CreateTransaction persists the transaction row, its splits and the
// balance adjustment as one atomic unit.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getAccountTx(ctx, tx, t.UserID, t.AccountID); err != nil {
			return err
		}
		if err := insertTransactionTx(ctx, tx, t); err != nil {
			return err
		}
		if err := insertSplitsTx(ctx, tx, t); err != nil {
			return err
		}
		return adjustBalance(ctx, tx, t.AccountID, core.SignedDelta(t.Type, t.Amount), now)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", t.ID,
		"account_id", t.AccountID,
		"type", string(t.Type),
		"amount_cents", t.Amount.Cents,
		"splits", len(t.Splits),
		"recurring", t.IsRecurring)
	return nil
}

// UpdateTransaction rewrites the transaction row and its splits and
// nets the balance change, all in one atomic unit. When the account
// changed, the old contribution is reversed on the old account and
// the new one applied to the new account.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	now := time.Now().UTC()
	t.UpdatedAt = now

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		orig, err := getTransactionTx(ctx, tx, t.UserID, t.ID)
		if err != nil {
			return err
		}
		if _, err := getAccountTx(ctx, tx, t.UserID, t.AccountID); err != nil {
			return err
		}
		t.CreatedAt = orig.CreatedAt

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM splits WHERE transaction_id = ?`, t.ID); err != nil {
			return fmt.Errorf("delete splits: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions
			 SET account_id = ?, type = ?, amount_cents = ?, description = ?, category = ?,
			     date = ?, is_recurring = ?, recurring_interval = ?, next_recurring_date = ?, updated_at = ?
			 WHERE id = ?`,
			t.AccountID, string(t.Type), t.Amount.Cents, t.Description, t.Category,
			t.Date.Format(), t.IsRecurring, nullString(string(t.RecurringInterval)),
			nullDate(t.NextRecurringDate), t.UpdatedAt, t.ID); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		if err := insertSplitsTx(ctx, tx, t); err != nil {
			return err
		}

		oldDelta := core.SignedDelta(orig.Type, orig.Amount)
		newDelta := core.SignedDelta(t.Type, t.Amount)
		if orig.AccountID == t.AccountID {
			return adjustBalance(ctx, tx, t.AccountID, newDelta-oldDelta, now)
		}
		if err := adjustBalance(ctx, tx, orig.AccountID, -oldDelta, now); err != nil {
			return err
		}
		return adjustBalance(ctx, tx, t.AccountID, newDelta, now)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction updated",
		"transaction_id", t.ID,
		"account_id", t.AccountID,
		"amount_cents", t.Amount.Cents)
	return nil
}

// DeleteTransactions removes the given transactions, their splits and
// their balance contributions. The whole batch is one atomic unit: a
// missing or foreign id fails everything.
func (r *SQLiteRepository) DeleteTransactions(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			t, err := getTransactionTx(ctx, tx, userID, id)
			if err != nil {
				return err
			}
			if err := adjustBalance(ctx, tx, t.AccountID, -core.SignedDelta(t.Type, t.Amount), now); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM splits WHERE transaction_id = ?`, id); err != nil {
				return fmt.Errorf("delete splits: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM transactions WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete transaction: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transactions deleted", "user_id", userID, "count", len(ids))
	return nil
}

// GetTransaction loads one transaction with its splits.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (*core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx,
		selectTransaction+` WHERE id = ? AND user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return nil, core.NotFoundf("transaction %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	splits, err := r.loadSplits(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	t.Splits = splits[id]
	return t, nil
}

// ListTransactions returns the user's transactions matching the
// filter, date-descending, with splits attached.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error) {
	query := selectTransaction + ` WHERE user_id = ?`
	args := []any{userID}
	if f.AccountID != "" {
		query += ` AND account_id = ?`
		args = append(args, f.AccountID)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.IsRecurring != nil {
		query += ` AND is_recurring = ?`
		args = append(args, *f.IsRecurring)
	}
	query += ` ORDER BY date DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	var ids []string
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	splits, err := r.loadSplits(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Splits = splits[out[i].ID]
	}
	return out, nil
}

// MarkSplitPaid sets the split's paid flag and credits the owning
// account with the split amount in the same atomic unit. Marking an
// already-paid split is a no-op that still succeeds.
func (r *SQLiteRepository) MarkSplitPaid(ctx context.Context, userID, splitID string) (*core.Split, error) {
	now := time.Now().UTC()
	s := &core.Split{}
	var credited bool

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var ownerID, accountID string
		err := tx.QueryRowContext(ctx,
			`SELECT s.id, s.transaction_id, s.name, s.amount_cents, s.paid, t.user_id, t.account_id
			 FROM splits s
			 JOIN transactions t ON t.id = s.transaction_id
			 WHERE s.id = ?`,
			splitID).Scan(&s.ID, &s.TransactionID, &s.Name, &s.Amount.Cents, &s.Paid, &ownerID, &accountID)
		if err == sql.ErrNoRows {
			return core.NotFoundf("split %s", splitID)
		}
		if err != nil {
			return fmt.Errorf("get split: %w", err)
		}
		if ownerID != userID {
			return fmt.Errorf("%w: split %s belongs to another user", core.ErrUnauthorized, splitID)
		}
		if s.Paid {
			// Idempotent: no second balance increment.
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE splits SET paid = 1 WHERE id = ?`, splitID); err != nil {
			return fmt.Errorf("mark split paid: %w", err)
		}
		s.Paid = true
		credited = true
		return adjustBalance(ctx, tx, accountID, s.Amount.Cents, now)
	})
	if err != nil {
		return nil, err
	}

	if credited {
		slog.InfoContext(ctx, "Split marked paid",
			"split_id", s.ID,
			"transaction_id", s.TransactionID,
			"amount_cents", s.Amount.Cents)
	} else {
		slog.DebugContext(ctx, "Split already paid", "split_id", s.ID)
	}
	return s, nil
}

// ListDueRecurring returns recurring transactions whose next
// occurrence date is on or before now.
func (r *SQLiteRepository) ListDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		selectTransaction+` WHERE is_recurring = 1 AND next_recurring_date <= ? ORDER BY next_recurring_date`,
		core.DateOf(now).Format())
	if err != nil {
		return nil, fmt.Errorf("list due recurring: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due recurring: %w", err)
	}
	return out, nil
}

// MaterializeRecurring creates the next occurrence of a recurring
// transaction and advances the template's next date, atomically.
func (r *SQLiteRepository) MaterializeRecurring(ctx context.Context, instance *core.Transaction, templateID string, next core.Date) error {
	now := time.Now().UTC()
	instance.CreatedAt = now
	instance.UpdatedAt = now

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertTransactionTx(ctx, tx, instance); err != nil {
			return err
		}
		if err := adjustBalance(ctx, tx, instance.AccountID, core.SignedDelta(instance.Type, instance.Amount), now); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE transactions SET next_recurring_date = ?, updated_at = ? WHERE id = ? AND is_recurring = 1`,
			next.Format(), now, templateID)
		if err != nil {
			return fmt.Errorf("advance recurring date: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("advance recurring rows: %w", err)
		}
		if n == 0 {
			return core.NotFoundf("recurring transaction %s", templateID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Recurring transaction materialized",
		"template_id", templateID,
		"instance_id", instance.ID,
		"next_date", next.Format())
	return nil
}

// SumMonthExpenses totals EXPENSE amounts on the account within the
// given calendar month.
func (r *SQLiteRepository) SumMonthExpenses(ctx context.Context, accountID string, year, month int) (int64, error) {
	start := core.NewDate(year, month, 1)
	end := core.Date{Time: start.AddDate(0, 1, 0)}
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE account_id = ? AND type = 'EXPENSE' AND date >= ? AND date < ?`,
		accountID, start.Format(), end.Format()).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum month expenses: %w", err)
	}
	return sum, nil
}

const selectTransaction = `
	SELECT id, user_id, account_id, type, amount_cents, description, category,
	       date, is_recurring, recurring_interval, next_recurring_date, created_at, updated_at
	FROM transactions`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	t := &core.Transaction{}
	var typ, date string
	var interval, nextDate sql.NullString
	err := row.Scan(
		&t.ID, &t.UserID, &t.AccountID, &typ, &t.Amount.Cents, &t.Description, &t.Category,
		&date, &t.IsRecurring, &interval, &nextDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Type = core.TransactionType(typ)
	d, err := core.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	t.Date = d
	if interval.Valid {
		t.RecurringInterval = core.RecurringInterval(interval.String)
	}
	if nextDate.Valid {
		nd, err := core.ParseDate(nextDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse stored next date %q: %w", nextDate.String, err)
		}
		t.NextRecurringDate = nd
	}
	return t, nil
}

func insertTransactionTx(ctx context.Context, tx *sql.Tx, t *core.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions
		 (id, user_id, account_id, type, amount_cents, description, category,
		  date, is_recurring, recurring_interval, next_recurring_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.AccountID, string(t.Type), t.Amount.Cents, t.Description, t.Category,
		t.Date.Format(), t.IsRecurring, nullString(string(t.RecurringInterval)),
		nullDate(t.NextRecurringDate), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func insertSplitsTx(ctx context.Context, tx *sql.Tx, t *core.Transaction) error {
	for i := range t.Splits {
		s := &t.Splits[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.TransactionID = t.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO splits (id, transaction_id, name, amount_cents, paid) VALUES (?, ?, ?, ?, ?)`,
			s.ID, s.TransactionID, s.Name, s.Amount.Cents, s.Paid); err != nil {
			return fmt.Errorf("insert split: %w", err)
		}
	}
	return nil
}

func getTransactionTx(ctx context.Context, tx *sql.Tx, userID, id string) (*core.Transaction, error) {
	t, err := scanTransaction(tx.QueryRowContext(ctx,
		selectTransaction+` WHERE id = ? AND user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return nil, core.NotFoundf("transaction %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) loadSplits(ctx context.Context, txIDs []string) (map[string][]core.Split, error) {
	out := make(map[string][]core.Split, len(txIDs))
	if len(txIDs) == 0 {
		return out, nil
	}
	placeholders := strings.Repeat("?,", len(txIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(txIDs))
	for i, id := range txIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, transaction_id, name, amount_cents, paid FROM splits
		 WHERE transaction_id IN (`+placeholders+`) ORDER BY rowid`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("load splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s core.Split
		if err := rows.Scan(&s.ID, &s.TransactionID, &s.Name, &s.Amount.Cents, &s.Paid); err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		out[s.TransactionID] = append(out[s.TransactionID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate splits: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(d core.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Format(), Valid: true}
}
