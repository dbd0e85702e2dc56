// Package storage persists the ledger in SQLite. Every logical
// operation that touches more than one row (transaction + splits +
// account balance, clear-then-set default) runs inside a single
// database transaction, and balance changes are always relative
// increments executed in SQL, never read-modify-write in Go.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if necessary) the database at
// dbPath, applies migrations and returns a ready repository.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// _txlock=immediate makes write transactions take the write lock
	// up front instead of failing with SQLITE_BUSY on upgrade.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// withTx runs fn inside a transaction, committing on nil and rolling
// back on error. SQLite transactions are serializable, which is what
// keeps the cached balance consistent with the row writes.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// adjustBalance applies a relative increment to the stored balance.
// Composable: always called inside a caller-owned transaction.
func adjustBalance(ctx context.Context, tx *sql.Tx, accountID string, deltaCents int64, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ?, updated_at = ? WHERE id = ?`,
		deltaCents, now, accountID)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust balance rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundf("account %s", accountID)
	}
	return nil
}

// FindOrCreateUser maps an identity provider subject to the internal
// user row, creating one on first sight.
func (r *SQLiteRepository) FindOrCreateUser(ctx context.Context, externalID string) (*core.User, error) {
	u := &core.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, external_id, created_at FROM users WHERE external_id = ?`,
		externalID).Scan(&u.ID, &u.ExternalID, &u.CreatedAt)
	if err == nil {
		return u, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("find user: %w", err)
	}

	u = &core.User{ID: uuid.NewString(), ExternalID: externalID, CreatedAt: time.Now().UTC()}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, external_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(external_id) DO NOTHING`,
		u.ID, u.ExternalID, u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	// A concurrent first request may have won the insert; read back.
	err = r.db.QueryRowContext(ctx,
		`SELECT id, external_id, created_at FROM users WHERE external_id = ?`,
		externalID).Scan(&u.ID, &u.ExternalID, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("read back user: %w", err)
	}
	slog.InfoContext(ctx, "User created", "user_id", u.ID)
	return u, nil
}

// CreateAccount inserts a new account. A user's first account is
// forced to be the default; otherwise, when the caller requests
// default, every other default is cleared first. All of it happens in
// one transaction so concurrent calls cannot leave zero or two
// defaults.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a *core.Account) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var existing int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM accounts WHERE user_id = ?`, a.UserID).Scan(&existing); err != nil {
			return fmt.Errorf("count accounts: %w", err)
		}
		if existing == 0 {
			a.IsDefault = true
		}
		if a.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET is_default = 0, updated_at = ? WHERE user_id = ? AND is_default = 1`,
				now, a.UserID); err != nil {
				return fmt.Errorf("clear defaults: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, user_id, name, type, balance_cents, is_default, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.UserID, a.Name, string(a.Type), a.Balance.Cents, a.IsDefault, a.CreatedAt, a.UpdatedAt); err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Account created",
		"account_id", a.ID,
		"user_id", a.UserID,
		"balance_cents", a.Balance.Cents,
		"is_default", a.IsDefault)
	return nil
}

// SetDefaultAccount makes accountID the user's only default account.
func (r *SQLiteRepository) SetDefaultAccount(ctx context.Context, userID, accountID string) (*core.Account, error) {
	now := time.Now().UTC()
	var out *core.Account

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		a, err := getAccountTx(ctx, tx, userID, accountID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET is_default = 0, updated_at = ? WHERE user_id = ? AND is_default = 1`,
			now, userID); err != nil {
			return fmt.Errorf("clear defaults: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET is_default = 1, updated_at = ? WHERE id = ?`,
			now, accountID); err != nil {
			return fmt.Errorf("set default: %w", err)
		}
		a.IsDefault = true
		a.UpdatedAt = now
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Default account changed", "account_id", accountID, "user_id", userID)
	return out, nil
}

// GetAccount loads one account owned by the user.
func (r *SQLiteRepository) GetAccount(ctx context.Context, userID, accountID string) (*core.Account, error) {
	a := &core.Account{}
	var typ string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, type, balance_cents, is_default, created_at, updated_at
		 FROM accounts WHERE id = ? AND user_id = ?`,
		accountID, userID).Scan(
		&a.ID, &a.UserID, &a.Name, &typ, &a.Balance.Cents, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, core.NotFoundf("account %s", accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.Type = core.AccountType(typ)
	return a, nil
}

func getAccountTx(ctx context.Context, tx *sql.Tx, userID, accountID string) (*core.Account, error) {
	a := &core.Account{}
	var typ string
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, name, type, balance_cents, is_default, created_at, updated_at
		 FROM accounts WHERE id = ? AND user_id = ?`,
		accountID, userID).Scan(
		&a.ID, &a.UserID, &a.Name, &typ, &a.Balance.Cents, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, core.NotFoundf("account %s", accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.Type = core.AccountType(typ)
	return a, nil
}

// ListAccountsWithCounts returns all of the user's accounts with
// their transaction counts, newest-created first.
func (r *SQLiteRepository) ListAccountsWithCounts(ctx context.Context, userID string) ([]core.AccountWithCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.name, a.type, a.balance_cents, a.is_default, a.created_at, a.updated_at,
		        COUNT(t.id)
		 FROM accounts a
		 LEFT JOIN transactions t ON t.account_id = a.id
		 WHERE a.user_id = ?
		 GROUP BY a.id
		 ORDER BY a.created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.AccountWithCount
	for rows.Next() {
		var ac core.AccountWithCount
		var typ string
		if err := rows.Scan(
			&ac.ID, &ac.UserID, &ac.Name, &typ, &ac.Balance.Cents, &ac.IsDefault,
			&ac.CreatedAt, &ac.UpdatedAt, &ac.TransactionCount); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		ac.Type = core.AccountType(typ)
		out = append(out, ac)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}
