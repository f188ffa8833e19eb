package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platfe/economy/internal/models"
	"github.com/platfe/economy/internal/storage"
)

const accountColumns = "id, name, currency_id, balance, blocked, disabled, created_at"

// CreateAccount persists a new account and its ownership-bridge row in one
// transaction. If the bridge insert fails the account insert is rolled back
// and the error wraps storage.ErrOwnerLink.
func (s *SQLiteStore) CreateAccount(ctx context.Context, acc *models.Account, ownerUserID string) error {
	if acc.ID == "" {
		acc.ID = uuid.New().String()
	}
	if acc.CreatedAt == 0 {
		acc.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Name uniqueness covers disabled accounts too; a soft-deleted account
	// keeps its name reserved.
	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM accounts WHERE name = ?", acc.Name).Scan(&exists)
	if err == nil {
		return fmt.Errorf("account %q: %w", acc.Name, storage.ErrNameTaken)
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check account name: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO accounts (id, name, currency_id, balance, blocked, disabled, created_at) VALUES (?, ?, ?, ?, 0, 0, ?)",
		acc.ID, acc.Name, acc.CurrencyID, acc.Balance, acc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO account_owners (account_id, user_id) VALUES (?, ?)",
		acc.ID, ownerUserID,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrOwnerLink, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetAccount retrieves a non-disabled account by ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return s.getAccount(ctx, "id = ? AND disabled = 0", id)
}

// GetAccountAny retrieves an account by ID, including disabled ones.
// Used by settlement and rollback so a soft-deleted account can still be
// forced to settle or repay.
func (s *SQLiteStore) GetAccountAny(ctx context.Context, id string) (*models.Account, error) {
	return s.getAccount(ctx, "id = ?", id)
}

// GetAccountByName retrieves a non-disabled account by name.
func (s *SQLiteStore) GetAccountByName(ctx context.Context, name string) (*models.Account, error) {
	return s.getAccount(ctx, "name = ? AND disabled = 0", name)
}

func (s *SQLiteStore) getAccount(ctx context.Context, where string, arg any) (*models.Account, error) {
	acc := &models.Account{}
	err := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE "+where, arg,
	).Scan(&acc.ID, &acc.Name, &acc.CurrencyID, &acc.Balance, &acc.Blocked, &acc.Disabled, &acc.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil // Account not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acc, nil
}

// ListAccountsForUser retrieves all non-disabled accounts owned by a user.
func (s *SQLiteStore) ListAccountsForUser(ctx context.Context, userID string) ([]*models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.name, a.currency_id, a.balance, a.blocked, a.disabled, a.created_at
		 FROM accounts a
		 JOIN account_owners ao ON ao.account_id = a.id
		 WHERE ao.user_id = ? AND a.disabled = 0
		 ORDER BY a.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for user: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// ListAccountOwners retrieves all users owning an account. Consumers use
// this to know who to notify when a payment lands.
func (s *SQLiteStore) ListAccountOwners(ctx context.Context, accountID string) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.created_at, u.disabled
		 FROM users u
		 JOIN account_owners ao ON ao.user_id = u.id
		 WHERE ao.account_id = ?
		 ORDER BY u.name`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list account owners: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Name, &user.CreatedAt, &user.Disabled); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate owners: %w", err)
	}

	return users, nil
}

// BlockAccount idempotently sets the blocked flag. Blocked accounts can
// still receive funds but cannot pay.
func (s *SQLiteStore) BlockAccount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE accounts SET blocked = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to block account: %w", err)
	}
	return nil
}

// DisableAccount soft-deletes an account. Balance and existing references
// are left intact.
func (s *SQLiteStore) DisableAccount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE accounts SET disabled = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to disable account: %w", err)
	}
	return nil
}

// MoveFunds debits the source account and credits the destination account
// in a single transaction, debit first. The audit record is appended by the
// caller afterwards; a crash between commit and append under-counts rather
// than double-credits.
func (s *SQLiteStore) MoveFunds(ctx context.Context, sourceID, destID string, amount int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE accounts SET balance = balance - ? WHERE id = ?", amount, sourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to debit source: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check debit: %w", err)
	} else if n == 0 {
		return fmt.Errorf("source account not found: %s", sourceID)
	}

	res, err = tx.ExecContext(ctx,
		"UPDATE accounts SET balance = balance + ? WHERE id = ?", amount, destID,
	)
	if err != nil {
		return fmt.Errorf("failed to credit destination: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check credit: %w", err)
	} else if n == 0 {
		return fmt.Errorf("destination account not found: %s", destID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func scanAccounts(rows *sql.Rows) ([]*models.Account, error) {
	var accounts []*models.Account
	for rows.Next() {
		acc := &models.Account{}
		if err := rows.Scan(&acc.ID, &acc.Name, &acc.CurrencyID, &acc.Balance, &acc.Blocked, &acc.Disabled, &acc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}
