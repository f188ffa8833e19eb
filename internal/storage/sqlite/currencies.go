package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/platfe/economy/internal/models"
	"github.com/platfe/economy/internal/storage"
)

// CreateCurrency inserts a new currency into the database.
func (s *SQLiteStore) CreateCurrency(ctx context.Context, cur *models.Currency) error {
	if cur.ID == "" {
		cur.ID = uuid.New().String()
	}

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM currencies WHERE name = ?", cur.Name).Scan(&exists)
	if err == nil {
		return fmt.Errorf("currency %q: %w", cur.Name, storage.ErrNameTaken)
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check currency name: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO currencies (id, name, short_code) VALUES (?, ?, ?)",
		cur.ID, cur.Name, cur.ShortCode,
	)
	if err != nil {
		return fmt.Errorf("failed to create currency: %w", err)
	}

	return nil
}

// GetCurrency retrieves a currency by ID.
func (s *SQLiteStore) GetCurrency(ctx context.Context, id string) (*models.Currency, error) {
	cur := &models.Currency{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, short_code FROM currencies WHERE id = ?", id,
	).Scan(&cur.ID, &cur.Name, &cur.ShortCode)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get currency: %w", err)
	}

	return cur, nil
}

// ListCurrencies retrieves all currencies ordered by name.
func (s *SQLiteStore) ListCurrencies(ctx context.Context) ([]*models.Currency, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, short_code FROM currencies ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies: %w", err)
	}
	defer rows.Close()

	var currencies []*models.Currency
	for rows.Next() {
		cur := &models.Currency{}
		if err := rows.Scan(&cur.ID, &cur.Name, &cur.ShortCode); err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		currencies = append(currencies, cur)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate currencies: %w", err)
	}

	return currencies, nil
}
