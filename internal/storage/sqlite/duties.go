package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platfe/economy/internal/models"
)

const dutyColumns = "id, created_at, last_settlement, payer_account_id, owner_account_id, period_seconds, tax_amount, blocked, disabled"

// CreateDuty persists a new duty contract. LastSettlement defaults to the
// creation time so the first period starts counting from registration.
func (s *SQLiteStore) CreateDuty(ctx context.Context, duty *models.DutyContract) error {
	if duty.ID == "" {
		duty.ID = uuid.New().String()
	}
	if duty.CreatedAt == 0 {
		duty.CreatedAt = time.Now().Unix()
	}
	if duty.LastSettlement == 0 {
		duty.LastSettlement = duty.CreatedAt
	}

	var payer any
	if duty.PayerAccountID != "" {
		payer = duty.PayerAccountID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO duties (id, created_at, last_settlement, payer_account_id, owner_account_id, period_seconds, tax_amount, blocked, disabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0)`,
		duty.ID, duty.CreatedAt, duty.LastSettlement, payer, duty.OwnerAccountID,
		int64(duty.Period/time.Second), duty.TaxAmount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert duty: %w", err)
	}

	return nil
}

// GetDuty retrieves a duty contract by ID.
func (s *SQLiteStore) GetDuty(ctx context.Context, id string) (*models.DutyContract, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+dutyColumns+" FROM duties WHERE id = ?", id,
	)

	duty, err := scanDuty(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get duty: %w", err)
	}

	return duty, nil
}

// ListActiveDuties retrieves all non-blocked, non-disabled duty contracts.
func (s *SQLiteStore) ListActiveDuties(ctx context.Context) ([]*models.DutyContract, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+dutyColumns+" FROM duties WHERE blocked = 0 AND disabled = 0",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active duties: %w", err)
	}
	defer rows.Close()

	var duties []*models.DutyContract
	for rows.Next() {
		duty, err := scanDuty(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan duty: %w", err)
		}
		duties = append(duties, duty)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate duties: %w", err)
	}

	return duties, nil
}

// SetDutyPayer assigns the paying account of a duty contract.
func (s *SQLiteStore) SetDutyPayer(ctx context.Context, dutyID, payerAccountID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE duties SET payer_account_id = ? WHERE id = ?", payerAccountID, dutyID,
	)
	if err != nil {
		return fmt.Errorf("failed to set duty payer: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check duty payer update: %w", err)
	} else if n == 0 {
		return fmt.Errorf("duty not found: %s", dutyID)
	}
	return nil
}

// AdvanceDutySettlement persists the new last-settlement boundary.
func (s *SQLiteStore) AdvanceDutySettlement(ctx context.Context, id string, lastSettlement int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE duties SET last_settlement = ? WHERE id = ?", lastSettlement, id,
	)
	if err != nil {
		return fmt.Errorf("failed to advance duty settlement: %w", err)
	}
	return nil
}

// BlockDuty marks a duty contract as blocked.
func (s *SQLiteStore) BlockDuty(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE duties SET blocked = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to block duty: %w", err)
	}
	return nil
}

// DisableDuty marks a duty contract as disabled.
func (s *SQLiteStore) DisableDuty(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE duties SET disabled = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to disable duty: %w", err)
	}
	return nil
}

func scanDuty(scan func(dest ...any) error) (*models.DutyContract, error) {
	duty := &models.DutyContract{}
	var payer sql.NullString
	var periodSeconds int64

	err := scan(&duty.ID, &duty.CreatedAt, &duty.LastSettlement, &payer, &duty.OwnerAccountID,
		&periodSeconds, &duty.TaxAmount, &duty.Blocked, &duty.Disabled)
	if err != nil {
		return nil, err
	}

	if payer.Valid {
		duty.PayerAccountID = payer.String
	}
	duty.Period = time.Duration(periodSeconds) * time.Second

	return duty, nil
}
