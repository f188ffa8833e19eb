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

const boxColumns = `id, created_at, world, x, y, z, last_settlement, payer_account_id, owner_account_id,
	period_seconds, tax_amount, item_id, item_tag, stock, buy_price, sell_price, blocked, disabled`

// CreateBox persists a new shared box. LastSettlement defaults to the
// creation time so rent starts counting from registration.
func (s *SQLiteStore) CreateBox(ctx context.Context, box *models.SharedBox) error {
	if box.ID == "" {
		box.ID = uuid.New().String()
	}
	if box.CreatedAt == 0 {
		box.CreatedAt = time.Now().Unix()
	}
	if box.LastSettlement == 0 {
		box.LastSettlement = box.CreatedAt
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO boxes (id, created_at, world, x, y, z, last_settlement, payer_account_id, owner_account_id,
		 period_seconds, tax_amount, item_id, item_tag, stock, buy_price, sell_price, blocked, disabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)`,
		box.ID, box.CreatedAt, box.World, box.X, box.Y, box.Z, box.LastSettlement,
		box.PayerAccountID, box.OwnerAccountID, int64(box.Period/time.Second), box.TaxAmount,
		box.ItemID, box.ItemTag, box.Stock, nullableInt(box.BuyPrice), nullableInt(box.SellPrice),
	)
	if err != nil {
		return fmt.Errorf("failed to insert box: %w", err)
	}

	return nil
}

// GetBox retrieves a box by ID, including blocked and disabled ones.
func (s *SQLiteStore) GetBox(ctx context.Context, id string) (*models.SharedBox, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+boxColumns+" FROM boxes WHERE id = ?", id,
	)

	box, err := scanBox(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get box: %w", err)
	}

	return box, nil
}

// GetBoxByCoordinates retrieves the non-disabled box at a world point.
func (s *SQLiteStore) GetBoxByCoordinates(ctx context.Context, world string, x, y, z int) (*models.SharedBox, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+boxColumns+" FROM boxes WHERE world = ? AND x = ? AND y = ? AND z = ? AND disabled = 0",
		world, x, y, z,
	)

	box, err := scanBox(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get box by coordinates: %w", err)
	}

	return box, nil
}

// ListBoxesNotBlocked retrieves all boxes eligible for a settlement pass.
func (s *SQLiteStore) ListBoxesNotBlocked(ctx context.Context) ([]*models.SharedBox, error) {
	return s.listBoxes(ctx, "blocked = 0 AND disabled = 0")
}

// ListBoxesForAccount retrieves all non-disabled boxes paid for by an account.
func (s *SQLiteStore) ListBoxesForAccount(ctx context.Context, payerAccountID string) ([]*models.SharedBox, error) {
	return s.listBoxes(ctx, "payer_account_id = ? AND disabled = 0", payerAccountID)
}

func (s *SQLiteStore) listBoxes(ctx context.Context, where string, args ...any) ([]*models.SharedBox, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+boxColumns+" FROM boxes WHERE "+where, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list boxes: %w", err)
	}
	defer rows.Close()

	var boxes []*models.SharedBox
	for rows.Next() {
		box, err := scanBox(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan box: %w", err)
		}
		boxes = append(boxes, box)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate boxes: %w", err)
	}

	return boxes, nil
}

// AdjustBoxStock adds delta (which may be negative) to a box's stock.
// The update refuses to drive stock below zero.
func (s *SQLiteStore) AdjustBoxStock(ctx context.Context, id string, delta int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE boxes SET stock = stock + ? WHERE id = ? AND stock + ? >= 0",
		delta, id, delta,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust box stock: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check stock adjustment: %w", err)
	} else if n == 0 {
		return fmt.Errorf("box %s: stock adjustment by %d rejected", id, delta)
	}
	return nil
}

// AdvanceBoxSettlement persists the new last-settlement boundary.
func (s *SQLiteStore) AdvanceBoxSettlement(ctx context.Context, id string, lastSettlement int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE boxes SET last_settlement = ? WHERE id = ?", lastSettlement, id,
	)
	if err != nil {
		return fmt.Errorf("failed to advance box settlement: %w", err)
	}
	return nil
}

// BlockBox marks a box as blocked.
func (s *SQLiteStore) BlockBox(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE boxes SET blocked = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to block box: %w", err)
	}
	return nil
}

// DisableBox marks a box as removed.
func (s *SQLiteStore) DisableBox(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE boxes SET disabled = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to disable box: %w", err)
	}
	return nil
}

// AppendBoxLog persists a new box trade log entry.
func (s *SQLiteStore) AppendBoxLog(ctx context.Context, log *models.BoxLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO box_logs (id, transfer_id, box_id, quantity, unit_price, is_rollback) VALUES (?, ?, ?, ?, ?, 0)",
		log.ID, log.TransferID, log.BoxID, log.Quantity, log.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("failed to insert box log: %w", err)
	}

	return nil
}

// GetBoxLog retrieves a box log entry by ID.
func (s *SQLiteStore) GetBoxLog(ctx context.Context, id string) (*models.BoxLog, error) {
	log := &models.BoxLog{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, transfer_id, box_id, quantity, unit_price, is_rollback FROM box_logs WHERE id = ?", id,
	).Scan(&log.ID, &log.TransferID, &log.BoxID, &log.Quantity, &log.UnitPrice, &log.IsRollback)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get box log: %w", err)
	}

	return log, nil
}

// ListBoxLogsForRollback joins box logs to their transfers and selects every
// not-yet-rolled-back log whose transfer matches the filter.
func (s *SQLiteStore) ListBoxLogsForRollback(ctx context.Context, f storage.RollbackFilter) ([]*models.BoxLog, error) {
	where, args := rollbackWhere(f)

	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.transfer_id, b.box_id, b.quantity, b.unit_price, b.is_rollback
		 FROM box_logs b
		 JOIN transfers t ON t.id = b.transfer_id
		 WHERE b.is_rollback = 0 AND `+where,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list box logs for rollback: %w", err)
	}
	defer rows.Close()

	var logs []*models.BoxLog
	for rows.Next() {
		log := &models.BoxLog{}
		if err := rows.Scan(&log.ID, &log.TransferID, &log.BoxID, &log.Quantity, &log.UnitPrice, &log.IsRollback); err != nil {
			return nil, fmt.Errorf("failed to scan box log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate box logs: %w", err)
	}

	return logs, nil
}

// ClaimBoxLogRollback flips the is_rollback flag exactly once and reports
// whether this caller won the claim.
func (s *SQLiteStore) ClaimBoxLogRollback(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE box_logs SET is_rollback = 1 WHERE id = ? AND is_rollback = 0", id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim box log rollback: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check box log claim: %w", err)
	}

	return n == 1, nil
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func scanBox(scan func(dest ...any) error) (*models.SharedBox, error) {
	box := &models.SharedBox{}
	var buy, sell sql.NullInt64
	var periodSeconds int64

	err := scan(&box.ID, &box.CreatedAt, &box.World, &box.X, &box.Y, &box.Z, &box.LastSettlement,
		&box.PayerAccountID, &box.OwnerAccountID, &periodSeconds, &box.TaxAmount,
		&box.ItemID, &box.ItemTag, &box.Stock, &buy, &sell, &box.Blocked, &box.Disabled)
	if err != nil {
		return nil, err
	}

	if buy.Valid {
		box.BuyPrice = &buy.Int64
	}
	if sell.Valid {
		box.SellPrice = &sell.Int64
	}
	box.Period = time.Duration(periodSeconds) * time.Second

	return box, nil
}
