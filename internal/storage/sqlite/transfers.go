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

const transferColumns = "id, timestamp, actor_user_id, source_account_id, dest_account_id, amount, is_rollback"

// AppendTransfer persists a new transfer record.
func (s *SQLiteStore) AppendTransfer(ctx context.Context, rec *models.TransferRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}

	var actor any
	if rec.ActorUserID != "" {
		actor = rec.ActorUserID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transfers (id, timestamp, actor_user_id, source_account_id, dest_account_id, amount, is_rollback)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp, actor, rec.SourceAccountID, rec.DestAccountID, rec.Amount, rec.IsRollback,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}

	return nil
}

// GetTransfer retrieves a transfer record by ID.
func (s *SQLiteStore) GetTransfer(ctx context.Context, id string) (*models.TransferRecord, error) {
	rec := &models.TransferRecord{}
	var actor sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT "+transferColumns+" FROM transfers WHERE id = ?", id,
	).Scan(&rec.ID, &rec.Timestamp, &actor, &rec.SourceAccountID, &rec.DestAccountID, &rec.Amount, &rec.IsRollback)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}

	if actor.Valid {
		rec.ActorUserID = actor.String
	}

	return rec, nil
}

// rollbackWhere builds the filter clause shared by transfer and box-log
// rollback selection. All supplied filters are ANDed together.
func rollbackWhere(f storage.RollbackFilter) (string, []any) {
	where := "t.is_rollback = 0"
	var args []any

	if f.Since != nil {
		where += " AND t.timestamp >= ?"
		args = append(args, f.Since.Unix())
	}
	if f.SourceAccountID != "" {
		where += " AND t.source_account_id = ?"
		args = append(args, f.SourceAccountID)
	}
	if f.ActorUserID != "" {
		where += " AND t.actor_user_id = ?"
		args = append(args, f.ActorUserID)
	}

	return where, args
}

// ListTransfersForRollback selects all not-yet-rolled-back transfer records
// matching the filter.
func (s *SQLiteStore) ListTransfersForRollback(ctx context.Context, f storage.RollbackFilter) ([]*models.TransferRecord, error) {
	where, args := rollbackWhere(f)

	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.timestamp, t.actor_user_id, t.source_account_id, t.dest_account_id, t.amount, t.is_rollback
		 FROM transfers t WHERE `+where+` ORDER BY t.timestamp`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers for rollback: %w", err)
	}
	defer rows.Close()

	var records []*models.TransferRecord
	for rows.Next() {
		rec := &models.TransferRecord{}
		var actor sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &actor, &rec.SourceAccountID, &rec.DestAccountID, &rec.Amount, &rec.IsRollback); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		if actor.Valid {
			rec.ActorUserID = actor.String
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfers: %w", err)
	}

	return records, nil
}

// ClaimTransferRollback flips the is_rollback flag exactly once and reports
// whether this caller won the claim. Losing the claim means the record was
// already compensated.
func (s *SQLiteStore) ClaimTransferRollback(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE transfers SET is_rollback = 1 WHERE id = ? AND is_rollback = 0", id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim transfer rollback: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rollback claim: %w", err)
	}

	return n == 1, nil
}
