package ledger

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/platfe/economy/internal/metrics"
	"github.com/platfe/economy/internal/models"
	"github.com/platfe/economy/internal/storage"
)

// rollbackWorkers bounds the fan-out of compensating transfers within one
// rollback invocation.
const rollbackWorkers = 8

// Ledger owns the transfer audit log and the rollback coordinator.
// Rollback is compensating-transaction based, not a transactional undo:
// balances may have moved since the original transfer, so the compensation
// applies against current balances and blocks any account it drives
// negative instead of refusing.
type Ledger struct {
	store    storage.Store
	accounts *Accounts
}

// NewLedger creates a Ledger over the given storage backend.
func NewLedger(store storage.Store, accounts *Accounts) *Ledger {
	return &Ledger{store: store, accounts: accounts}
}

// Report summarizes one rollback invocation.
type Report struct {
	// Matched is how many records the filter selected.
	Matched int

	// Compensated is how many reverse transfers were issued.
	Compensated int

	// Skipped counts records another invocation already claimed or whose
	// accounts no longer exist.
	Skipped int

	// Failed counts compensations that errored. Failures are isolated:
	// one failing compensation never blocks its siblings.
	Failed int
}

func (r *Report) add(other Report) {
	r.Matched += other.Matched
	r.Compensated += other.Compensated
	r.Skipped += other.Skipped
	r.Failed += other.Failed
}

// GetRecord retrieves a transfer record by ID.
func (l *Ledger) GetRecord(ctx context.Context, id string) (*models.TransferRecord, error) {
	return l.store.GetTransfer(ctx, id)
}

// Rollback reverses every not-yet-rolled-back transfer matching the filter.
// Box-triggered transfers are resolved first through RollbackBoxLogs so they
// are never compensated twice; the remaining plain transfers follow. All
// compensations within the invocation run concurrently and the call returns
// once every one has finished or failed individually.
func (l *Ledger) Rollback(ctx context.Context, actorUserID string, f storage.RollbackFilter) (Report, error) {
	report, err := l.RollbackBoxLogs(ctx, actorUserID, f)
	if err != nil {
		return report, err
	}

	records, err := l.store.ListTransfersForRollback(ctx, f)
	if err != nil {
		return report, err
	}

	var mu sync.Mutex
	plain := Report{Matched: len(records)}

	g := new(errgroup.Group)
	g.SetLimit(rollbackWorkers)
	for _, rec := range records {
		g.Go(func() error {
			outcome := l.compensate(ctx, rec, actorUserID, "transfer")
			mu.Lock()
			plain.count(outcome)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	report.add(plain)
	slog.Info("rollback complete",
		"actor", actorUserID,
		"matched", report.Matched,
		"compensated", report.Compensated,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

// RollbackBoxLogs reverses every box trade whose underlying transfer matches
// the filter, marking both the box log and the transfer record rolled back.
func (l *Ledger) RollbackBoxLogs(ctx context.Context, actorUserID string, f storage.RollbackFilter) (Report, error) {
	logs, err := l.store.ListBoxLogsForRollback(ctx, f)
	if err != nil {
		return Report{}, err
	}

	var mu sync.Mutex
	report := Report{Matched: len(logs)}

	g := new(errgroup.Group)
	g.SetLimit(rollbackWorkers)
	for _, boxLog := range logs {
		g.Go(func() error {
			outcome := l.rollbackBoxLog(ctx, boxLog, actorUserID)
			mu.Lock()
			report.count(outcome)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return report, nil
}

type outcome int

const (
	outcomeCompensated outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (r *Report) count(o outcome) {
	switch o {
	case outcomeCompensated:
		r.Compensated++
	case outcomeSkipped:
		r.Skipped++
	case outcomeFailed:
		r.Failed++
	}
}

func (l *Ledger) rollbackBoxLog(ctx context.Context, boxLog *models.BoxLog, actorUserID string) outcome {
	won, err := l.store.ClaimBoxLogRollback(ctx, boxLog.ID)
	if err != nil {
		slog.Error("box log rollback claim failed", "box_log_id", boxLog.ID, "error", err)
		return outcomeFailed
	}
	if !won {
		return outcomeSkipped
	}

	rec, err := l.store.GetTransfer(ctx, boxLog.TransferID)
	if err != nil {
		slog.Error("box log transfer lookup failed", "box_log_id", boxLog.ID, "error", err)
		return outcomeFailed
	}
	if rec == nil {
		return outcomeSkipped
	}

	return l.compensate(ctx, rec, actorUserID, "box")
}

// compensate reverses one transfer record: claim the rollback flag first so
// the compensation happens at most once, then transfer the amount back from
// destination to source against current balances, blocking the destination
// account if the repayment leaves it negative.
func (l *Ledger) compensate(ctx context.Context, rec *models.TransferRecord, actorUserID, kind string) outcome {
	source, err := l.store.GetAccountAny(ctx, rec.SourceAccountID)
	if err != nil {
		slog.Error("rollback source lookup failed", "record_id", rec.ID, "error", err)
		return outcomeFailed
	}
	dest, err := l.store.GetAccountAny(ctx, rec.DestAccountID)
	if err != nil {
		slog.Error("rollback dest lookup failed", "record_id", rec.ID, "error", err)
		return outcomeFailed
	}
	if source == nil || dest == nil {
		return outcomeSkipped
	}

	won, err := l.store.ClaimTransferRollback(ctx, rec.ID)
	if err != nil {
		slog.Error("rollback claim failed", "record_id", rec.ID, "error", err)
		return outcomeFailed
	}
	if !won {
		return outcomeSkipped
	}

	if _, err := l.accounts.transfer(ctx, dest, source, actorUserID, rec.Amount, true); err != nil {
		slog.Error("compensating transfer failed", "record_id", rec.ID, "error", err)
		return outcomeFailed
	}

	// Repayment applies against the current balance; if the destination
	// spent the funds in the meantime it goes negative and gets blocked.
	repaid, err := l.store.GetAccountAny(ctx, dest.ID)
	if err == nil && repaid != nil && repaid.Balance < 0 {
		if err := l.store.BlockAccount(ctx, dest.ID); err != nil {
			slog.Error("blocking overdrawn account failed", "account_id", dest.ID, "error", err)
		}
	}

	metrics.RollbackCompensated(kind)
	return outcomeCompensated
}
