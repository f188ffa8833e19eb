package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/platfe/economy/internal/metrics"
	"github.com/platfe/economy/internal/models"
	"github.com/platfe/economy/internal/storage"
)

// reservedDelimiter separates fields in the game's wire protocol; account,
// currency, and user names must never contain it.
const reservedDelimiter = "$"

const maxNameLength = 32

// Accounts implements the account store: creation, lookup, the atomic
// transfer primitive, and the guarded pay operation.
type Accounts struct {
	store storage.Store
}

// NewAccounts creates an Accounts service with the given storage backend.
func NewAccounts(store storage.Store) *Accounts {
	return &Accounts{store: store}
}

// Create registers a new account bound to its first owner. The account row
// and the ownership-bridge row are inserted atomically; if the bridge insert
// fails the account creation is rolled back too.
func (a *Accounts) Create(ctx context.Context, ownerUserID, name, currencyID string) (*models.Account, error) {
	if name == "" || len(name) > maxNameLength || strings.Contains(name, reservedDelimiter) {
		return nil, ErrInvalidName
	}

	acc := &models.Account{
		Name:       name,
		CurrencyID: currencyID,
	}
	err := a.store.CreateAccount(ctx, acc, ownerUserID)
	if errors.Is(err, storage.ErrNameTaken) {
		return nil, ErrDuplicateName
	}
	if errors.Is(err, storage.ErrOwnerLink) {
		return nil, ErrOwnershipLinkFailed
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	slog.Info("account created", "account_id", acc.ID, "name", name, "owner", ownerUserID)
	return acc, nil
}

// GetByName retrieves a non-disabled account by name.
func (a *Accounts) GetByName(ctx context.Context, name string) (*models.Account, error) {
	return a.store.GetAccountByName(ctx, name)
}

// GetByID retrieves a non-disabled account by ID.
func (a *Accounts) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return a.store.GetAccount(ctx, id)
}

// GetForceByID retrieves an account regardless of the disabled flag.
// Settlement and rollback use it so a soft-deleted account still settles
// and repays.
func (a *Accounts) GetForceByID(ctx context.Context, id string) (*models.Account, error) {
	return a.store.GetAccountAny(ctx, id)
}

// OwnedBy lists all non-disabled accounts a user owns.
func (a *Accounts) OwnedBy(ctx context.Context, userID string) ([]*models.Account, error) {
	return a.store.ListAccountsForUser(ctx, userID)
}

// Owners lists the users owning an account. The transport layer uses this
// to fan out payment notifications.
func (a *Accounts) Owners(ctx context.Context, accountID string) ([]*models.User, error) {
	return a.store.ListAccountOwners(ctx, accountID)
}

// Transfer atomically moves amount from source to dest and appends the audit
// record, returning the new record's ID. It validates only the transfer-level
// rules (positive amount, matching currency); sufficiency and ownership are
// Pay's job. Accounts are force-resolved so rollback compensation can move
// funds through disabled accounts.
func (a *Accounts) Transfer(ctx context.Context, sourceID, actorUserID, destID string, amount int64) (string, error) {
	source, err := a.store.GetAccountAny(ctx, sourceID)
	if err != nil {
		return "", err
	}
	dest, err := a.store.GetAccountAny(ctx, destID)
	if err != nil {
		return "", err
	}
	if source == nil || dest == nil {
		return "", fmt.Errorf("transfer: account not found")
	}

	return a.transfer(ctx, source, dest, actorUserID, amount, false)
}

// SystemTransfer is Transfer with no acting user, used by duty settlement
// and rollback compensation.
func (a *Accounts) SystemTransfer(ctx context.Context, sourceID, destID string, amount int64) (string, error) {
	return a.Transfer(ctx, sourceID, "", destID, amount)
}

// Pay is the guarded transfer for direct user-initiated payments. The guards
// run in a fixed order and the first failing rule wins: amount positive,
// source not blocked, source distinct from destination, matching currency,
// sufficient funds, acting user owns the source. All checks precede any
// mutation.
func (a *Accounts) Pay(ctx context.Context, sourceID, actorUserID, destID string, amount int64) (string, error) {
	if amount <= 0 {
		return "", a.failPay(ErrAmountNotPositive)
	}

	source, err := a.store.GetAccount(ctx, sourceID)
	if err != nil {
		return "", err
	}
	dest, err := a.store.GetAccount(ctx, destID)
	if err != nil {
		return "", err
	}
	if source == nil || dest == nil {
		return "", fmt.Errorf("pay: account not found")
	}

	if source.Blocked {
		return "", a.failPay(ErrSourceBlocked)
	}
	if source.ID == dest.ID {
		return "", a.failPay(ErrSourceEqualsDestination)
	}
	if source.CurrencyID != dest.CurrencyID {
		return "", a.failPay(ErrCurrencyMismatch)
	}
	if source.Balance-amount < 0 {
		return "", a.failPay(ErrInsufficientFunds)
	}

	owners, err := a.store.ListAccountOwners(ctx, source.ID)
	if err != nil {
		return "", err
	}
	isOwner := false
	for _, u := range owners {
		if u.ID == actorUserID {
			isOwner = true
			break
		}
	}
	if !isOwner {
		return "", a.failPay(ErrActorNotOwner)
	}

	recordID, err := a.transfer(ctx, source, dest, actorUserID, amount, false)
	if err != nil {
		return "", err
	}

	slog.Info("payment accepted",
		"record_id", recordID,
		"source", source.Name,
		"dest", dest.Name,
		"amount", amount,
		"actor", actorUserID,
	)
	return recordID, nil
}

// Block idempotently blocks an account. Blocked accounts still receive
// funds but can no longer pay.
func (a *Accounts) Block(ctx context.Context, id string) error {
	return a.store.BlockAccount(ctx, id)
}

// Delete soft-deletes an account. The balance is kept and existing
// references stay valid.
func (a *Accounts) Delete(ctx context.Context, id string) error {
	return a.store.DisableAccount(ctx, id)
}

// transfer performs the validated movement: debit, credit, then the audit
// append. The record is written only after both balance mutations commit;
// an append failure is reported as LedgerWriteFailed and the balances stand,
// flagged for investigation rather than retried. Compensating transfers are
// appended with the rollback flag already set so no later rollback pass can
// select and reverse a compensation.
func (a *Accounts) transfer(ctx context.Context, source, dest *models.Account, actorUserID string, amount int64, compensation bool) (string, error) {
	if amount <= 0 {
		metrics.TransferObserved("amount_not_positive")
		return "", ErrAmountNotPositive
	}
	if source.CurrencyID != dest.CurrencyID {
		metrics.TransferObserved("currency_mismatch")
		return "", ErrCurrencyMismatch
	}

	if err := a.store.MoveFunds(ctx, source.ID, dest.ID, amount); err != nil {
		metrics.TransferObserved("move_failed")
		return "", fmt.Errorf("transfer: %w", err)
	}

	rec := &models.TransferRecord{
		ActorUserID:     actorUserID,
		SourceAccountID: source.ID,
		DestAccountID:   dest.ID,
		Amount:          amount,
		IsRollback:      compensation,
	}
	if err := a.store.AppendTransfer(ctx, rec); err != nil {
		metrics.TransferObserved("ledger_write_failed")
		slog.Error("transfer audit append failed after balance mutation",
			"source", source.ID, "dest", dest.ID, "amount", amount, "error", err)
		return "", ErrLedgerWriteFailed
	}

	metrics.TransferObserved("ok")
	return rec.ID, nil
}

func (a *Accounts) failPay(status *Error) error {
	metrics.PayRejected(int(status.Code))
	return status
}
