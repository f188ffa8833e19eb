// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/platfe/economy/internal/models"
)

// Sentinel errors returned by Store implementations. Services match on these
// with errors.Is and translate them into ledger status codes.
var (
	// ErrNameTaken is returned when a unique name (user, currency,
	// account) is already in use, including by soft-deleted rows.
	ErrNameTaken = errors.New("name already taken")

	// ErrOwnerLink is returned when the ownership-bridge insert fails
	// during account creation. The account insert is rolled back too.
	ErrOwnerLink = errors.New("owner link failed")
)

// RollbackFilter narrows which transfer records a rollback pass touches.
// All set fields are ANDed together; zero values mean "no constraint".
type RollbackFilter struct {
	// Since matches records with timestamp >= Since.
	Since *time.Time

	// SourceAccountID matches records debited from this account.
	SourceAccountID string

	// ActorUserID matches records initiated by this user.
	ActorUserID string
}

// Store defines the interface for economy storage operations.
// This abstraction allows swapping storage backends (SQLite, MySQL, etc.)
// without changing the service layer.
//
// Get* methods return (nil, nil) when the row does not exist; errors are
// reserved for storage failures.
type Store interface {
	// Users.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByName(ctx context.Context, name string) (*models.User, error)

	// Currencies.
	CreateCurrency(ctx context.Context, cur *models.Currency) error
	GetCurrency(ctx context.Context, id string) (*models.Currency, error)
	ListCurrencies(ctx context.Context) ([]*models.Currency, error)

	// Accounts. CreateAccount inserts the account and its ownership bridge
	// row in one transaction; a bridge failure rolls back the account and
	// surfaces as ErrOwnerLink. GetAccount and GetAccountByName exclude
	// disabled accounts; GetAccountAny includes them so settlement and
	// rollback can force a disabled account to settle or repay.
	CreateAccount(ctx context.Context, acc *models.Account, ownerUserID string) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountAny(ctx context.Context, id string) (*models.Account, error)
	GetAccountByName(ctx context.Context, name string) (*models.Account, error)
	ListAccountsForUser(ctx context.Context, userID string) ([]*models.Account, error)
	ListAccountOwners(ctx context.Context, accountID string) ([]*models.User, error)
	BlockAccount(ctx context.Context, id string) error
	DisableAccount(ctx context.Context, id string) error

	// MoveFunds debits source and credits dest in a single transaction,
	// in that order. It does not write the audit record; callers append
	// it afterwards so a failed append can be reported distinctly.
	MoveFunds(ctx context.Context, sourceID, destID string, amount int64) error

	// Transfer ledger. ClaimTransferRollback flips is_rollback exactly
	// once and reports whether this caller won the claim.
	AppendTransfer(ctx context.Context, rec *models.TransferRecord) error
	GetTransfer(ctx context.Context, id string) (*models.TransferRecord, error)
	ListTransfersForRollback(ctx context.Context, f RollbackFilter) ([]*models.TransferRecord, error)
	ClaimTransferRollback(ctx context.Context, id string) (bool, error)

	// Duty contracts.
	CreateDuty(ctx context.Context, duty *models.DutyContract) error
	GetDuty(ctx context.Context, id string) (*models.DutyContract, error)
	ListActiveDuties(ctx context.Context) ([]*models.DutyContract, error)
	SetDutyPayer(ctx context.Context, dutyID, payerAccountID string) error
	AdvanceDutySettlement(ctx context.Context, id string, lastSettlement int64) error
	BlockDuty(ctx context.Context, id string) error
	DisableDuty(ctx context.Context, id string) error

	// Shared boxes.
	CreateBox(ctx context.Context, box *models.SharedBox) error
	GetBox(ctx context.Context, id string) (*models.SharedBox, error)
	GetBoxByCoordinates(ctx context.Context, world string, x, y, z int) (*models.SharedBox, error)
	ListBoxesNotBlocked(ctx context.Context) ([]*models.SharedBox, error)
	ListBoxesForAccount(ctx context.Context, payerAccountID string) ([]*models.SharedBox, error)
	AdjustBoxStock(ctx context.Context, id string, delta int64) error
	AdvanceBoxSettlement(ctx context.Context, id string, lastSettlement int64) error
	BlockBox(ctx context.Context, id string) error
	DisableBox(ctx context.Context, id string) error

	// Box logs. ClaimBoxLogRollback mirrors ClaimTransferRollback.
	AppendBoxLog(ctx context.Context, log *models.BoxLog) error
	GetBoxLog(ctx context.Context, id string) (*models.BoxLog, error)
	ListBoxLogsForRollback(ctx context.Context, f RollbackFilter) ([]*models.BoxLog, error)
	ClaimBoxLogRollback(ctx context.Context, id string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}
