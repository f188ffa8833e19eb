package ledger

import "fmt"

// Code is a small integer status identifying exactly one failure mode.
// Transfer and pay codes keep the wire values the game clients already map
// to display text; creation codes live in their own range below -10.
type Code int

const (
	CodeAmountNotPositive       Code = -1
	CodeInsufficientFunds       Code = -2
	CodeCurrencyMismatch        Code = -3
	CodeSourceBlocked           Code = -4
	CodeLedgerWriteFailed       Code = -5
	CodeActorNotOwner           Code = -6
	CodeSourceEqualsDestination Code = -7

	CodeInvalidName         Code = -10
	CodeDuplicateName       Code = -11
	CodePayloadTooLarge     Code = -12
	CodeCoordinateCollision Code = -13
	CodeOwnershipLinkFailed Code = -14
)

// Error is a ledger status. Callers translate Code into user-facing message
// text; the ledger never owns display strings and never degrades one status
// into another.
type Error struct {
	Code   Code
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger: %s (status %d)", e.Reason, e.Code)
}

// Sentinel statuses, compared with errors.Is.
var (
	ErrAmountNotPositive       = &Error{CodeAmountNotPositive, "amount must be positive"}
	ErrInsufficientFunds       = &Error{CodeInsufficientFunds, "insufficient funds"}
	ErrCurrencyMismatch        = &Error{CodeCurrencyMismatch, "accounts hold different currencies"}
	ErrSourceBlocked           = &Error{CodeSourceBlocked, "source account is blocked"}
	ErrLedgerWriteFailed       = &Error{CodeLedgerWriteFailed, "audit record write failed"}
	ErrActorNotOwner           = &Error{CodeActorNotOwner, "acting user does not own the source account"}
	ErrSourceEqualsDestination = &Error{CodeSourceEqualsDestination, "source and destination are the same account"}

	ErrInvalidName         = &Error{CodeInvalidName, "name is empty, too long, or contains '$'"}
	ErrDuplicateName       = &Error{CodeDuplicateName, "name already taken"}
	ErrPayloadTooLarge     = &Error{CodePayloadTooLarge, "item id or tag exceeds length limit"}
	ErrCoordinateCollision = &Error{CodeCoordinateCollision, "a box already exists at these coordinates"}
	ErrOwnershipLinkFailed = &Error{CodeOwnershipLinkFailed, "ownership link failed, creation rolled back"}
)
