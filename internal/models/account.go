package models

// Account is a named balance holder in one currency, owned by one or more
// users through the account_owners bridge.
type Account struct {
	// ID is the unique identifier for the account (UUID format).
	ID string

	// Name is the unique display name, at most 32 characters and must not
	// contain the reserved delimiter '$'.
	Name string

	// CurrencyID references the currency this account is denominated in.
	CurrencyID string

	// Balance is the current integer balance. It can only go negative
	// transiently during settlement or rollback, after which the account
	// is blocked.
	Balance int64

	// Blocked prevents outgoing payments. Blocked accounts can still
	// receive funds.
	Blocked bool

	// Disabled marks the account as soft-deleted. Disabled accounts are
	// hidden from normal lookups but remain reachable for settlement and
	// rollback.
	Disabled bool

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64
}
