package models

import "time"

// DutyContract is a standing obligation: the payer account owes the owner
// account TaxAmount every Period. A contract with no payer assigned owes
// nothing and is trivially current.
type DutyContract struct {
	// ID is the unique identifier for the contract (UUID format).
	ID string

	// CreatedAt is the Unix timestamp when the contract was created.
	CreatedAt int64

	// LastSettlement is the Unix timestamp of the last fully settled
	// period boundary. Settlement advances it by whole periods only.
	LastSettlement int64

	// PayerAccountID is the paying account. Empty until assigned.
	PayerAccountID string

	// OwnerAccountID is the account receiving the tax.
	OwnerAccountID string

	// Period is the billing period.
	Period time.Duration

	// TaxAmount is the amount owed per period, never negative.
	TaxAmount int64

	// Blocked is set when the payer could not cover an overdue period.
	Blocked bool

	// Disabled is set when the payer or owner account can no longer be
	// resolved.
	Disabled bool
}
