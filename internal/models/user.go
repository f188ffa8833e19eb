package models

// User represents a player identity registered with the economy service.
//
// Authentication (tokens, sessions) is handled by the transport layer and is
// deliberately absent here; the ledger only needs users for account ownership
// and for attributing transfers.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Name is the unique display name, at most 32 characters.
	Name string

	// CreatedAt is the Unix timestamp when the user was registered.
	CreatedAt int64

	// Disabled marks the user as soft-deleted.
	Disabled bool
}
