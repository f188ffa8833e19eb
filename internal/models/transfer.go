package models

// TransferRecord is the append-only audit entry for one balance movement.
// A record is immutable except for the one-time IsRollback flip.
type TransferRecord struct {
	// ID is the unique identifier for the record (UUID format).
	ID string

	// Timestamp is the Unix timestamp when the transfer happened.
	Timestamp int64

	// ActorUserID is the user who initiated the transfer. Empty for
	// system-issued transfers (duty settlement, compensations).
	ActorUserID string

	// SourceAccountID is the account debited.
	SourceAccountID string

	// DestAccountID is the account credited.
	DestAccountID string

	// Amount is the positive amount moved.
	Amount int64

	// IsRollback is set exactly once when the record has been compensated.
	IsRollback bool
}
