package models

// Currency is a named denomination. Accounts hold exactly one currency and
// transfers are only valid between accounts sharing one.
type Currency struct {
	// ID is the unique identifier for the currency (UUID format).
	ID string

	// Name is the full display name, at most 32 characters, no '$'.
	Name string

	// ShortCode is the abbreviated code, at most 8 characters, no '$'.
	ShortCode string
}
