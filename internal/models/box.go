package models

import "time"

// SharedBox is a rentable storage/trade point placed at a world coordinate.
// It is a DutyContract fused with a point-of-sale record: the embedded duty
// fields (LastSettlement, Period, TaxAmount) follow the exact settlement
// algorithm of DutyContract, keyed by box.
type SharedBox struct {
	// ID is the unique identifier for the box (UUID format).
	ID string

	// CreatedAt is the Unix timestamp when the box was registered.
	CreatedAt int64

	// World names the world the box lives in. World plus X/Y/Z is unique
	// among non-disabled boxes.
	World string
	X     int
	Y     int
	Z     int

	// LastSettlement is the Unix timestamp of the last settled period
	// boundary for the embedded duty.
	LastSettlement int64

	// PayerAccountID pays the periodic rent.
	PayerAccountID string

	// OwnerAccountID receives the rent and the proceeds of trades.
	OwnerAccountID string

	// Period is the rent billing period.
	Period time.Duration

	// TaxAmount is the rent per period.
	TaxAmount int64

	// ItemID identifies the traded item, at most 256 characters.
	ItemID string

	// ItemTag carries the item payload, at most 2048 characters.
	ItemTag string

	// Stock is the current item count held by the box.
	Stock int64

	// BuyPrice is the unit price players pay to buy from the box.
	// Nil when the box does not sell.
	BuyPrice *int64

	// SellPrice is the unit price the box pays players who sell to it.
	// Nil when the box does not buy.
	SellPrice *int64

	// Blocked is set when the payer could not cover an overdue rent period.
	Blocked bool

	// Disabled marks the box as removed.
	Disabled bool
}

// BoxLog links a commercial trade on a box to the underlying transfer so
// rollback can find and reverse box-triggered movements before plain ones.
type BoxLog struct {
	// ID is the unique identifier for the log entry (UUID format).
	ID string

	// TransferID references the TransferRecord the trade caused.
	TransferID string

	// BoxID references the box the trade happened on.
	BoxID string

	// Quantity is the number of items traded.
	Quantity int64

	// UnitPrice is the per-item price of the trade.
	UnitPrice int64

	// IsRollback is set exactly once when the trade has been compensated.
	IsRollback bool
}
