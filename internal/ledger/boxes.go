package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/platfe/economy/internal/models"
	"github.com/platfe/economy/internal/storage"
)

const (
	maxItemIDLength  = 256
	maxItemTagLength = 2048
)

// Boxes is the shared-box registry: rentable trade points that carry an
// embedded duty settled by the settlement engine.
type Boxes struct {
	store    storage.Store
	accounts *Accounts
}

// NewBoxes creates a Boxes service with the given storage backend.
func NewBoxes(store storage.Store, accounts *Accounts) *Boxes {
	return &Boxes{store: store, accounts: accounts}
}

// BoxParams carries everything needed to register a shared box.
type BoxParams struct {
	World          string
	X, Y, Z        int
	PayerAccountID string
	OwnerAccountID string
	ItemID         string
	ItemTag        string
	Stock          int64
	BuyPrice       *int64
	SellPrice      *int64
	Period         time.Duration
	TaxAmount      int64
}

// Create registers a new shared box. The world point must be free of any
// live box and the item payload is length-limited.
func (b *Boxes) Create(ctx context.Context, p BoxParams) (*models.SharedBox, error) {
	if len(p.ItemID) > maxItemIDLength || len(p.ItemTag) > maxItemTagLength {
		return nil, ErrPayloadTooLarge
	}

	existing, err := b.store.GetBoxByCoordinates(ctx, p.World, p.X, p.Y, p.Z)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrCoordinateCollision
	}

	box := &models.SharedBox{
		World:          p.World,
		X:              p.X,
		Y:              p.Y,
		Z:              p.Z,
		PayerAccountID: p.PayerAccountID,
		OwnerAccountID: p.OwnerAccountID,
		ItemID:         p.ItemID,
		ItemTag:        p.ItemTag,
		Stock:          p.Stock,
		BuyPrice:       p.BuyPrice,
		SellPrice:      p.SellPrice,
		Period:         p.Period,
		TaxAmount:      p.TaxAmount,
	}
	if err := b.store.CreateBox(ctx, box); err != nil {
		return nil, fmt.Errorf("create box: %w", err)
	}

	slog.Info("box registered",
		"box_id", box.ID,
		"world", p.World, "x", p.X, "y", p.Y, "z", p.Z,
		"item", p.ItemID,
	)
	return box, nil
}

// GetByID retrieves a box by ID.
func (b *Boxes) GetByID(ctx context.Context, id string) (*models.SharedBox, error) {
	return b.store.GetBox(ctx, id)
}

// GetByCoordinates retrieves the live box at a world point.
func (b *Boxes) GetByCoordinates(ctx context.Context, world string, x, y, z int) (*models.SharedBox, error) {
	return b.store.GetBoxByCoordinates(ctx, world, x, y, z)
}

// GetAllNotBlocked lists every box eligible for settlement.
func (b *Boxes) GetAllNotBlocked(ctx context.Context) ([]*models.SharedBox, error) {
	return b.store.ListBoxesNotBlocked(ctx)
}

// GetAllForAccount lists every live box paid for by an account.
func (b *Boxes) GetAllForAccount(ctx context.Context, payerAccountID string) ([]*models.SharedBox, error) {
	return b.store.ListBoxesForAccount(ctx, payerAccountID)
}

// Buy trades qty items out of the box: the buyer pays the box owner
// qty * BuyPrice through the guarded pay path, the trade is linked to the
// resulting transfer record through a box log, and the stock drops.
func (b *Boxes) Buy(ctx context.Context, boxID, buyerAccountID, actorUserID string, qty int64) (string, error) {
	box, err := b.tradableBox(ctx, boxID, qty)
	if err != nil {
		return "", err
	}
	if box.BuyPrice == nil {
		return "", fmt.Errorf("box %s does not sell", boxID)
	}
	if box.Stock < qty {
		return "", fmt.Errorf("box %s has only %d in stock", boxID, box.Stock)
	}

	recordID, err := b.accounts.Pay(ctx, buyerAccountID, actorUserID, box.OwnerAccountID, qty**box.BuyPrice)
	if err != nil {
		return "", err
	}

	return recordID, b.logTrade(ctx, box, recordID, qty, *box.BuyPrice, -qty)
}

// Sell trades qty items into the box: the box owner account pays the seller
// qty * SellPrice as a system transfer (the box side needs no acting user),
// guarded by the owner's balance, and the stock grows.
func (b *Boxes) Sell(ctx context.Context, boxID, sellerAccountID string, qty int64) (string, error) {
	box, err := b.tradableBox(ctx, boxID, qty)
	if err != nil {
		return "", err
	}
	if box.SellPrice == nil {
		return "", fmt.Errorf("box %s does not buy", boxID)
	}

	amount := qty * *box.SellPrice
	owner, err := b.store.GetAccount(ctx, box.OwnerAccountID)
	if err != nil {
		return "", err
	}
	if owner == nil {
		return "", fmt.Errorf("box owner account not found")
	}
	if owner.Balance-amount < 0 {
		return "", ErrInsufficientFunds
	}

	recordID, err := b.accounts.SystemTransfer(ctx, box.OwnerAccountID, sellerAccountID, amount)
	if err != nil {
		return "", err
	}

	return recordID, b.logTrade(ctx, box, recordID, qty, *box.SellPrice, qty)
}

func (b *Boxes) tradableBox(ctx context.Context, boxID string, qty int64) (*models.SharedBox, error) {
	if qty <= 0 {
		return nil, ErrAmountNotPositive
	}

	box, err := b.store.GetBox(ctx, boxID)
	if err != nil {
		return nil, err
	}
	if box == nil || box.Disabled {
		return nil, fmt.Errorf("box not found: %s", boxID)
	}
	if box.Blocked {
		return nil, fmt.Errorf("box is blocked: %s", boxID)
	}

	return box, nil
}

func (b *Boxes) logTrade(ctx context.Context, box *models.SharedBox, recordID string, qty, unitPrice, stockDelta int64) error {
	boxLog := &models.BoxLog{
		TransferID: recordID,
		BoxID:      box.ID,
		Quantity:   qty,
		UnitPrice:  unitPrice,
	}
	if err := b.store.AppendBoxLog(ctx, boxLog); err != nil {
		// The transfer already committed; surface the same investigate-
		// don't-retry status the plain ledger uses for a lost audit row.
		slog.Error("box log append failed after trade transfer",
			"box_id", box.ID, "record_id", recordID, "error", err)
		return ErrLedgerWriteFailed
	}

	if err := b.store.AdjustBoxStock(ctx, box.ID, stockDelta); err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}

	slog.Info("box trade recorded",
		"box_id", box.ID, "record_id", recordID, "qty", qty, "unit_price", unitPrice)
	return nil
}
