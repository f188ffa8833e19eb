package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/platfe/economy/internal/models"
	"github.com/platfe/economy/internal/storage"
)

const maxShortCodeLength = 8

// Currencies manages the currency registry.
type Currencies struct {
	store storage.Store
}

// NewCurrencies creates a Currencies service with the given storage backend.
func NewCurrencies(store storage.Store) *Currencies {
	return &Currencies{store: store}
}

// Create registers a new currency. Names and short codes must not contain
// the reserved delimiter and are length-limited.
func (c *Currencies) Create(ctx context.Context, name, shortCode string) (*models.Currency, error) {
	if name == "" || len(name) > maxNameLength || strings.Contains(name, reservedDelimiter) {
		return nil, ErrInvalidName
	}
	if shortCode == "" || len(shortCode) > maxShortCodeLength || strings.Contains(shortCode, reservedDelimiter) {
		return nil, ErrInvalidName
	}

	cur := &models.Currency{Name: name, ShortCode: shortCode}
	err := c.store.CreateCurrency(ctx, cur)
	if errors.Is(err, storage.ErrNameTaken) {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, fmt.Errorf("create currency: %w", err)
	}

	slog.Info("currency created", "currency_id", cur.ID, "name", name, "short_code", shortCode)
	return cur, nil
}

// GetAll lists every currency.
func (c *Currencies) GetAll(ctx context.Context) ([]*models.Currency, error) {
	return c.store.ListCurrencies(ctx)
}

// GetByID retrieves a currency by ID.
func (c *Currencies) GetByID(ctx context.Context, id string) (*models.Currency, error) {
	return c.store.GetCurrency(ctx, id)
}
