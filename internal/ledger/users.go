package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platfe/economy/internal/models"
	"github.com/platfe/economy/internal/storage"
)

// Users manages player identities. Authentication lives in the transport
// layer; the ledger only needs users for ownership and attribution.
type Users struct {
	store storage.Store
}

// NewUsers creates a Users service with the given storage backend.
func NewUsers(store storage.Store) *Users {
	return &Users{store: store}
}

// Create registers a new user.
func (u *Users) Create(ctx context.Context, name string) (*models.User, error) {
	if name == "" || len(name) > maxNameLength || strings.Contains(name, reservedDelimiter) {
		return nil, ErrInvalidName
	}

	user := &models.User{Name: name}
	err := u.store.CreateUser(ctx, user)
	if errors.Is(err, storage.ErrNameTaken) {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by ID.
func (u *Users) GetByID(ctx context.Context, id string) (*models.User, error) {
	return u.store.GetUserByID(ctx, id)
}

// GetByName retrieves a user by display name.
func (u *Users) GetByName(ctx context.Context, name string) (*models.User, error) {
	return u.store.GetUserByName(ctx, name)
}
