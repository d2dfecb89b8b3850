package repository

import (
	"context"

	"github.com/Yousefa7medmaher/cart-service/internal/domain"
)

// CartStore defines the persistence contract for carts, keyed by owner.
// Consumers define this interface, not the MongoDB implementation.
type CartStore interface {
	Find(ctx context.Context, ownerID string) (*domain.Cart, error)
	GetOrCreate(ctx context.Context, ownerID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	ListAll(ctx context.Context) ([]domain.Cart, error)
}
