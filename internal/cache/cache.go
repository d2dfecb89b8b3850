package cache

import (
	"context"
	"errors"

	"github.com/Yousefa7medmaher/cart-service/internal/domain"
)

// CartCache holds read copies of carts. Stock levels are never cached; only
// the cart document itself, which this service owns.
type CartCache interface {
	Get(ctx context.Context, ownerID string) (*domain.Cart, error)
	Set(ctx context.Context, ownerID string, cart *domain.Cart) error
	Delete(ctx context.Context, ownerID string) error
}

var ErrCacheMiss = errors.New("cache miss")
