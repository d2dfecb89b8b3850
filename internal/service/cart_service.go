package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Yousefa7medmaher/cart-service/internal/cache"
	"github.com/Yousefa7medmaher/cart-service/internal/catalog"
	"github.com/Yousefa7medmaher/cart-service/internal/domain"
	"github.com/Yousefa7medmaher/cart-service/internal/repository"
	"golang.org/x/sync/singleflight"
)

// maxSaveAttempts bounds the retry loop around versioned saves. Conflicts
// need two writers racing on one owner's cart, so a couple of retries is
// plenty before giving up.
const maxSaveAttempts = 3

// CartService orchestrates cart use cases. Every mutation follows
// validate-then-commit: nothing is persisted until the stock check for the
// final post-mutation quantity has succeeded. Saves are versioned; on a
// conflict the whole load-validate-apply sequence reruns against the fresh
// cart state.
type CartService struct {
	store   repository.CartStore
	catalog catalog.ProductCatalog
	cache   cache.CartCache
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCartService(store repository.CartStore, productCatalog catalog.ProductCatalog, cartCache cache.CartCache) *CartService {
	return &CartService{
		store:   store,
		catalog: productCatalog,
		cache:   cartCache,
	}
}

// GetOrCreateCart returns the owner's cart, creating an empty one on first
// access. Idempotent: a second call never produces a duplicate.
func (s *CartService) GetOrCreateCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(ownerID, func() (interface{}, error) {
		cached, err := s.cache.Get(ctx, ownerID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, err := s.store.GetOrCreate(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(ctx, ownerID, cart); err != nil {
				log.Printf("cache set error: %v", err)
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem merges quantity units of a product into the owner's cart. The
// stock check runs against the combined quantity: adding 2 on top of an
// existing 3 validates 5 against the catalog, not 2.
func (s *CartService) AddItem(ctx context.Context, ownerID, productID string, quantity int, token string) (*domain.Cart, error) {
	if productID == "" {
		return nil, ErrMissingProductID
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	for attempt := 1; ; attempt++ {
		cart, err := s.store.Find(ctx, ownerID)
		if err != nil {
			if !errors.Is(err, repository.ErrCartNotFound) {
				return nil, err
			}
			cart = domain.NewCart(ownerID) // working copy, persisted only on success
		}

		currentQty := 0
		if i := cart.FindItem(productID); i >= 0 {
			currentQty = cart.Items[i].Quantity
		}
		targetQty := currentQty + quantity

		check, err := s.catalog.CheckStock(ctx, productID, targetQty, token)
		if err != nil {
			return nil, err
		}
		if !check.Available {
			return nil, &InsufficientStockError{ProductID: productID, Reason: check.Reason}
		}

		cart.ApplyAdd(productID, quantity, *check.Snapshot)

		err = s.store.Save(ctx, cart)
		if err == nil {
			s.invalidateCache(ownerID)
			return cart, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= maxSaveAttempts {
			return nil, err
		}
		// A concurrent writer won the save; reread and revalidate against
		// the merged quantity the cart now actually holds.
	}
}

// UpdateItem overwrites a line item's quantity with an absolute value. The
// stock check validates the requested quantity on its own, independent of
// what the cart currently holds.
func (s *CartService) UpdateItem(ctx context.Context, ownerID, productID string, quantity int, token string) (*domain.Cart, error) {
	if productID == "" {
		return nil, ErrMissingProductID
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	check, err := s.catalog.CheckStock(ctx, productID, quantity, token)
	if err != nil {
		return nil, err
	}
	if !check.Available {
		return nil, &InsufficientStockError{ProductID: productID, Reason: check.Reason}
	}

	return s.mutate(ctx, ownerID, func(cart *domain.Cart) error {
		return cart.ApplySetQuantity(productID, quantity, *check.Snapshot)
	})
}

// RemoveItem drops a product from the cart. Removing a product that is not
// in the cart succeeds as a no-op; totals are recomputed either way.
func (s *CartService) RemoveItem(ctx context.Context, ownerID, productID string) (*domain.Cart, error) {
	if productID == "" {
		return nil, ErrMissingProductID
	}

	return s.mutate(ctx, ownerID, func(cart *domain.Cart) error {
		cart.ApplyRemove(productID)
		return nil
	})
}

// ClearCart empties the owner's cart. The cart record is kept; only its
// items go.
func (s *CartService) ClearCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, func(cart *domain.Cart) error {
		cart.Clear()
		return nil
	})
}

// ListAllCarts is an administrative read path.
func (s *CartService) ListAllCarts(ctx context.Context) ([]domain.Cart, error) {
	return s.store.ListAll(ctx)
}

// GetCartForOwner is an administrative read path; it does not create a cart.
func (s *CartService) GetCartForOwner(ctx context.Context, ownerID string) (*domain.Cart, error) {
	return s.store.Find(ctx, ownerID)
}

// mutate runs load-apply-save for an existing cart, rerunning the whole
// sequence when a concurrent writer bumped the version first.
func (s *CartService) mutate(ctx context.Context, ownerID string, apply func(*domain.Cart) error) (*domain.Cart, error) {
	for attempt := 1; ; attempt++ {
		cart, err := s.store.Find(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		if err := apply(cart); err != nil {
			return nil, err
		}

		err = s.store.Save(ctx, cart)
		if err == nil {
			s.invalidateCache(ownerID)
			return cart, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= maxSaveAttempts {
			return nil, err
		}
	}
}

func (s *CartService) invalidateCache(ownerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, ownerID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
