package repository

import (
	"context"
	"testing"

	"github.com/Yousefa7medmaher/cart-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) (*MongoStore, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	store := NewMongoStore(db)
	err = store.CreateIndexes(ctx)
	require.NoError(t, err)

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return store, cleanup
}

func sampleCart(ownerID string) *domain.Cart {
	cart := domain.NewCart(ownerID)
	cart.ApplyAdd("p1", 2, domain.ProductSnapshot{ProductID: "p1", Price: 9.99, Stock: 10, DisplayName: "Widget"})
	return cart
}

func TestFind_NotFound(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	cart, err := store.Find(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestSaveAndFind(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cart := sampleCart("user123")
	require.NoError(t, store.Save(ctx, cart))

	got, err := store.Find(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, "user123", got.OwnerID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "p1", got.Items[0].ProductID)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, 9.99, got.Items[0].UnitPrice)
	assert.Equal(t, 2, got.TotalItems)
	assert.InDelta(t, 19.98, got.TotalAmount, 1e-9)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSave_OverwritesByOwner(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cart := sampleCart("user123")
	require.NoError(t, store.Save(ctx, cart))

	cart.ApplyAdd("p2", 1, domain.ProductSnapshot{ProductID: "p2", Price: 5, Stock: 3, DisplayName: "Gadget"})
	require.NoError(t, store.Save(ctx, cart))

	got, err := store.Find(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, 3, got.TotalItems)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSave_StaleVersionConflicts(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleCart("user123")))

	// Two copies loaded at the same version.
	first, err := store.Find(ctx, "user123")
	require.NoError(t, err)
	second, err := store.Find(ctx, "user123")
	require.NoError(t, err)

	first.ApplyAdd("p2", 1, domain.ProductSnapshot{ProductID: "p2", Price: 5, Stock: 3})
	require.NoError(t, store.Save(ctx, first))

	// The slower writer must not overwrite the faster one.
	second.ApplyAdd("p3", 1, domain.ProductSnapshot{ProductID: "p3", Price: 1, Stock: 3})
	err = store.Save(ctx, second)
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, err := store.Find(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, int64(2), got.Version)
}

func TestSave_NewCartStartsVersioned(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cart := sampleCart("user123")
	require.NoError(t, store.Save(ctx, cart))
	assert.Equal(t, int64(1), cart.Version)

	got, err := store.Find(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)

	// Saving the freshly loaded copy succeeds and bumps again.
	require.NoError(t, store.Save(ctx, got))
	assert.Equal(t, int64(2), got.Version)
}

func TestGetOrCreate_CreatesEmptyCart(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cart, err := store.GetOrCreate(ctx, "newuser")

	require.NoError(t, err)
	assert.Equal(t, "newuser", cart.OwnerID)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, cart.TotalItems)
	assert.Equal(t, 0.0, cart.TotalAmount)
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "user123")
	require.NoError(t, err)

	second, err := store.GetOrCreate(ctx, "user123")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetOrCreate_KeepsExistingItems(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleCart("user123")))

	cart, err := store.GetOrCreate(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.TotalItems)
}

func TestListAll(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleCart("user1")))
	require.NoError(t, store.Save(ctx, sampleCart("user2")))
	require.NoError(t, store.Save(ctx, sampleCart("user3")))

	carts, err := store.ListAll(ctx)

	require.NoError(t, err)
	assert.Len(t, carts, 3)
}
