package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Yousefa7medmaher/cart-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrVersionConflict = errors.New("cart was modified concurrently")
)

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection("carts"),
	}
}

func (m *MongoStore) Find(ctx context.Context, ownerID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"owner_id": ownerID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}

	return &cart, nil
}

// GetOrCreate returns the owner's cart, inserting an empty one if none
// exists. The upsert plus the unique index on owner_id makes first-time
// access race-free: two concurrent calls resolve to the same document.
func (m *MongoStore) GetOrCreate(ctx context.Context, ownerID string) (*domain.Cart, error) {
	now := time.Now()

	filter := bson.M{"owner_id": ownerID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"owner_id":     ownerID,
			"items":        []domain.CartItem{},
			"version":      int64(0),
			"total_items":  0,
			"total_amount": 0.0,
			"created_at":   now,
			"updated_at":   now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var cart domain.Cart
	if err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&cart); err != nil {
		return nil, fmt.Errorf("failed to get or create cart: %w", err)
	}

	return &cart, nil
}

// Save writes the cart back as one document, but only if its stored version
// still matches the version this copy was loaded at. A concurrent writer
// bumps the version first and the stale save reports ErrVersionConflict
// instead of silently overwriting. Version 0 means a brand-new cart and is
// allowed to insert.
func (m *MongoStore) Save(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	filter := bson.M{"owner_id": cart.OwnerID, "version": cart.Version}
	update := bson.M{
		"$set": bson.M{
			"items":        cart.Items,
			"total_items":  cart.TotalItems,
			"total_amount": cart.TotalAmount,
			"created_at":   cart.CreatedAt,
			"updated_at":   cart.UpdatedAt,
		},
		"$inc": bson.M{"version": int64(1)},
	}
	opts := options.Update().SetUpsert(cart.Version == 0)

	res, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		// An upsert losing the unique-index race on owner_id means the cart
		// was created (or rewritten) underneath us.
		if mongo.IsDuplicateKeyError(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to save cart: %w", err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrVersionConflict
	}

	cart.Version++
	return nil
}

func (m *MongoStore) ListAll(ctx context.Context) ([]domain.Cart, error) {
	cursor, err := m.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list carts: %w", err)
	}
	defer cursor.Close(ctx)

	var carts []domain.Cart
	if err := cursor.All(ctx, &carts); err != nil {
		return nil, fmt.Errorf("failed to decode carts: %w", err)
	}

	return carts, nil
}

// CreateIndexes enforces one cart per owner at the store layer and expires
// carts idle for 90 days.
func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
