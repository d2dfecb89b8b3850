package domain

import (
	"errors"
	"time"
)

var ErrItemNotFound = errors.New("item not found in cart")

// Cart holds pre-checkout state for a single owner. Totals are derived from
// Items and must only be written by RecomputeTotals.
type Cart struct {
	ID          string     `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID     string     `bson:"owner_id" json:"ownerId"`
	Items       []CartItem `bson:"items" json:"items"`
	TotalItems  int        `bson:"total_items" json:"totalItems"`
	TotalAmount float64    `bson:"total_amount" json:"totalAmount"`
	// Version guards saves: a write only lands if the stored version still
	// matches the one this copy was loaded at.
	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

type CartItem struct {
	ProductID   string    `bson:"product_id" json:"productId"`
	Quantity    int       `bson:"quantity" json:"quantity"`
	UnitPrice   float64   `bson:"unit_price" json:"unitPrice"`
	DisplayName string    `bson:"display_name" json:"displayName"`
	ImageRef    string    `bson:"image_ref,omitempty" json:"imageRef,omitempty"`
	AddedAt     time.Time `bson:"added_at" json:"addedAt"`
}

// ProductSnapshot is the canonical product record as reported by the catalog
// at the moment of a stock-sensitive operation. It is never cached or mutated.
type ProductSnapshot struct {
	ProductID   string  `json:"productId"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	DisplayName string  `json:"displayName"`
	ImageRef    string  `json:"imageRef,omitempty"`
}

// StockCheckResult reports whether the catalog can cover a requested quantity.
type StockCheckResult struct {
	Available bool
	Snapshot  *ProductSnapshot
	Reason    string
}

func NewCart(ownerID string) *Cart {
	now := time.Now()
	return &Cart{
		OwnerID:   ownerID,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FindItem returns the index of the line item for productID, or -1.
func (c *Cart) FindItem(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// ApplyAdd merges delta units of a product into the cart. An existing line
// item keeps its position and gains quantity; the unit price is always
// re-synced to the latest snapshot, never frozen at add time.
func (c *Cart) ApplyAdd(productID string, delta int, snap ProductSnapshot) {
	if i := c.FindItem(productID); i >= 0 {
		c.Items[i].Quantity += delta
		c.Items[i].UnitPrice = snap.Price
	} else {
		c.Items = append(c.Items, CartItem{
			ProductID:   productID,
			Quantity:    delta,
			UnitPrice:   snap.Price,
			DisplayName: snap.DisplayName,
			ImageRef:    snap.ImageRef,
			AddedAt:     time.Now(),
		})
	}
	c.RecomputeTotals()
}

// ApplySetQuantity overwrites the quantity of an existing line item with an
// absolute value and re-syncs its unit price.
func (c *Cart) ApplySetQuantity(productID string, quantity int, snap ProductSnapshot) error {
	i := c.FindItem(productID)
	if i < 0 {
		c.RecomputeTotals()
		return ErrItemNotFound
	}
	c.Items[i].Quantity = quantity
	c.Items[i].UnitPrice = snap.Price
	c.RecomputeTotals()
	return nil
}

// ApplyRemove drops the line item for productID. Removing an absent product
// is a no-op, not an error. Reports whether an item was removed.
func (c *Cart) ApplyRemove(productID string) bool {
	i := c.FindItem(productID)
	if i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}
	c.RecomputeTotals()
	return i >= 0
}

// Clear empties the cart. The cart record itself survives.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.RecomputeTotals()
}

// RecomputeTotals rebuilds TotalItems and TotalAmount from Items. Every
// mutation ends here so the totals can never drift from the line items.
func (c *Cart) RecomputeTotals() {
	totalItems := 0
	totalAmount := 0.0
	for _, item := range c.Items {
		totalItems += item.Quantity
		totalAmount += float64(item.Quantity) * item.UnitPrice
	}
	c.TotalItems = totalItems
	c.TotalAmount = totalAmount
}
