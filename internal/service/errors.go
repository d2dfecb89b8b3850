package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrMissingProductID = errors.New("product id is required")
)

// InsufficientStockError is an expected, frequent outcome of add/update, not
// a system fault. Reason carries the catalog's human-readable detail.
type InsufficientStockError struct {
	ProductID string
	Reason    string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: %s", e.ProductID, e.Reason)
}
