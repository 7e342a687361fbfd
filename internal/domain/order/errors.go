package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// ErrEmptyItems is returned when an order request has no items.
var ErrEmptyItems = errors.New("items required")

// ProductNotFoundError indicates requested SKUs that the catalog could not resolve.
type ProductNotFoundError struct {
	SKUs []string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("products not found: %s", strings.Join(e.SKUs, ", "))
}

// InvalidQuantityError indicates a line item quantity outside [1, MaxQuantity].
type InvalidQuantityError struct {
	SKU      string
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be between 1 and %d for product %s, got %d", MaxQuantity, e.SKU, e.Quantity)
}

// PersistenceError indicates the atomic order save failed. Nothing was written.
type PersistenceError struct {
	OrderID string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save order %s: %v", e.OrderID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
