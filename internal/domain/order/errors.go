package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order operations.
var (
	ErrNotFound        = errors.New("order not found")
	ErrItemNotFound    = errors.New("order item not found")
	ErrNotDraft        = errors.New("order is not a draft")
	ErrEmptyItems      = errors.New("order has no items")
	ErrVersionConflict = errors.New("order was modified concurrently")
)

// InvalidQuantityError indicates a line item quantity below one.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1, got %d", e.Quantity)
}

// ValidationError reports a malformed mutation request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
