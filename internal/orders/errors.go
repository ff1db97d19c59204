package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest covers an empty item list or a non-positive quantity.
	ErrInvalidRequest = errors.New("please add at least one product to the order")

	// ErrNotFound is an order lookup miss.
	ErrNotFound = errors.New("order not found")

	// ErrForbidden is returned when the caller is neither owner nor admin.
	ErrForbidden = errors.New("not authorized to access this order")
)

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with ID %s not found", e.ProductID)
}

type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available=%d requested=%d",
		e.ProductID, e.Available, e.Requested)
}
