package orders

import (
	"context"

	"github.com/shopcore/shopd/internal/catalog"
)

// Store is the persistence contract the transaction engine runs against.
//
// ConditionalDecrementStock is the load-bearing operation: the check and the
// decrement must be applied as one indivisible update so that concurrent
// reservations can never drive stock negative.
type Store interface {
	// FindProductByID returns catalog.ErrNotFound on a miss.
	FindProductByID(ctx context.Context, id string) (*catalog.Product, error)

	// ConditionalDecrementStock applies "stock -= qty if stock >= qty"
	// atomically and reports whether it took effect.
	ConditionalDecrementStock(ctx context.Context, id string, qty int) (bool, error)

	// IncrementStock restores stock; used only to compensate a failed
	// multi-item reservation.
	IncrementStock(ctx context.Context, id string, qty int) error

	CreateOrder(ctx context.Context, o *Order) error

	// FindOrdersByUser returns the user's orders newest first.
	FindOrdersByUser(ctx context.Context, userID string) ([]Order, error)

	// FindOrderByID returns ErrNotFound on a miss.
	FindOrderByID(ctx context.Context, id string) (*Order, error)
}
