package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/shopd/internal/auth"
	"github.com/shopcore/shopd/internal/catalog"
	"go.uber.org/zap"
)

// Engine runs the order-creation transaction: validate the requested items
// against live inventory, reserve stock atomically per product, snapshot
// prices, and persist an immutable order. A failure on any item compensates
// every reservation already applied in the same call.
type Engine struct {
	Store Store
}

type reservation struct {
	productID string
	qty       int
}

func (e *Engine) CreateOrder(ctx context.Context, userID string, items []ItemInput) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrInvalidRequest
	}
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 {
			return nil, ErrInvalidRequest
		}
	}

	var (
		applied []reservation
		lines   = make([]LineItem, 0, len(items))
		total   int
	)

	for _, it := range items {
		p, err := e.Store.FindProductByID(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				err = &ProductNotFoundError{ProductID: it.ProductID}
			}
			e.rollback(ctx, applied)
			return nil, err
		}

		ok, err := e.Store.ConditionalDecrementStock(ctx, it.ProductID, it.Quantity)
		if err != nil {
			e.rollback(ctx, applied)
			return nil, err
		}
		if !ok {
			e.rollback(ctx, applied)
			return nil, &InsufficientStockError{
				ProductID: it.ProductID,
				Available: p.Stock,
				Requested: it.Quantity,
			}
		}
		applied = append(applied, reservation{productID: it.ProductID, qty: it.Quantity})

		lines = append(lines, LineItem{
			ProductID:  p.ID,
			Name:       p.Name,
			Quantity:   it.Quantity,
			PriceCents: p.PriceCents,
		})
		total += p.PriceCents * it.Quantity
	}

	o := &Order{
		ID:         uuid.NewString(),
		UserID:     userID,
		Items:      lines,
		TotalCents: total,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.Store.CreateOrder(ctx, o); err != nil {
		e.rollback(ctx, applied)
		return nil, err
	}
	return o, nil
}

// rollback compensates already-applied reservations, newest first. Errors are
// logged rather than returned: the original failure is the one the caller
// needs to see.
func (e *Engine) rollback(ctx context.Context, applied []reservation) {
	for i := len(applied) - 1; i >= 0; i-- {
		r := applied[i]
		if err := e.Store.IncrementStock(ctx, r.productID, r.qty); err != nil {
			zap.L().Error("reservation rollback failed",
				zap.String("product_id", r.productID),
				zap.Int("qty", r.qty),
				zap.Error(err))
		}
	}
}

// GetOrders lists the user's orders newest first. An empty result is not an
// error.
func (e *Engine) GetOrders(ctx context.Context, userID string) ([]Order, error) {
	return e.Store.FindOrdersByUser(ctx, userID)
}

// GetOrderByID enforces ownership: only the owner or an admin may read an
// order.
func (e *Engine) GetOrderByID(ctx context.Context, orderID, userID, role string) (*Order, error) {
	o, err := e.Store.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID && role != auth.RoleAdmin {
		return nil, ErrForbidden
	}
	return o, nil
}
