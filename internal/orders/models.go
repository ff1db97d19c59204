package orders

import "time"

// ItemInput is one requested line of a create-order call, in caller order.
type ItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// LineItem is the frozen snapshot embedded in an order. Name and PriceCents
// are copied from the product at reservation time and never follow later
// catalog edits.
type LineItem struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int    `json:"price_cents"`
}

// Order is immutable once persisted.
type Order struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Items      []LineItem `json:"products"`
	TotalCents int        `json:"total_cents"`
	CreatedAt  time.Time  `json:"date"`
}
