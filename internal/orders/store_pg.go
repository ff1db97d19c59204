package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopcore/shopd/internal/catalog"
)

// PGStore backs the engine with Postgres. The conditional decrement is a
// single UPDATE guarded by the stock predicate, so the check-and-decrement is
// atomic without holding row locks across items.
type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) FindProductByID(ctx context.Context, id string) (*catalog.Product, error) {
	var p catalog.Product
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, description, price_cents, stock, category, created_at, updated_at
		FROM products WHERE id=$1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Stock,
		&p.Category, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PGStore) ConditionalDecrementStock(ctx context.Context, id string, qty int) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2`, id, qty)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (s *PGStore) IncrementStock(ctx context.Context, id string, qty int) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id=$1`, id, qty)
	return err
}

func (s *PGStore) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, total_cents, created_at)
		VALUES ($1,$2,$3,$4)`,
		o.ID, o.UserID, o.TotalCents, o.CreatedAt)
	if err != nil {
		return err
	}
	for i, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, position, product_id, name, qty, price_cents)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, i, it.ProductID, it.Name, it.Quantity, it.PriceCents)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PGStore) FindOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, user_id, total_cents, created_at
		FROM orders WHERE user_id=$1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	index := map[string]int{}
	ids := []string{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalCents, &o.CreatedAt); err != nil {
			return nil, err
		}
		index[o.ID] = len(out)
		ids = append(ids, o.ID)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	items, err := s.DB.Query(ctx, `
		SELECT order_id, product_id, name, qty, price_cents
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return nil, err
	}
	defer items.Close()

	for items.Next() {
		var orderID string
		var it LineItem
		if err := items.Scan(&orderID, &it.ProductID, &it.Name, &it.Quantity, &it.PriceCents); err != nil {
			return nil, err
		}
		i := index[orderID]
		out[i].Items = append(out[i].Items, it)
	}
	return out, items.Err()
}

func (s *PGStore) FindOrderByID(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := s.DB.QueryRow(ctx, `
		SELECT id, user_id, total_cents, created_at
		FROM orders WHERE id=$1`, id,
	).Scan(&o.ID, &o.UserID, &o.TotalCents, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT product_id, name, qty, price_cents
		FROM order_items WHERE order_id=$1
		ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Quantity, &it.PriceCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}
