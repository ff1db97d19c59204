package orders

import (
	"context"
	"sort"
	"sync"

	"github.com/shopcore/shopd/internal/catalog"
)

// MemStore is a mutex-guarded in-memory Store. It is the reference semantics
// for the engine and what the handler and engine tests run against.
type MemStore struct {
	mu       sync.Mutex
	products map[string]catalog.Product
	orders   map[string]Order
}

func NewMemStore() *MemStore {
	return &MemStore{
		products: make(map[string]catalog.Product),
		orders:   make(map[string]Order),
	}
}

// PutProduct inserts or replaces a product.
func (s *MemStore) PutProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// Stock reports current stock for a product, -1 if absent.
func (s *MemStore) Stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return -1
	}
	return p.Stock
}

func (s *MemStore) FindProductByID(ctx context.Context, id string) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (s *MemStore) ConditionalDecrementStock(ctx context.Context, id string, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	s.products[id] = p
	return true, nil
}

func (s *MemStore) IncrementStock(ctx context.Context, id string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil
	}
	p.Stock += qty
	s.products[id] = p
	return nil
}

func (s *MemStore) CreateOrder(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	cp.Items = append([]LineItem(nil), o.Items...)
	s.orders[o.ID] = cp
	return nil
}

func (s *MemStore) FindOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) FindOrderByID(ctx context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	return &cp, nil
}
