package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopcore/shopd/internal/auth"
	"github.com/shopcore/shopd/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T, products ...catalog.Product) *MemStore {
	t.Helper()
	s := NewMemStore()
	for _, p := range products {
		s.PutProduct(p)
	}
	return s
}

func TestCreateOrder_SingleItem(t *testing.T) {
	s := seededStore(t, catalog.Product{ID: "p1", Name: "Widget", PriceCents: 1000, Stock: 5})
	e := &Engine{Store: s}

	o, err := e.CreateOrder(context.Background(), "u1", []ItemInput{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)

	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, 2000, o.TotalCents)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Widget", o.Items[0].Name)
	assert.Equal(t, 1000, o.Items[0].PriceCents)
	assert.Equal(t, 3, s.Stock("p1"))
	assert.NotEmpty(t, o.ID)
	assert.False(t, o.CreatedAt.IsZero())
}

func TestCreateOrder_InvalidRequest(t *testing.T) {
	e := &Engine{Store: seededStore(t, catalog.Product{ID: "p1", Stock: 5})}

	cases := []struct {
		name  string
		items []ItemInput
	}{
		{"empty list", nil},
		{"zero quantity", []ItemInput{{ProductID: "p1", Quantity: 0}}},
		{"negative quantity", []ItemInput{{ProductID: "p1", Quantity: -1}}},
		{"missing product id", []ItemInput{{Quantity: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.CreateOrder(context.Background(), "u1", tc.items)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestCreateOrder_ProductNotFound_RollsBackEarlierItems(t *testing.T) {
	s := seededStore(t, catalog.Product{ID: "p1", Name: "Widget", PriceCents: 1000, Stock: 5})
	e := &Engine{Store: s}

	_, err := e.CreateOrder(context.Background(), "u1", []ItemInput{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "ghost", Quantity: 1},
	})

	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.ProductID)

	// p1's reservation must have been compensated
	assert.Equal(t, 5, s.Stock("p1"))

	list, err := s.FindOrdersByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, list, "no partial order may be persisted")
}

func TestCreateOrder_InsufficientStock_RollsBackEarlierItems(t *testing.T) {
	s := seededStore(t,
		catalog.Product{ID: "p1", Name: "Widget", PriceCents: 1000, Stock: 5},
		catalog.Product{ID: "p2", Name: "Gadget", PriceCents: 500, Stock: 1},
	)
	e := &Engine{Store: s}

	_, err := e.CreateOrder(context.Background(), "u1", []ItemInput{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p2", Quantity: 2},
	})

	var noStock *InsufficientStockError
	require.ErrorAs(t, err, &noStock)
	assert.Equal(t, "p2", noStock.ProductID)
	assert.Equal(t, 1, noStock.Available)
	assert.Equal(t, 2, noStock.Requested)

	assert.Equal(t, 5, s.Stock("p1"))
	assert.Equal(t, 1, s.Stock("p2"))
}

func TestCreateOrder_PriceSnapshotFrozen(t *testing.T) {
	s := seededStore(t,
		catalog.Product{ID: "p1", Name: "Widget", PriceCents: 1000, Stock: 10},
		catalog.Product{ID: "p2", Name: "Gadget", PriceCents: 500, Stock: 10},
	)
	e := &Engine{Store: s}

	o, err := e.CreateOrder(context.Background(), "u1", []ItemInput{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2500, o.TotalCents)

	// catalog price edit after checkout must not touch the order
	s.PutProduct(catalog.Product{ID: "p1", Name: "Widget", PriceCents: 9999, Stock: 8})

	got, err := s.FindOrderByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000, got.Items[0].PriceCents)
	assert.Equal(t, 500, got.Items[1].PriceCents)
	assert.Equal(t, 2500, got.TotalCents)
}

func TestCreateOrder_TotalMatchesLineItems(t *testing.T) {
	s := seededStore(t,
		catalog.Product{ID: "p1", PriceCents: 333, Stock: 100},
		catalog.Product{ID: "p2", PriceCents: 1099, Stock: 100},
		catalog.Product{ID: "p3", PriceCents: 5, Stock: 100},
	)
	e := &Engine{Store: s}

	o, err := e.CreateOrder(context.Background(), "u1", []ItemInput{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p3", Quantity: 20},
	})
	require.NoError(t, err)

	sum := 0
	for _, it := range o.Items {
		sum += it.PriceCents * it.Quantity
	}
	assert.Equal(t, sum, o.TotalCents)
}

func TestCreateOrder_ConcurrentOverlap_ExactlyOneWins(t *testing.T) {
	s := seededStore(t, catalog.Product{ID: "p1", Name: "Widget", PriceCents: 100, Stock: 5})
	e := &Engine{Store: s}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.CreateOrder(context.Background(), fmt.Sprintf("u%d", i),
				[]ItemInput{{ProductID: "p1", Quantity: 3}})
		}(i)
	}
	wg.Wait()

	var ok, failed int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var noStock *InsufficientStockError
		require.ErrorAs(t, err, &noStock)
		failed++
	}
	assert.Equal(t, 1, ok, "exactly one of two overlapping reservations may succeed")
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, s.Stock("p1"))
}

func TestCreateOrder_ConcurrentNeverNegative(t *testing.T) {
	const initial = 20
	const requests = 50

	s := seededStore(t, catalog.Product{ID: "p1", PriceCents: 100, Stock: initial})
	e := &Engine{Store: s}

	var success atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := e.CreateOrder(context.Background(), fmt.Sprintf("u%d", i),
				[]ItemInput{{ProductID: "p1", Quantity: 1}}); err == nil {
				success.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(initial), success.Load())
	assert.Equal(t, 0, s.Stock("p1"))
}

// failingLedger forces the final order persist to fail so the compensation
// path after a fully reserved cart is exercised.
type failingLedger struct {
	*MemStore
}

func (f *failingLedger) CreateOrder(ctx context.Context, o *Order) error {
	return errors.New("ledger down")
}

func TestCreateOrder_PersistFailure_RestoresStock(t *testing.T) {
	mem := seededStore(t,
		catalog.Product{ID: "p1", PriceCents: 100, Stock: 5},
		catalog.Product{ID: "p2", PriceCents: 200, Stock: 5},
	)
	e := &Engine{Store: &failingLedger{MemStore: mem}}

	_, err := e.CreateOrder(context.Background(), "u1", []ItemInput{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 3},
	})
	require.Error(t, err)

	assert.Equal(t, 5, mem.Stock("p1"))
	assert.Equal(t, 5, mem.Stock("p2"))
}

func TestGetOrders_NewestFirst(t *testing.T) {
	s := seededStore(t, catalog.Product{ID: "p1", PriceCents: 100, Stock: 100})
	e := &Engine{Store: s}

	for i := 0; i < 3; i++ {
		_, err := e.CreateOrder(context.Background(), "u1", []ItemInput{{ProductID: "p1", Quantity: 1}})
		require.NoError(t, err)
	}
	// a different user's order must not show up
	_, err := e.CreateOrder(context.Background(), "u2", []ItemInput{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)

	list, err := e.GetOrders(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i-1].CreatedAt.Before(list[i].CreatedAt), "orders must be newest first")
	}

	empty, err := e.GetOrders(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetOrderByID_Ownership(t *testing.T) {
	s := seededStore(t, catalog.Product{ID: "p1", PriceCents: 100, Stock: 10})
	e := &Engine{Store: s}

	o, err := e.CreateOrder(context.Background(), "owner", []ItemInput{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)

	got, err := e.GetOrderByID(context.Background(), o.ID, "owner", auth.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = e.GetOrderByID(context.Background(), o.ID, "stranger", auth.RoleClient)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err = e.GetOrderByID(context.Background(), o.ID, "someone-else", auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = e.GetOrderByID(context.Background(), "missing", "owner", auth.RoleClient)
	assert.ErrorIs(t, err, ErrNotFound)
}
