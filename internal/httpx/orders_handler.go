package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopcore/shopd/internal/auth"
	kafkax "github.com/shopcore/shopd/internal/kafka"
	"github.com/shopcore/shopd/internal/orders"
	"github.com/shopcore/shopd/internal/redisx"
)

// Publisher is what the handler needs from the Kafka producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type OrdersHandler struct {
	Engine   *orders.Engine
	Producer Publisher     // nil disables event publishing
	Cache    *redis.Client // nil disables the order cache
	Service  string
}

type createOrderReq struct {
	Products []orders.ItemInput `json:"products"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/", h.createOrder)
	r.Get("/", h.getOrders)
	r.Get("/{id}", h.getOrder)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.FromContext(r.Context())
	if !ok {
		respondErr(w, http.StatusUnauthorized, "Not authorized to access this route")
		return
	}

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.CreateOrder(ctx, ident.ID, req.Products)
	if err != nil {
		code, msg := orderErrStatus(err)
		respondErr(w, code, msg)
		return
	}

	h.cacheOrder(ctx, o)
	h.publishCreated(o, r.Header.Get("X-Request-Id"))

	respondData(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrders(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.FromContext(r.Context())
	if !ok {
		respondErr(w, http.StatusUnauthorized, "Not authorized to access this route")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Engine.GetOrders(ctx, ident.ID)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "Server Error")
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	respondList(w, len(list), list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.FromContext(r.Context())
	if !ok {
		respondErr(w, http.StatusUnauthorized, "Not authorized to access this route")
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache hit still goes through the ownership check
	if o := h.cachedOrder(ctx, orderID); o != nil {
		if o.UserID != ident.ID && !ident.IsAdmin() {
			respondErr(w, http.StatusForbidden, "Not authorized to access this order")
			return
		}
		respondData(w, http.StatusOK, o)
		return
	}

	o, err := h.Engine.GetOrderByID(ctx, orderID, ident.ID, ident.Role)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrNotFound):
			respondErr(w, http.StatusNotFound, "Order not found")
		case errors.Is(err, orders.ErrForbidden):
			respondErr(w, http.StatusForbidden, "Not authorized to access this order")
		default:
			respondErr(w, http.StatusInternalServerError, "Server Error")
		}
		return
	}
	h.cacheOrder(ctx, o)
	respondData(w, http.StatusOK, o)
}

func orderErrStatus(err error) (int, string) {
	var notFound *orders.ProductNotFoundError
	var noStock *orders.InsufficientStockError
	switch {
	case errors.Is(err, orders.ErrInvalidRequest):
		return http.StatusBadRequest, "Please add at least one product to the order"
	case errors.As(err, &notFound):
		return http.StatusNotFound, fmt.Sprintf("Product with ID %s not found", notFound.ProductID)
	case errors.As(err, &noStock):
		return http.StatusBadRequest, fmt.Sprintf("Insufficient stock for product %s", noStock.ProductID)
	default:
		return http.StatusInternalServerError, "Server Error"
	}
}

func (h *OrdersHandler) cachedOrder(ctx context.Context, orderID string) *orders.Order {
	if h.Cache == nil {
		return nil
	}
	s, err := h.Cache.Get(ctx, fmt.Sprintf(redisx.KeyOrder, orderID)).Result()
	if err != nil || s == "" {
		return nil
	}
	var o orders.Order
	if json.Unmarshal([]byte(s), &o) != nil {
		return nil
	}
	return &o
}

func (h *OrdersHandler) cacheOrder(ctx context.Context, o *orders.Order) {
	if h.Cache == nil {
		return
	}
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	_ = h.Cache.Set(ctx, fmt.Sprintf(redisx.KeyOrder, o.ID), b, redisx.TTLOrderCache).Err()
}

func (h *OrdersHandler) publishCreated(o *orders.Order, traceID string) {
	if h.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       traceID,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:    o.ID,
			UserID:     o.UserID,
			Items:      o.Items,
			TotalCents: o.TotalCents,
			CreatedAt:  o.CreatedAt,
		}),
	}
	h.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
