package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	kafkax "github.com/shopcore/shopd/internal/kafka"
	"github.com/shopcore/shopd/internal/orders"
	"github.com/shopcore/shopd/internal/redisx"
	"go.uber.org/zap"
)

// Service consumes order.created events, records an audit log line, and warms
// the per-order cache so reads after checkout avoid the database.
type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderCreated is installed as the consumer handler.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderCreated {
		return nil // ignore
	}

	// dedup by event_id: consumer groups redeliver on rebalance
	dkey := fmt.Sprintf(redisx.KeyDedup, "audit", env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		return err
	}

	o := orders.Order{
		ID:         p.OrderID,
		UserID:     p.UserID,
		Items:      p.Items,
		TotalCents: p.TotalCents,
		CreatedAt:  p.CreatedAt,
	}
	if b, err := json.Marshal(o); err == nil {
		_ = s.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrder, o.ID), b, redisx.TTLOrderCache).Err()
	}

	zap.L().Info("order created",
		zap.String("order_id", p.OrderID),
		zap.String("user_id", p.UserID),
		zap.Int("items", len(p.Items)),
		zap.Int("total_cents", p.TotalCents),
		zap.String("trace_id", env.TraceID),
	)
	return nil
}
