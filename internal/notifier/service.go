package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	kafkax "github.com/ariefcatur/go-flower-orders.git/internal/kafka"
	"github.com/ariefcatur/go-flower-orders.git/internal/orders"
	"github.com/ariefcatur/go-flower-orders.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderEvent: dipasang sebagai handler consumer untuk order.created
// dan order.delivered.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup via Redis (pakai event_id); konsumsi ulang tidak mengirim
	// notifikasi dobel
	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		log.Printf("%s: notify customer %s: order %s placed, %d item(s), total %s",
			s.ServiceName, p.CustomerID, p.OrderID, len(p.Items), p.TotalPrice)
	case orders.EventOrderDelivered:
		p, err := kafkax.UnwrapPayload[orders.OrderDeliveredPayload](env.Payload)
		if err != nil {
			return err
		}
		log.Printf("%s: notify customer %s: order %s delivered", s.ServiceName, p.CustomerID, p.OrderID)
	default:
		// ignore
	}
	return nil
}
