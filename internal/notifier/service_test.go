package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-flower-orders.git/internal/orders"
	"github.com/ariefcatur/go-flower-orders.git/internal/redisx"
)

func setup(t *testing.T) (*Service, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &Service{Redis: rdb, ServiceName: "notifier-test"}, rdb
}

func message(t *testing.T, eventID, eventType string, payload any) kafkago.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	env := orders.Envelope{
		EventID:      eventID,
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "flower-api-test",
		Payload:      raw,
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestHandleOrderEventSetsDedupKey(t *testing.T) {
	svc, rdb := setup(t)
	ctx := context.Background()

	m := message(t, "ev-1", orders.EventOrderCreated, orders.OrderCreatedPayload{
		OrderID:    "o1",
		CustomerID: "c1",
		Items:      []orders.ItemQty{{FlowerID: "f1", Qty: 2}},
		TotalPrice: "19.98",
	})
	require.NoError(t, svc.HandleOrderEvent(ctx, m))

	exists, err := redisx.Exists(ctx, rdb, fmt.Sprintf(redisx.KeyDedup, "notifier", "ev-1"))
	require.NoError(t, err)
	assert.True(t, exists)

	// redelivery of the same event is a no-op
	require.NoError(t, svc.HandleOrderEvent(ctx, m))
}

func TestHandleOrderEventIgnoresUnknownTypes(t *testing.T) {
	svc, _ := setup(t)
	m := message(t, "ev-2", "PaymentAuthorized", map[string]string{"order_id": "o1"})
	assert.NoError(t, svc.HandleOrderEvent(context.Background(), m))
}

func TestHandleOrderEventRejectsBadEnvelope(t *testing.T) {
	svc, _ := setup(t)
	err := svc.HandleOrderEvent(context.Background(), kafkago.Message{Value: []byte("not json")})
	assert.Error(t, err)
}
