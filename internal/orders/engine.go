package orders

import (
	"context"
	"log"
	"time"

	"github.com/ariefcatur/go-flower-orders.git/internal/cache"
	kafkax "github.com/ariefcatur/go-flower-orders.git/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Store is what the engine needs from the order repository.
type Store interface {
	CreateOrderTx(ctx context.Context, customerID string, items []ItemQty, notes string) (*Order, error)
	UpdateOrderStatusTx(ctx context.Context, orderID string, next Status) (*Order, error)
}

// Invalidator is the cache write-path seam: point deletes plus the bulk
// list-pattern delete.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...cache.Key) error
	InvalidatePattern(ctx context.Context, pattern string) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Engine orchestrates order mutations: authoritative commit first, then
// cache invalidation, then the domain event. Cache failures are logged and
// never roll back a committed order; the cache self-heals via TTL and
// miss-repopulation.
type Engine struct {
	Store             Store
	Cache             Invalidator
	ProducerCreated   Publisher
	ProducerDelivered Publisher
	Service           string
}

func (e *Engine) CreateOrder(ctx context.Context, customerID string, items []ItemQty, notes string) (*Order, error) {
	if customerID == "" {
		return nil, &ValidationError{Reason: "missing customer_id"}
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}

	o, err := e.Store.CreateOrderTx(ctx, customerID, items, notes)
	if err != nil {
		return nil, err
	}

	e.invalidateAfterCreate(ctx, o)
	e.publishCreated(o)
	return o, nil
}

func (e *Engine) UpdateOrderStatus(ctx context.Context, orderID string, next Status) (*Order, error) {
	if orderID == "" {
		return nil, &ValidationError{Reason: "missing order id"}
	}

	o, err := e.Store.UpdateOrderStatusTx(ctx, orderID, next)
	if err != nil {
		return nil, err
	}

	// Status changed, so the detail view and every filtered list view are stale.
	if err := e.Cache.Invalidate(ctx, cache.OrderDetail(o.ID)); err != nil {
		log.Printf("cache invalidate order %s: %v", o.ID, err)
	}
	if err := e.Cache.InvalidatePattern(ctx, cache.ListPattern(cache.EntityOrder)); err != nil {
		log.Printf("cache invalidate order lists: %v", err)
	}

	if next == StatusDelivered {
		e.publishDelivered(o)
	}
	return o, nil
}

// invalidateAfterCreate drops every view the new order could appear in,
// plus the reserved flowers' views (the stock decrement mutated them too).
func (e *Engine) invalidateAfterCreate(ctx context.Context, o *Order) {
	keys := []cache.Key{cache.OrderDetail(o.ID)}
	for _, it := range o.Items {
		keys = append(keys, cache.FlowerDetail(it.FlowerID))
	}
	if err := e.Cache.Invalidate(ctx, keys...); err != nil {
		log.Printf("cache invalidate order %s details: %v", o.ID, err)
	}
	if err := e.Cache.InvalidatePattern(ctx, cache.ListPattern(cache.EntityOrder)); err != nil {
		log.Printf("cache invalidate order lists: %v", err)
	}
	if err := e.Cache.InvalidatePattern(ctx, cache.ListPattern(cache.EntityFlower)); err != nil {
		log.Printf("cache invalidate flower lists: %v", err)
	}
}

func (e *Engine) publishCreated(o *Order) {
	if e.ProducerCreated == nil {
		return
	}
	items := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemQty{FlowerID: it.FlowerID, Qty: it.Qty})
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Service,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(OrderCreatedPayload{
			OrderID:    o.ID,
			CustomerID: o.CustomerID,
			Items:      items,
			TotalPrice: o.TotalPrice.String(),
		}),
	}
	e.ProducerCreated.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (e *Engine) publishDelivered(o *Order) {
	if e.ProducerDelivered == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderDelivered,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Service,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(OrderDeliveredPayload{
			OrderID:    o.ID,
			CustomerID: o.CustomerID,
		}),
	}
	e.ProducerDelivered.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderDelivered)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
