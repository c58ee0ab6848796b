package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-flower-orders.git/internal/cache"
)

// memStore implements Store with the same contract as the postgres repo:
// reservations are all-or-nothing and serialized, stock never goes negative.
type memStore struct {
	mu        sync.Mutex
	customers map[string]bool
	stock     map[string]int
	prices    map[string]decimal.Decimal
	orders    map[string]*Order
}

func newMemStore() *memStore {
	return &memStore{
		customers: map[string]bool{},
		stock:     map[string]int{},
		prices:    map[string]decimal.Decimal{},
		orders:    map[string]*Order{},
	}
}

func (s *memStore) CreateOrderTx(_ context.Context, customerID string, items []ItemQty, notes string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.customers[customerID] {
		return nil, &NotFoundError{Entity: "customer", ID: customerID}
	}

	total := decimal.Zero
	var shortages []Shortage
	for _, it := range items {
		avail, ok := s.stock[it.FlowerID]
		if !ok {
			return nil, &NotFoundError{Entity: "flower", ID: it.FlowerID}
		}
		if avail < it.Qty {
			shortages = append(shortages, Shortage{FlowerID: it.FlowerID, Requested: it.Qty, Available: avail})
			continue
		}
		total = total.Add(s.prices[it.FlowerID].Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	if len(shortages) > 0 {
		return nil, &InsufficientStockError{Shortages: shortages}
	}

	now := time.Now().UTC()
	o := &Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Status:     StatusOrdered,
		TotalPrice: total,
		Notes:      notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, it := range items {
		s.stock[it.FlowerID] -= it.Qty
		o.Items = append(o.Items, OrderItem{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			FlowerID:  it.FlowerID,
			Qty:       it.Qty,
			UnitPrice: s.prices[it.FlowerID],
		})
	}
	s.orders[o.ID] = o
	return o, nil
}

func (s *memStore) UpdateOrderStatusTx(_ context.Context, orderID string, next Status) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ValidStatus(next) {
		return nil, &ValidationError{Reason: "unknown status: " + string(next)}
	}
	o, ok := s.orders[orderID]
	if !ok {
		return nil, &NotFoundError{Entity: "order", ID: orderID}
	}
	if !CanTransition(o.Status, next) {
		return nil, &InvalidTransitionError{From: o.Status, To: next}
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	cp := *o
	return &cp, nil
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (p *capturePublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, value)
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

type failingCache struct{}

func (failingCache) Invalidate(context.Context, ...cache.Key) error {
	return errors.New("redis unreachable")
}
func (failingCache) InvalidatePattern(context.Context, string) error {
	return errors.New("redis unreachable")
}

func setupEngine(t *testing.T) (*Engine, *memStore, *cache.Cache, *capturePublisher, *capturePublisher) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.New(rdb)

	st := newMemStore()
	pCreated := &capturePublisher{}
	pDelivered := &capturePublisher{}
	e := &Engine{
		Store:             st,
		Cache:             c,
		ProducerCreated:   pCreated,
		ProducerDelivered: pDelivered,
		Service:           "flower-api-test",
	}
	return e, st, c, pCreated, pDelivered
}

func seedFlower(st *memStore, id string, stock int, price string) {
	st.stock[id] = stock
	st.prices[id] = decimal.RequireFromString(price)
}

func TestCreateOrderValidation(t *testing.T) {
	e, st, _, pCreated, _ := setupEngine(t)
	st.customers["c1"] = true
	seedFlower(st, "f1", 10, "5.00")
	ctx := context.Background()

	t.Run("empty items", func(t *testing.T) {
		_, err := e.CreateOrder(ctx, "c1", nil, "")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("non-positive qty", func(t *testing.T) {
		_, err := e.CreateOrder(ctx, "c1", []ItemQty{{FlowerID: "f1", Qty: 0}}, "")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("duplicate flower", func(t *testing.T) {
		_, err := e.CreateOrder(ctx, "c1", []ItemQty{{FlowerID: "f1", Qty: 1}, {FlowerID: "f1", Qty: 2}}, "")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("missing customer id", func(t *testing.T) {
		_, err := e.CreateOrder(ctx, "", []ItemQty{{FlowerID: "f1", Qty: 1}}, "")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	})

	// fails fast: nothing touched, nothing published
	assert.Equal(t, 10, st.stock["f1"])
	assert.Zero(t, pCreated.count())
}

func TestCreateOrderUnknownReferences(t *testing.T) {
	e, st, _, _, _ := setupEngine(t)
	st.customers["c1"] = true
	seedFlower(st, "f1", 10, "5.00")
	ctx := context.Background()

	_, err := e.CreateOrder(ctx, "ghost", []ItemQty{{FlowerID: "f1", Qty: 1}}, "")
	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "customer", nfe.Entity)

	_, err = e.CreateOrder(ctx, "c1", []ItemQty{{FlowerID: "nope", Qty: 1}}, "")
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "flower", nfe.Entity)
	assert.Equal(t, "nope", nfe.ID)

	assert.Equal(t, 10, st.stock["f1"])
}

func TestCreateOrderSuccess(t *testing.T) {
	e, st, c, pCreated, _ := setupEngine(t)
	st.customers["c1"] = true
	seedFlower(st, "f1", 5, "9.99")
	seedFlower(st, "f2", 3, "2.50")
	ctx := context.Background()

	// stale views cached moments before the order
	require.NoError(t, c.Set(ctx, cache.FlowerDetail("f1"), []byte(`stale`), cache.TTLDetail))
	require.NoError(t, c.Set(ctx, cache.FlowerList(0, 100), []byte(`stale`), cache.TTLList))
	require.NoError(t, c.Set(ctx, cache.OrderList(0, 100, ""), []byte(`stale`), cache.TTLList))
	require.NoError(t, c.Set(ctx, cache.OrderListByCustomer("c1", 0, 100), []byte(`stale`), cache.TTLList))

	o, err := e.CreateOrder(ctx, "c1", []ItemQty{{FlowerID: "f1", Qty: 2}, {FlowerID: "f2", Qty: 1}}, "birthday")
	require.NoError(t, err)
	require.NotNil(t, o)

	assert.Equal(t, StatusOrdered, o.Status)
	assert.Equal(t, "c1", o.CustomerID)
	assert.Equal(t, "birthday", o.Notes)
	require.Len(t, o.Items, 2)
	assert.True(t, o.TotalPrice.Equal(decimal.RequireFromString("22.48")), "got total %s", o.TotalPrice)
	assert.True(t, o.Items[0].UnitPrice.Equal(decimal.RequireFromString("9.99")))

	assert.Equal(t, 3, st.stock["f1"])
	assert.Equal(t, 2, st.stock["f2"])

	// every affected view was invalidated
	for _, k := range []cache.Key{
		cache.FlowerDetail("f1"),
		cache.FlowerList(0, 100),
		cache.OrderList(0, 100, ""),
		cache.OrderListByCustomer("c1", 0, 100),
	} {
		_, ok, err := c.Get(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, "key %q should be invalidated", k)
	}

	require.Equal(t, 1, pCreated.count())
	var env Envelope
	require.NoError(t, json.Unmarshal(pCreated.msgs[0], &env))
	assert.Equal(t, EventOrderCreated, env.EventType)
	assert.Equal(t, o.ID, env.CorrelationID)
	var p OrderCreatedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, o.ID, p.OrderID)
	assert.Len(t, p.Items, 2)
}

func TestCreateOrderPriceSnapshotIsImmutable(t *testing.T) {
	e, st, _, _, _ := setupEngine(t)
	st.customers["c1"] = true
	seedFlower(st, "f1", 10, "4.00")
	ctx := context.Background()

	o, err := e.CreateOrder(ctx, "c1", []ItemQty{{FlowerID: "f1", Qty: 1}}, "")
	require.NoError(t, err)

	// catalog price changes after the order; the snapshot must not
	st.prices["f1"] = decimal.RequireFromString("7.00")
	assert.True(t, o.Items[0].UnitPrice.Equal(decimal.RequireFromString("4.00")))
	assert.True(t, o.TotalPrice.Equal(decimal.RequireFromString("4.00")))
}

func TestCreateOrderPartialShortageLeavesEverythingUntouched(t *testing.T) {
	e, st, c, pCreated, _ := setupEngine(t)
	st.customers["c1"] = true
	seedFlower(st, "f1", 10, "5.00")
	seedFlower(st, "f2", 0, "3.00")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, cache.FlowerDetail("f1"), []byte(`cached`), cache.TTLDetail))

	_, err := e.CreateOrder(ctx, "c1", []ItemQty{{FlowerID: "f1", Qty: 2}, {FlowerID: "f2", Qty: 1}}, "")
	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	require.Len(t, ise.Shortages, 1)
	assert.Equal(t, "f2", ise.Shortages[0].FlowerID)
	assert.Equal(t, 1, ise.Shortages[0].Requested)
	assert.Equal(t, 0, ise.Shortages[0].Available)

	// no stock mutated, no cache touched, no event
	assert.Equal(t, 10, st.stock["f1"])
	assert.Equal(t, 0, st.stock["f2"])
	_, ok, _ := c.Get(ctx, cache.FlowerDetail("f1"))
	assert.True(t, ok)
	assert.Zero(t, pCreated.count())
}

func TestConcurrentCreateOrdersContendingOnOneFlower(t *testing.T) {
	e, st, _, pCreated, _ := setupEngine(t)
	st.customers["c1"] = true
	seedFlower(st, "f1", 5, "1.00")
	ctx := context.Background()

	results := make([]error, 2)
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			_, err := e.CreateOrder(ctx, "c1", []ItemQty{{FlowerID: "f1", Qty: 3}}, "")
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var succeeded, rejected int
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var ise *InsufficientStockError
		require.ErrorAs(t, err, &ise)
		rejected++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 2, st.stock["f1"])
	assert.Equal(t, 1, pCreated.count())
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	e, st, _, _, _ := setupEngine(t)
	st.customers["c1"] = true
	seedFlower(st, "f1", 10, "1.00")
	ctx := context.Background()

	const attempts = 8
	results := make([]error, attempts)
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			_, err := e.CreateOrder(ctx, "c1", []ItemQty{{FlowerID: "f1", Qty: 2}}, "")
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var succeeded int
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	// final stock = initial - sum of successful reservations, never negative
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 10-2*succeeded, st.stock["f1"])
	assert.GreaterOrEqual(t, st.stock["f1"], 0)
}

func TestUpdateOrderStatus(t *testing.T) {
	e, st, c, _, pDelivered := setupEngine(t)
	st.customers["c1"] = true
	seedFlower(st, "f1", 5, "2.00")
	ctx := context.Background()

	o, err := e.CreateOrder(ctx, "c1", []ItemQty{{FlowerID: "f1", Qty: 1}}, "")
	require.NoError(t, err)

	t.Run("ordered to delivered", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, cache.OrderDetail(o.ID), []byte(`stale`), cache.TTLDetail))
		require.NoError(t, c.Set(ctx, cache.OrderList(0, 100, "ordered"), []byte(`stale`), cache.TTLList))

		got, err := e.UpdateOrderStatus(ctx, o.ID, StatusDelivered)
		require.NoError(t, err)
		assert.Equal(t, StatusDelivered, got.Status)

		_, ok, _ := c.Get(ctx, cache.OrderDetail(o.ID))
		assert.False(t, ok, "order detail must be invalidated")
		_, ok, _ = c.Get(ctx, cache.OrderList(0, 100, "ordered"))
		assert.False(t, ok, "filtered order lists must be invalidated")

		require.Equal(t, 1, pDelivered.count())
		var env Envelope
		require.NoError(t, json.Unmarshal(pDelivered.msgs[0], &env))
		assert.Equal(t, EventOrderDelivered, env.EventType)
	})

	t.Run("delivered is terminal", func(t *testing.T) {
		_, err := e.UpdateOrderStatus(ctx, o.ID, StatusDelivered)
		var ite *InvalidTransitionError
		require.ErrorAs(t, err, &ite)
		assert.Equal(t, StatusDelivered, ite.From)

		_, err = e.UpdateOrderStatus(ctx, o.ID, StatusOrdered)
		require.ErrorAs(t, err, &ite)

		assert.Equal(t, StatusDelivered, st.orders[o.ID].Status)
		assert.Equal(t, 1, pDelivered.count(), "no extra event on rejected transition")
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := e.UpdateOrderStatus(ctx, "ghost", StatusDelivered)
		var nfe *NotFoundError
		require.ErrorAs(t, err, &nfe)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := e.UpdateOrderStatus(ctx, o.ID, Status("cancelled"))
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	})
}

func TestCacheFailureDoesNotFailCommittedOrder(t *testing.T) {
	_, st, _, _, _ := setupEngine(t)
	st.customers["c1"] = true
	seedFlower(st, "f1", 5, "2.00")

	pCreated := &capturePublisher{}
	e := &Engine{Store: st, Cache: failingCache{}, ProducerCreated: pCreated, Service: "flower-api-test"}

	o, err := e.CreateOrder(context.Background(), "c1", []ItemQty{{FlowerID: "f1", Qty: 1}}, "")
	require.NoError(t, err, "cache unavailability must never roll back the order")
	require.NotNil(t, o)
	assert.Equal(t, 4, st.stock["f1"])
	assert.Equal(t, 1, pCreated.count())
}
