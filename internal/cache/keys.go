package cache

import (
	"fmt"
	"time"
)

// Entity namespaces every cache key so filtered views of different types
// can never collide or share an invalidation target.
type Entity string

const (
	EntityFlower   Entity = "flower"
	EntityCustomer Entity = "customer"
	EntityOrder    Entity = "order"
)

// Key is a structured cache key: entity + variant, built by the helpers
// below instead of ad-hoc fmt strings scattered over call sites.
type Key string

func Detail(e Entity, id string) Key {
	return Key(string(e) + ":detail:" + id)
}

func List(e Entity, parts ...string) Key {
	k := string(e) + ":list"
	for _, p := range parts {
		k += ":" + p
	}
	return Key(k)
}

// ListPattern matches every list variant of an entity, whatever its
// filter/pagination parameters. A mutation can change membership or
// ordering of any list view, so invalidation is always the full pattern.
func ListPattern(e Entity) string { return string(e) + ":list*" }

// DetailPattern matches every detail key of an entity. Used when the
// affected id set is not known at the call site.
func DetailPattern(e Entity) string { return string(e) + ":detail:*" }

func FlowerDetail(id string) Key { return Detail(EntityFlower, id) }
func FlowerList(skip, limit int) Key {
	return List(EntityFlower, page(skip, limit))
}

func CustomerDetail(id string) Key { return Detail(EntityCustomer, id) }
func CustomerList(skip, limit int) Key {
	return List(EntityCustomer, page(skip, limit))
}

func OrderDetail(id string) Key { return Detail(EntityOrder, id) }
func OrderList(skip, limit int, status string) Key {
	if status == "" {
		return List(EntityOrder, page(skip, limit))
	}
	return List(EntityOrder, page(skip, limit), "status="+status)
}
func OrderListByCustomer(customerID string, skip, limit int) Key {
	return List(EntityOrder, "customer="+customerID, page(skip, limit))
}

func page(skip, limit int) string {
	return fmt.Sprintf("skip=%d:limit=%d", skip, limit)
}

// Lists expire sooner than details: any create/update/delete anywhere
// affects some list. Tuning values; correctness comes from invalidation.
var (
	TTLDetail = 10 * time.Minute
	TTLList   = 2 * time.Minute
)
