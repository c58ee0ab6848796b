package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB *pgxpool.Pool }

// CreateOrderTx creates the order as one atomic unit: customer check,
// price snapshot, conditional stock decrements, order + item + reservation
// rows. Either everything commits or nothing does; a crash between the
// decrement and the insert cannot leave stock reserved for a phantom order.
func (r *Repo) CreateOrderTx(ctx context.Context, customerID string, items []ItemQty, notes string) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE id=$1)`, customerID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Entity: "customer", ID: customerID}
	}

	// Price snapshot: prices captured here become unit_price on the items,
	// decoupled from later catalog edits.
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.FlowerID)
	}
	rows, err := tx.Query(ctx, `SELECT id, price FROM flowers WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	prices := map[string]decimal.Decimal{}
	for rows.Next() {
		var id string
		var price decimal.Decimal
		if err := rows.Scan(&id, &price); err != nil {
			rows.Close()
			return nil, err
		}
		prices[id] = price
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, it := range items {
		price, ok := prices[it.FlowerID]
		if !ok {
			return nil, &NotFoundError{Entity: "flower", ID: it.FlowerID}
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Qty))))
	}

	orderID := uuid.NewString()

	shortages, err := reserveItems(ctx, tx, orderID, items)
	if err != nil {
		return nil, err
	}
	if len(shortages) > 0 {
		return nil, &InsufficientStockError{Shortages: shortages} // rollback via defer
	}

	o := &Order{ID: orderID, CustomerID: customerID, Status: StatusOrdered, TotalPrice: total, Notes: notes}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, customer_id, status, total_price, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, o.ID, o.CustomerID, string(o.Status), o.TotalPrice, o.Notes).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		item := OrderItem{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			FlowerID:  it.FlowerID,
			Qty:       it.Qty,
			UnitPrice: prices[it.FlowerID],
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, flower_id, qty, unit_price)
			VALUES ($1,$2,$3,$4,$5)`,
			item.ID, item.OrderID, item.FlowerID, item.Qty, item.UnitPrice,
		); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateOrderStatusTx guards the transition under a row lock so two racing
// delivery updates cannot both pass the check.
func (r *Repo) UpdateOrderStatusTx(ctx context.Context, orderID string, next Status) (*Order, error) {
	if !ValidStatus(next) {
		return nil, &ValidationError{Reason: "unknown status: " + string(next)}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var cur string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "order", ID: orderID}
	}
	if err != nil {
		return nil, err
	}
	if !CanTransition(Status(cur), next) {
		return nil, &InvalidTransitionError{From: Status(cur), To: next}
	}

	o := &Order{ID: orderID, Status: next}
	err = tx.QueryRow(ctx, `
		UPDATE orders SET status=$2, updated_at=now() WHERE id=$1
		RETURNING customer_id, total_price, notes, created_at, updated_at
	`, orderID, string(next)).Scan(&o.CustomerID, &o.TotalPrice, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	o := &Order{ID: orderID}
	err := r.DB.QueryRow(ctx, `
		SELECT customer_id, status, total_price, notes, created_at, updated_at
		FROM orders WHERE id=$1`, orderID,
	).Scan(&o.CustomerID, &o.Status, &o.TotalPrice, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "order", ID: orderID}
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT oi.id, oi.flower_id, f.name, oi.qty, oi.unit_price
		FROM order_items oi
		JOIN flowers f ON f.id = oi.flower_id
		WHERE oi.order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		it := OrderItem{OrderID: orderID}
		if err := rows.Scan(&it.ID, &it.FlowerID, &it.FlowerName, &it.Qty, &it.UnitPrice); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// ListOrders pages newest-first, optionally filtered by status.
func (r *Repo) ListOrders(ctx context.Context, skip, limit int, status Status) (*OrderList, error) {
	out := &OrderList{Items: []Order{}, Skip: skip, Limit: limit}

	var err error
	if status != "" {
		err = r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE status=$1`, string(status)).Scan(&out.Total)
	} else {
		err = r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&out.Total)
	}
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	if status != "" {
		rows, err = r.DB.Query(ctx, `
			SELECT id, customer_id, status, total_price, notes, created_at, updated_at
			FROM orders WHERE status=$1
			ORDER BY created_at DESC OFFSET $2 LIMIT $3`, string(status), skip, limit)
	} else {
		rows, err = r.DB.Query(ctx, `
			SELECT id, customer_id, status, total_price, notes, created_at, updated_at
			FROM orders
			ORDER BY created_at DESC OFFSET $1 LIMIT $2`, skip, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Status, &o.TotalPrice, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out.Items = append(out.Items, o)
	}
	return out, rows.Err()
}

func (r *Repo) ListOrdersByCustomer(ctx context.Context, customerID string, skip, limit int) (*OrderList, error) {
	out := &OrderList{Items: []Order{}, Skip: skip, Limit: limit}
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE customer_id=$1`, customerID).Scan(&out.Total); err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, customer_id, status, total_price, notes, created_at, updated_at
		FROM orders WHERE customer_id=$1
		ORDER BY created_at DESC OFFSET $2 LIMIT $3`, customerID, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Status, &o.TotalPrice, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out.Items = append(out.Items, o)
	}
	return out, rows.Err()
}
