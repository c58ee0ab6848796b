package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type FlowerInput struct {
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
}

type FlowerUpdate struct {
	Name  *string          `json:"name,omitempty"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

func (r *Repo) CreateFlower(ctx context.Context, in FlowerInput) (*Flower, error) {
	if in.Name == "" {
		return nil, &ValidationError{Reason: "name must not be empty"}
	}
	if in.Price.IsNegative() {
		return nil, &ValidationError{Reason: "price must not be negative"}
	}
	if in.StockQuantity < 0 {
		return nil, &ValidationError{Reason: "stock_quantity must not be negative"}
	}

	f := &Flower{ID: uuid.NewString(), Name: in.Name, Price: in.Price, StockQuantity: in.StockQuantity}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO flowers(id, name, price, stock_quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, f.ID, f.Name, f.Price, f.StockQuantity).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *Repo) GetFlower(ctx context.Context, id string) (*Flower, error) {
	f := &Flower{ID: id}
	err := r.DB.QueryRow(ctx, `
		SELECT name, price, stock_quantity, created_at, updated_at
		FROM flowers WHERE id=$1`, id,
	).Scan(&f.Name, &f.Price, &f.StockQuantity, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "flower", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *Repo) UpdateFlower(ctx context.Context, id string, in FlowerUpdate) (*Flower, error) {
	if in.Name == nil && in.Price == nil {
		return nil, &ValidationError{Reason: "nothing to update"}
	}
	if in.Name != nil && *in.Name == "" {
		return nil, &ValidationError{Reason: "name must not be empty"}
	}
	if in.Price != nil && in.Price.IsNegative() {
		return nil, &ValidationError{Reason: "price must not be negative"}
	}

	f := &Flower{ID: id}
	err := r.DB.QueryRow(ctx, `
		UPDATE flowers SET
			name = COALESCE($2, name),
			price = COALESCE($3, price),
			updated_at = now()
		WHERE id = $1
		RETURNING name, price, stock_quantity, created_at, updated_at
	`, id, in.Name, in.Price).Scan(&f.Name, &f.Price, &f.StockQuantity, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "flower", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// UpdateFlowerStock sets the absolute stock level (restock/correction path;
// order reservations go through the ledger instead).
func (r *Repo) UpdateFlowerStock(ctx context.Context, id string, qty int) (*Flower, error) {
	if qty < 0 {
		return nil, &ValidationError{Reason: "stock_quantity must not be negative"}
	}
	f := &Flower{ID: id, StockQuantity: qty}
	err := r.DB.QueryRow(ctx, `
		UPDATE flowers SET stock_quantity=$2, updated_at=now() WHERE id=$1
		RETURNING name, price, created_at, updated_at
	`, id, qty).Scan(&f.Name, &f.Price, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "flower", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DeleteFlower refuses to remove a flower that any order item references.
func (r *Repo) DeleteFlower(ctx context.Context, id string) error {
	var referenced bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM order_items WHERE flower_id=$1)`, id).Scan(&referenced); err != nil {
		return err
	}
	if referenced {
		return &ValidationError{Reason: "flower is referenced by existing orders"}
	}
	ct, err := r.DB.Exec(ctx, `DELETE FROM flowers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &NotFoundError{Entity: "flower", ID: id}
	}
	return nil
}

func (r *Repo) ListFlowers(ctx context.Context, skip, limit int) (*FlowerList, error) {
	out := &FlowerList{Items: []Flower{}, Skip: skip, Limit: limit}
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM flowers`).Scan(&out.Total); err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, name, price, stock_quantity, created_at, updated_at
		FROM flowers ORDER BY name OFFSET $1 LIMIT $2`, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var f Flower
		if err := rows.Scan(&f.ID, &f.Name, &f.Price, &f.StockQuantity, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out.Items = append(out.Items, f)
	}
	return out, rows.Err()
}
