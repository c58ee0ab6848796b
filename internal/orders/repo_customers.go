package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CustomerInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

func (r *Repo) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	if in.FirstName == "" || in.LastName == "" || in.Email == "" {
		return nil, &ValidationError{Reason: "first_name, last_name and email are required"}
	}

	c := &Customer{
		ID:        uuid.NewString(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO customers(id, first_name, last_name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Address).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repo) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	c := &Customer{ID: id}
	err := r.DB.QueryRow(ctx, `
		SELECT first_name, last_name, email, phone, address, created_at, updated_at
		FROM customers WHERE id=$1`, id,
	).Scan(&c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "customer", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repo) ListCustomers(ctx context.Context, skip, limit int) (*CustomerList, error) {
	out := &CustomerList{Items: []Customer{}, Skip: skip, Limit: limit}
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&out.Total); err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, first_name, last_name, email, phone, address, created_at, updated_at
		FROM customers ORDER BY last_name, first_name OFFSET $1 LIMIT $2`, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out.Items = append(out.Items, c)
	}
	return out, rows.Err()
}
