package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Flower struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Order struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Status     Status          `json:"status"` // lihat status.go
	TotalPrice decimal.Decimal `json:"total_price"`
	Notes      string          `json:"notes,omitempty"`
	Items      []OrderItem     `json:"items,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	FlowerID   string `json:"flower_id"`
	FlowerName string `json:"flower_name,omitempty"`
	Qty        int    `json:"qty"`
	// UnitPrice is the price snapshot taken when the order was created.
	// Immutable afterwards, decoupled from later catalog price edits.
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Reservation struct {
	ID        string
	OrderID   string
	FlowerID  string
	Qty       int
	Status    string // RESERVED | RELEASED
	CreatedAt time.Time
}

type ItemQty struct {
	FlowerID string `json:"flower_id"`
	Qty      int    `json:"qty"`
}

type FlowerList struct {
	Items []Flower `json:"items"`
	Total int      `json:"total"`
	Skip  int      `json:"skip"`
	Limit int      `json:"limit"`
}

type CustomerList struct {
	Items []Customer `json:"items"`
	Total int        `json:"total"`
	Skip  int        `json:"skip"`
	Limit int        `json:"limit"`
}

type OrderList struct {
	Items []Order `json:"items"`
	Total int     `json:"total"`
	Skip  int     `json:"skip"`
	Limit int     `json:"limit"`
}
