package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger owns the per-flower stock counters. Reservations are conditional
// row updates, not check-then-decrement: the decrement only lands when the
// remaining stock covers it, so two reservations racing on the same flower
// serialize at the row and stock can never go negative.
type Ledger struct{ DB *pgxpool.Pool }

// ReserveStock decrements stock for every item or for none. On any
// shortfall the whole transaction rolls back and the error names each
// offending flower with requested vs available.
func (l *Ledger) ReserveStock(ctx context.Context, items []ItemQty) (string, error) {
	if err := validateItems(items); err != nil {
		return "", err
	}
	reservationID := uuid.NewString()

	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	shortages, err := reserveItems(ctx, tx, reservationID, items)
	if err != nil {
		return "", err
	}
	if len(shortages) > 0 {
		return "", &InsufficientStockError{Shortages: shortages} // rollback via defer
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return reservationID, nil
}

// RestoreStock is the compensating increment. Plain adds, no condition:
// restoring can only move stock further from zero.
func (l *Ledger) RestoreStock(ctx context.Context, items []ItemQty) error {
	if err := validateItems(items); err != nil {
		return err
	}
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, it := range items {
		ct, err := tx.Exec(ctx, `
			UPDATE flowers SET stock_quantity = stock_quantity + $2, updated_at = now()
			WHERE id = $1`, it.FlowerID, it.Qty)
		if err != nil {
			return err
		}
		if ct.RowsAffected() != 1 {
			return &NotFoundError{Entity: "flower", ID: it.FlowerID}
		}
	}
	return tx.Commit(ctx)
}

// ReleaseReservation restores the stock recorded under a reservation and
// flips its rows to RELEASED. Idempotent: only RESERVED rows move.
func (l *Ledger) ReleaseReservation(ctx context.Context, reservationID string) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT flower_id, qty FROM reservations
		WHERE order_id = $1 AND status = 'RESERVED'`, reservationID)
	if err != nil {
		return err
	}
	var recs []ItemQty
	for rows.Next() {
		var x ItemQty
		if err := rows.Scan(&x.FlowerID, &x.Qty); err != nil {
			rows.Close()
			return err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, x := range recs {
		if _, err := tx.Exec(ctx, `
			UPDATE flowers SET stock_quantity = stock_quantity + $2, updated_at = now()
			WHERE id = $1`, x.FlowerID, x.Qty); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE reservations SET status = 'RELEASED'
		WHERE order_id = $1 AND status = 'RESERVED'`, reservationID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// reserveItems runs the conditional decrements inside the caller's tx, so
// order creation couples the reservation with the order rows in one commit.
// Returns the collected shortages; any shortage means the caller must roll
// back, nothing is committed.
func reserveItems(ctx context.Context, tx pgx.Tx, orderID string, items []ItemQty) ([]Shortage, error) {
	var shortages []Shortage
	for _, it := range items {
		ct, err := tx.Exec(ctx, `
			UPDATE flowers SET stock_quantity = stock_quantity - $2, updated_at = now()
			WHERE id = $1 AND stock_quantity >= $2`, it.FlowerID, it.Qty)
		if err != nil {
			return nil, err
		}
		if ct.RowsAffected() == 0 {
			var avail int
			err := tx.QueryRow(ctx, `SELECT stock_quantity FROM flowers WHERE id = $1`, it.FlowerID).Scan(&avail)
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &NotFoundError{Entity: "flower", ID: it.FlowerID}
			}
			if err != nil {
				return nil, err
			}
			shortages = append(shortages, Shortage{FlowerID: it.FlowerID, Requested: it.Qty, Available: avail})
			continue
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO reservations(order_id, flower_id, qty, status)
			VALUES ($1,$2,$3,'RESERVED')
			ON CONFLICT (order_id, flower_id) DO NOTHING
		`, orderID, it.FlowerID, it.Qty); err != nil {
			return nil, err
		}
	}
	return shortages, nil
}

func validateItems(items []ItemQty) error {
	if len(items) == 0 {
		return &ValidationError{Reason: "items must not be empty"}
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.FlowerID == "" {
			return &ValidationError{Reason: "missing flower_id"}
		}
		if it.Qty <= 0 {
			return &ValidationError{Reason: "qty must be positive for flower " + it.FlowerID}
		}
		if seen[it.FlowerID] {
			return &ValidationError{Reason: "duplicate flower " + it.FlowerID}
		}
		seen[it.FlowerID] = true
	}
	return nil
}
