package orders

import (
	"fmt"
	"strings"
)

// ValidationError: malformed input, caught before any mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// NotFoundError: a referenced flower/customer/order does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Shortage names one flower whose stock cannot cover the requested qty.
type Shortage struct {
	FlowerID  string `json:"flower_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError: the reservation cannot be satisfied. Carries
// every offending flower so the caller can retry with corrected input.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("flower %s: requested %d, available %d", s.FlowerID, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// InvalidTransitionError: illegal order status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}
