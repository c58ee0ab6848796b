package httpx

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/ariefcatur/go-flower-orders.git/internal/cache"
	"github.com/ariefcatur/go-flower-orders.git/internal/orders"
	"github.com/go-chi/chi/v5"
)

type ReserveStockReq struct {
	Items []orders.ItemQty `json:"items"`
}

type ReserveStockResp struct {
	ReservationID string `json:"reservation_id"`
}

// StockHandler exposes the ledger primitives directly, for restock flows
// and manual holds outside the order path.
type StockHandler struct {
	Ledger *orders.Ledger
	Cache  *cache.Cache
}

func (h *StockHandler) Register(r *chi.Mux) {
	r.Post("/stock/reserve", h.reserve)
	r.Post("/stock/restore", h.restore)
	r.Post("/stock/reservations/{id}/release", h.release)
}

func (h *StockHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := h.Ledger.ReserveStock(ctx, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(ctx, req.Items)
	writeJSON(w, http.StatusCreated, ReserveStockResp{ReservationID: id})
}

func (h *StockHandler) restore(w http.ResponseWriter, r *http.Request) {
	var req ReserveStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.RestoreStock(ctx, req.Items); err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(ctx, req.Items)
	w.WriteHeader(http.StatusNoContent)
}

func (h *StockHandler) release(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.ReleaseReservation(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	// flower set unknown here; drop every flower view
	if err := h.Cache.InvalidatePattern(ctx, cache.DetailPattern(cache.EntityFlower)); err != nil {
		log.Printf("cache invalidate flower details: %v", err)
	}
	if err := h.Cache.InvalidatePattern(ctx, cache.ListPattern(cache.EntityFlower)); err != nil {
		log.Printf("cache invalidate flower lists: %v", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StockHandler) invalidate(ctx context.Context, items []orders.ItemQty) {
	keys := make([]cache.Key, 0, len(items))
	for _, it := range items {
		keys = append(keys, cache.FlowerDetail(it.FlowerID))
	}
	if err := h.Cache.Invalidate(ctx, keys...); err != nil {
		log.Printf("cache invalidate flower details: %v", err)
	}
	if err := h.Cache.InvalidatePattern(ctx, cache.ListPattern(cache.EntityFlower)); err != nil {
		log.Printf("cache invalidate flower lists: %v", err)
	}
}
