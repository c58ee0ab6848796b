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

type CreateOrderReq struct {
	CustomerID string           `json:"customer_id"`
	Items      []orders.ItemQty `json:"items"`
	Notes      string           `json:"notes"`
}

type UpdateStatusReq struct {
	Status orders.Status `json:"status"`
}

type OrdersHandler struct {
	Engine *orders.Engine
	Repo   *orders.Repo
	Cache  *cache.Cache
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.create)
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.Put("/orders/{id}/status", h.updateStatus)
	r.Get("/customers/{id}/orders", h.listByCustomer)
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.CreateOrder(ctx, req.CustomerID, req.Items, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.UpdateOrderStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	key := cache.OrderDetail(id)

	if b, ok, err := h.Cache.Get(ctx, key); err == nil && ok {
		writeRaw(w, http.StatusOK, b)
		return
	}

	o, err := h.Repo.GetOrder(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	b, _ := json.Marshal(o)
	if err := h.Cache.Set(ctx, key, b, cache.TTLDetail); err != nil {
		log.Printf("cache set %s: %v", key, err)
	}
	writeRaw(w, http.StatusOK, b)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	skip, limit := parsePage(r)
	status := orders.Status(r.URL.Query().Get("status"))
	if status != "" && !orders.ValidStatus(status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status: " + string(status)})
		return
	}
	key := cache.OrderList(skip, limit, string(status))

	if b, ok, err := h.Cache.Get(ctx, key); err == nil && ok {
		writeRaw(w, http.StatusOK, b)
		return
	}

	out, err := h.Repo.ListOrders(ctx, skip, limit, status)
	if err != nil {
		writeError(w, err)
		return
	}
	b, _ := json.Marshal(out)
	if err := h.Cache.Set(ctx, key, b, cache.TTLList); err != nil {
		log.Printf("cache set %s: %v", key, err)
	}
	writeRaw(w, http.StatusOK, b)
}

func (h *OrdersHandler) listByCustomer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	customerID := chi.URLParam(r, "id")
	skip, limit := parsePage(r)
	key := cache.OrderListByCustomer(customerID, skip, limit)

	if b, ok, err := h.Cache.Get(ctx, key); err == nil && ok {
		writeRaw(w, http.StatusOK, b)
		return
	}

	out, err := h.Repo.ListOrdersByCustomer(ctx, customerID, skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	b, _ := json.Marshal(out)
	if err := h.Cache.Set(ctx, key, b, cache.TTLList); err != nil {
		log.Printf("cache set %s: %v", key, err)
	}
	writeRaw(w, http.StatusOK, b)
}
