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

type CustomersHandler struct {
	Repo  *orders.Repo
	Cache *cache.Cache
}

func (h *CustomersHandler) Register(r *chi.Mux) {
	r.Get("/customers", h.list)
	r.Post("/customers", h.create)
	r.Get("/customers/{id}", h.get)
}

func (h *CustomersHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	skip, limit := parsePage(r)
	key := cache.CustomerList(skip, limit)

	if b, ok, err := h.Cache.Get(ctx, key); err == nil && ok {
		writeRaw(w, http.StatusOK, b)
		return
	}

	out, err := h.Repo.ListCustomers(ctx, skip, limit)
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

func (h *CustomersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	key := cache.CustomerDetail(id)

	if b, ok, err := h.Cache.Get(ctx, key); err == nil && ok {
		writeRaw(w, http.StatusOK, b)
		return
	}

	c, err := h.Repo.GetCustomer(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	b, _ := json.Marshal(c)
	if err := h.Cache.Set(ctx, key, b, cache.TTLDetail); err != nil {
		log.Printf("cache set %s: %v", key, err)
	}
	writeRaw(w, http.StatusOK, b)
}

func (h *CustomersHandler) create(w http.ResponseWriter, r *http.Request) {
	var in orders.CustomerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Repo.CreateCustomer(ctx, in)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Cache.InvalidatePattern(ctx, cache.ListPattern(cache.EntityCustomer)); err != nil {
		log.Printf("cache invalidate customer lists: %v", err)
	}
	writeJSON(w, http.StatusCreated, c)
}
