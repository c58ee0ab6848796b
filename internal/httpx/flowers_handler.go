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

type FlowersHandler struct {
	Repo  *orders.Repo
	Cache *cache.Cache
}

func (h *FlowersHandler) Register(r *chi.Mux) {
	r.Get("/flowers", h.list)
	r.Post("/flowers", h.create)
	r.Get("/flowers/{id}", h.get)
	r.Put("/flowers/{id}", h.update)
	r.Put("/flowers/{id}/stock", h.updateStock)
	r.Delete("/flowers/{id}", h.delete)
}

func (h *FlowersHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	skip, limit := parsePage(r)
	key := cache.FlowerList(skip, limit)

	if b, ok, err := h.Cache.Get(ctx, key); err == nil && ok {
		writeRaw(w, http.StatusOK, b)
		return
	}

	out, err := h.Repo.ListFlowers(ctx, skip, limit)
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

func (h *FlowersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	key := cache.FlowerDetail(id)

	if b, ok, err := h.Cache.Get(ctx, key); err == nil && ok {
		writeRaw(w, http.StatusOK, b)
		return
	}

	f, err := h.Repo.GetFlower(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	b, _ := json.Marshal(f)
	if err := h.Cache.Set(ctx, key, b, cache.TTLDetail); err != nil {
		log.Printf("cache set %s: %v", key, err)
	}
	writeRaw(w, http.StatusOK, b)
}

func (h *FlowersHandler) create(w http.ResponseWriter, r *http.Request) {
	var in orders.FlowerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	f, err := h.Repo.CreateFlower(ctx, in)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(ctx, f.ID)
	writeJSON(w, http.StatusCreated, f)
}

func (h *FlowersHandler) update(w http.ResponseWriter, r *http.Request) {
	var in orders.FlowerUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	f, err := h.Repo.UpdateFlower(ctx, id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(ctx, id)
	writeJSON(w, http.StatusOK, f)
}

func (h *FlowersHandler) updateStock(w http.ResponseWriter, r *http.Request) {
	var in struct {
		StockQuantity int `json:"stock_quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	f, err := h.Repo.UpdateFlowerStock(ctx, id, in.StockQuantity)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(ctx, id)
	writeJSON(w, http.StatusOK, f)
}

func (h *FlowersHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.Repo.DeleteFlower(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(ctx, id)
	w.WriteHeader(http.StatusNoContent)
}

// invalidate runs after the commit: detail key plus every list variant.
// Failures are logged, the mutation already succeeded.
func (h *FlowersHandler) invalidate(ctx context.Context, id string) {
	if err := h.Cache.Invalidate(ctx, cache.FlowerDetail(id)); err != nil {
		log.Printf("cache invalidate flower %s: %v", id, err)
	}
	if err := h.Cache.InvalidatePattern(ctx, cache.ListPattern(cache.EntityFlower)); err != nil {
		log.Printf("cache invalidate flower lists: %v", err)
	}
}
