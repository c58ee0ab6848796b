package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-flower-orders.git/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

// writeError maps the domain error taxonomy onto HTTP status codes. The
// caller always gets the precise reason (which flower lacked stock, which
// reference was invalid), never a generic failure when a specific one exists.
func writeError(w http.ResponseWriter, err error) {
	var ve *orders.ValidationError
	var nfe *orders.NotFoundError
	var ise *orders.InsufficientStockError
	var ite *orders.InvalidTransitionError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error()})
	case errors.As(err, &nfe):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": nfe.Error()})
	case errors.As(err, &ise):
		writeJSON(w, http.StatusConflict, map[string]any{"error": ise.Error(), "shortages": ise.Shortages})
	case errors.As(err, &ite):
		writeJSON(w, http.StatusConflict, map[string]string{"error": ite.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func parsePage(r *http.Request) (skip, limit int) {
	skip, limit = 0, 100
	if v := r.URL.Query().Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			skip = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return skip, limit
}
