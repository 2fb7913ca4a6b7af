// Package health implements the /healthz endpoint, restored from the
// original implementation's db_health module, which the distillation
// dropped. It reports whether the manifest index and the storage root are
// reachable; it does not participate in any cache-correctness path.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"
)

// Pinger is satisfied by manifestindex.Index.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler checks store reachability (a stat on the root directory) and
// database reachability (a ping with a short timeout) and reports 200 with
// {"store":"ok","db":"ok"} when both succeed, or 503 naming the first
// failing component.
type Handler struct {
	StorageRoot string
	DB          Pinger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if _, err := os.Stat(h.StorageRoot); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"store": "unreachable: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"store": "ok", "db": "unreachable: " + err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"store": "ok", "db": "ok"})
}
