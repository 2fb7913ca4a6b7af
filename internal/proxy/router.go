package proxy

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/re-cinq/registry-cache/internal/metrics"
)

// NewRouter builds the full HTTP route table: the blob and manifest
// cache-pipeline routes, transparent passthrough for everything else under
// /v2/, the /metrics exposition endpoint, and healthz (the supplemental
// health handler, mounted here so it isn't swallowed by the passthrough
// catch-all). env labels the response_time histogram (e.g. the advertised
// api.hostname).
func NewRouter(h *Handler, healthz http.Handler, reg *metrics.Metrics, log *slog.Logger, env string) http.Handler {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/healthz", healthz)

	r.HandleFunc("/v2/{name:.*}/blobs/{reference}", h.HandleBlobGet).Methods(http.MethodGet)
	r.HandleFunc("/v2/{name:.*}/blobs/{reference}", h.HandleBlobHead).Methods(http.MethodHead)
	r.HandleFunc("/v2/{name:.*}/manifests/{reference}", h.HandleManifestGet).Methods(http.MethodGet)
	r.PathPrefix("/").HandlerFunc(h.HandlePassthrough)

	return InstrumentMiddleware(r, reg, log, env)
}
