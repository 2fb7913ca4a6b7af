package proxy

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/re-cinq/registry-cache/internal/metrics"
)

// statusRecorder wraps http.ResponseWriter to capture the status code for
// logging and metrics after the handler returns.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// InstrumentMiddleware logs every request at debug level and records the
// incoming-request counter, connected-clients gauge, and response-time
// histogram around it.
func InstrumentMiddleware(next http.Handler, m *metrics.Metrics, log *slog.Logger, env string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.IncomingRequests.Inc()
		m.ConnectedClients.Inc()
		defer m.ConnectedClients.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		m.ResponseTime.WithLabelValues(env).Observe(elapsed.Seconds())
		log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", elapsed)
	})
}
