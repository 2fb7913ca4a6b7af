// Package proxy implements the HTTP boundary: route dispatch, the
// streaming cache pipeline for blobs and manifests, and transparent
// passthrough for everything else.
package proxy

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/re-cinq/registry-cache/internal/apierror"
	"github.com/re-cinq/registry-cache/internal/bus"
	"github.com/re-cinq/registry-cache/internal/config"
	"github.com/re-cinq/registry-cache/internal/manifestindex"
	"github.com/re-cinq/registry-cache/internal/metrics"
	"github.com/re-cinq/registry-cache/internal/registryref"
	"github.com/re-cinq/registry-cache/internal/store"
)

// Handler wires the streaming cache pipeline to the HTTP boundary. One
// instance serves every request; its fields are read-only after
// construction, so it's safe for concurrent use by the http.Server's
// per-connection goroutines.
type Handler struct {
	Upstream *UpstreamClient
	Store    *store.FS
	Index    *manifestindex.Index
	Bus      *bus.Bus
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

// resolveUpstream maps the client's Host header to a configured upstream,
// writing a NOT_FOUND error and returning ok=false when no entry matches.
func (h *Handler) resolveUpstream(w http.ResponseWriter, r *http.Request) (config.Upstream, bool) {
	host := r.Host
	if up, ok := h.Upstream.Resolve(host); ok {
		return up, true
	}
	h.Log.Debug("no upstream configured for host", "host", host)
	apierror.WriteJSON(w, apierror.New(apierror.KindNotFound, "no upstream configured for host "+host))
	return config.Upstream{}, false
}

// parseRepository parses the mux-extracted name/reference pair, writing a
// validation error and returning ok=false on failure.
func (h *Handler) parseRepository(w http.ResponseWriter, name, reference string) (registryref.Repository, bool) {
	repo, err := registryref.NewWithReference(name, reference)
	if err != nil {
		kind := apierror.KindRegistryDigestInvalid
		if errors.Is(err, registryref.ErrNameInvalid) {
			kind = apierror.KindRegistryNameInvalid
		}
		apierror.WriteJSON(w, apierror.Wrap(kind, "invalid repository reference", err))
		return registryref.Repository{}, false
	}
	return repo, true
}
