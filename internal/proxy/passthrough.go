package proxy

import (
	"io"
	"net/http"

	"github.com/re-cinq/registry-cache/internal/apierror"
)

// HandlePassthrough forwards any request outside the blob/manifest routes
// (version checks, referrers, tag listings, catalog) unchanged, with no
// caching or persistence.
func (h *Handler) HandlePassthrough(w http.ResponseWriter, r *http.Request) {
	upstream, ok := h.resolveUpstream(w, r)
	if !ok {
		return
	}

	resp, err := h.Upstream.Do(r, upstream)
	if err != nil {
		h.Log.Debug("upstream passthrough failed", "path", r.URL.Path, "error", err)
		apierror.WriteJSON(w, apierror.Wrap(apierror.KindRegistryBlobError, "upstream unavailable", err))
		return
	}
	defer resp.Body.Close()

	h.Metrics.UpstreamResponses.Inc()

	copyResponseHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.Log.Debug("passthrough stream interrupted", "path", r.URL.Path, "error", err)
	}
}
