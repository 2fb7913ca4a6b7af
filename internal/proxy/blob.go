package proxy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/re-cinq/registry-cache/internal/apierror"
	"github.com/re-cinq/registry-cache/internal/bus"
	"github.com/re-cinq/registry-cache/internal/stream"
)

// HandleBlobGet implements GET /v2/{name:.*}/blobs/{reference}. The
// reference must be a digest — blobs are only ever addressed by content,
// never by tag.
func (h *Handler) HandleBlobGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	repo, ok := h.parseRepository(w, vars["name"], vars["reference"])
	if !ok {
		return
	}
	if !repo.IsDigestReference() {
		apierror.WriteJSON(w, apierror.New(apierror.KindRegistryBlobUnknown, "blob reference must be a digest"))
		return
	}

	if f, err := h.Store.Read(repo); err == nil {
		defer f.Close()
		w.Header().Set("Docker-Content-Digest", repo.Digest.String())
		w.Header().Set("ETag", repo.Digest.String())
		w.Header().Set("Content-Type", "application/octet-stream")
		h.Metrics.CachedResponses.Inc()
		h.Metrics.ResponseCode.WithLabelValues("200", "blobs", repo.Name).Inc()
		http.ServeContent(w, r, "", time.Time{}, f)
		return
	}

	upstream, ok := h.resolveUpstream(w, r)
	if !ok {
		return
	}
	resp, err := h.Upstream.Do(r, upstream)
	if err != nil {
		h.Log.Debug("upstream blob fetch failed", "name", repo.Name, "error", err)
		apierror.WriteJSON(w, apierror.Wrap(apierror.KindRegistryBlobError, "upstream blob fetch failed", err))
		return
	}
	defer resp.Body.Close()

	h.Metrics.UpstreamResponses.Inc()
	h.Metrics.ResponseCode.WithLabelValues(strconv.Itoa(resp.StatusCode), "blobs", repo.Name).Inc()

	copyResponseHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)

	fanout := stream.NewFanout(resp.Body)
	h.Bus.Publish(bus.PersistBlob{Repo: repo, Chunks: fanout.Chunks})
	if err := fanout.CopyTo(w); err != nil {
		h.Log.Debug("blob stream interrupted", "name", repo.Name, "error", err)
	}
}

// HandleBlobHead implements HEAD /v2/{name:.*}/blobs/{reference}: the same
// cache-then-upstream resolution as GET, but no response body and nothing
// to tee or persist.
func (h *Handler) HandleBlobHead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	repo, ok := h.parseRepository(w, vars["name"], vars["reference"])
	if !ok {
		return
	}
	if !repo.IsDigestReference() {
		apierror.WriteJSON(w, apierror.New(apierror.KindRegistryBlobUnknown, "blob reference must be a digest"))
		return
	}

	if size, err := h.Store.Stat(repo); err == nil {
		w.Header().Set("Docker-Content-Digest", repo.Digest.String())
		w.Header().Set("ETag", repo.Digest.String())
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		h.Metrics.CachedResponses.Inc()
		h.Metrics.ResponseCode.WithLabelValues("200", "blobs", repo.Name).Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	upstream, ok := h.resolveUpstream(w, r)
	if !ok {
		return
	}
	resp, err := h.Upstream.Do(r, upstream)
	if err != nil {
		h.Log.Debug("upstream blob HEAD failed", "name", repo.Name, "error", err)
		apierror.WriteJSON(w, apierror.Wrap(apierror.KindRegistryBlobError, "upstream blob HEAD failed", err))
		return
	}
	defer resp.Body.Close()

	h.Metrics.UpstreamResponses.Inc()
	h.Metrics.ResponseCode.WithLabelValues(strconv.Itoa(resp.StatusCode), "blobs", repo.Name).Inc()

	copyResponseHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)
}
