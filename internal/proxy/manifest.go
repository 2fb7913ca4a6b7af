package proxy

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/re-cinq/registry-cache/internal/apierror"
	"github.com/re-cinq/registry-cache/internal/bus"
	"github.com/re-cinq/registry-cache/internal/manifestindex"
	"github.com/re-cinq/registry-cache/internal/registryref"
	"github.com/re-cinq/registry-cache/internal/stream"
)

// countingReader tallies bytes read so the manifest persist command can
// carry the real observed body length instead of a placeholder.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// optionalDigest parses s as a digest, returning nil when s is empty or
// malformed rather than failing the request — an upstream that omits or
// mangles Docker-Content-Digest simply yields an unpersistable manifest.
func optionalDigest(s string) *registryref.Digest {
	if s == "" {
		return nil
	}
	d, err := registryref.ParseDigest(s)
	if err != nil {
		return nil
	}
	return &d
}

// HandleManifestGet implements GET /v2/{name:.*}/manifests/{reference}.
// Manifests are fetched eagerly from upstream on every request — tags are
// mutable, so a cache-first lookup would risk serving stale content. The
// manifest index exists purely as a fallback for when upstream is down.
func (h *Handler) HandleManifestGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	repo, ok := h.parseRepository(w, vars["name"], vars["reference"])
	if !ok {
		return
	}

	upstream, ok := h.resolveUpstream(w, r)
	if !ok {
		return
	}

	resp, err := h.Upstream.Do(r, upstream)
	if err != nil || resp.StatusCode >= http.StatusInternalServerError {
		if resp != nil {
			resp.Body.Close()
		}
		h.Log.Debug("upstream manifest fetch unavailable, falling back to index", "name", repo.Name, "tag", repo.Reference, "error", err)
		h.serveManifestFallback(w, r, repo)
		return
	}
	defer resp.Body.Close()

	h.Metrics.UpstreamResponses.Inc()
	h.Metrics.ResponseCode.WithLabelValues(strconv.Itoa(resp.StatusCode), "manifests", repo.Name).Inc()

	digest := optionalDigest(resp.Header.Get("Docker-Content-Digest"))
	mime := resp.Header.Get("Content-Type")

	copyResponseHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)

	counted := &countingReader{r: resp.Body}
	fanout := stream.NewFanout(counted)
	if err := fanout.CopyTo(w); err != nil {
		h.Log.Debug("manifest stream interrupted", "name", repo.Name, "error", err)
	}

	h.Bus.Publish(bus.PersistManifest{
		Repo:   repo,
		Digest: digest,
		Size:   counted.n,
		Mime:   mime,
		Chunks: fanout.Chunks,
	})
}

// serveManifestFallback looks up the last-known digest for (name, tag) and
// serves the content-addressed blob behind it, exactly as a cached blob.
func (h *Handler) serveManifestFallback(w http.ResponseWriter, r *http.Request, repo registryref.Repository) {
	rec, err := h.Index.Get(r.Context(), repo.Name, repo.Reference)
	if err != nil {
		if err != manifestindex.ErrNotFound {
			h.Log.Warn("manifest index lookup failed", "name", repo.Name, "error", err)
			apierror.WriteJSON(w, apierror.Wrap(apierror.KindRegistryManifestInvalid, "manifest index lookup failed", err))
			return
		}
		apierror.WriteJSON(w, apierror.New(apierror.KindRegistryManifestUnknown, "manifest unavailable and no cached fallback"))
		return
	}
	digest, ok := rec.Digest()
	if !ok {
		apierror.WriteJSON(w, apierror.New(apierror.KindRegistryManifestUnknown, "manifest unavailable and no cached fallback"))
		return
	}

	synthetic := repo.WithDigest(digest)
	f, err := h.Store.Read(synthetic)
	if err != nil {
		h.Log.Warn("manifest index entry present but blob missing", "name", repo.Name, "digest", digest.String())
		apierror.WriteJSON(w, apierror.New(apierror.KindRegistryManifestUnknown, "manifest unavailable and no cached fallback"))
		return
	}
	defer f.Close()

	w.Header().Set("Docker-Content-Digest", digest.String())
	w.Header().Set("ETag", digest.String())
	w.Header().Set("Content-Type", rec.Mime)
	h.Metrics.CachedResponses.Inc()
	h.Metrics.ResponseCode.WithLabelValues("200", "manifests", repo.Name).Inc()
	http.ServeContent(w, r, "", time.Time{}, f)
}
