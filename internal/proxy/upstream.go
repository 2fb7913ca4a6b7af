package proxy

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/re-cinq/registry-cache/internal/config"
)

// UpstreamClient executes requests against whichever upstream a client's
// Host header resolves to. Dialing is capped at 5 seconds and waiting for
// upstream response headers is capped at 15 seconds; CPU-bound work
// (digest hashing) happens in the persister and is never gated by these.
type UpstreamClient struct {
	Client *http.Client
	Table  map[string]config.Upstream
}

func NewUpstreamClient(table map[string]config.Upstream) *UpstreamClient {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: 15 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &UpstreamClient{
		Client: &http.Client{Transport: transport},
		Table:  table,
	}
}

// Resolve looks up the exact-match upstream for a client Host header. No
// wildcards are considered.
func (c *UpstreamClient) Resolve(host string) (config.Upstream, bool) {
	u, ok := c.Table[host]
	return u, ok
}

func baseURL(u config.Upstream) string {
	hostport := u.Registry
	if u.Port != "" {
		hostport = hostport + ":" + u.Port
	}
	scheme := u.Schema
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + hostport
}

// Do builds and executes an upstream request mirroring r: same method,
// path, and query; all client headers copied except Host; X-Forwarded-For
// appended with the peer address.
func (c *UpstreamClient) Do(r *http.Request, upstream config.Upstream) (*http.Response, error) {
	target := baseURL(upstream) + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		return nil, fmt.Errorf("proxy: building upstream request: %w", err)
	}

	for key, values := range r.Header {
		if strings.EqualFold(key, "Host") {
			continue
		}
		for _, v := range values {
			outReq.Header.Add(key, v)
		}
	}
	if host, _, splitErr := net.SplitHostPort(r.RemoteAddr); splitErr == nil {
		outReq.Header.Add("X-Forwarded-For", host)
	} else if r.RemoteAddr != "" {
		outReq.Header.Add("X-Forwarded-For", r.RemoteAddr)
	}
	outReq.Host = upstream.Registry

	return c.Client.Do(outReq)
}
