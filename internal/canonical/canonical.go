// Package canonical reduces article links to a stable identity form:
// redirect-wrappers from aggregator hosts are resolved to their terminal
// target, tracking parameters are stripped, and the remainder is normalized
// so equal links always produce equal strings.
package canonical

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"NewsPipeline/internal/ports"
)

// Canonicalizer normalizes URLs. Redirect resolution is memoized so the
// same wrapper link is only fetched once per run.
type Canonicalizer struct {
	client        *http.Client
	redirectHosts map[string]struct{}
	logger        *slog.Logger

	mu   sync.Mutex
	memo map[string]string
}

var _ ports.Canonicalizer = (*Canonicalizer)(nil)

// New builds a canonicalizer that unwraps links pointing at the given hosts.
func New(client *http.Client, redirectHosts []string, logger *slog.Logger) *Canonicalizer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	hosts := make(map[string]struct{}, len(redirectHosts))
	for _, h := range redirectHosts {
		hosts[strings.ToLower(strings.TrimPrefix(h, "www."))] = struct{}{}
	}
	return &Canonicalizer{
		client:        client,
		redirectHosts: hosts,
		logger:        logger,
		memo:          map[string]string{},
	}
}

// Canonicalize returns the canonical form of rawURL. It never fails; input
// that cannot be parsed or resolved comes back best-effort normalized.
func (c *Canonicalizer) Canonicalize(ctx context.Context, rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	c.mu.Lock()
	if cached, ok := c.memo[rawURL]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	resolved := rawURL
	if c.isRedirectWrapper(rawURL) {
		resolved = c.resolveRedirect(ctx, rawURL)
	}
	result := Normalize(resolved)

	c.mu.Lock()
	c.memo[rawURL] = result
	c.mu.Unlock()
	return result
}

func (c *Canonicalizer) isRedirectWrapper(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	_, ok := c.redirectHosts[host]
	return ok
}

// resolveRedirect follows the wrapper link once (HEAD, redirects followed)
// and reports the final location. Any failure falls back to the input.
func (c *Canonicalizer) resolveRedirect(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return rawURL
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("redirect resolution failed", "url", rawURL, "error", err)
		}
		return rawURL
	}
	defer resp.Body.Close()

	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return rawURL
}

// Normalize applies the pure normalization steps: lowercase host, no
// fragment, tracking parameters removed, remaining parameters re-sorted by
// key, bare root path collapsed.
func Normalize(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	kept := url.Values{}
	keys := make([]string, 0)
	for key, vals := range u.Query() {
		if isTrackingParam(key) {
			continue
		}
		kept[key] = vals
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		for _, v := range kept[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	u.RawQuery = b.String()

	if u.Path == "/" {
		u.Path = ""
	}

	return u.String()
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	switch key {
	case "fbclid", "gclid", "mc_cid", "mc_eid", "igshid":
		return true
	}
	return false
}
