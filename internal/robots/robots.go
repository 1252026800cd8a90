// Package robots implements the per-host robots.txt fetch/cache/allow
// gate. Grounded on
// lukemcguire-vibraphone-template/src/crawler/robots.go: a sync.Map
// cache keyed by host, fail-open on fetch/parse error, and a nil cache
// entry meaning "allow all".
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const fetchTimeout = 10 * time.Second

type cachedRobots struct {
	data *robotstxt.RobotsData
}

// Gate fetches, caches, and consults robots.txt per host.
type Gate struct {
	client    *http.Client
	cache     sync.Map // host -> *cachedRobots
	Respect   bool
	UserAgent string
}

// New builds a Gate. If client is nil, a default client with a bounded
// timeout is used.
func New(client *http.Client, respect bool, userAgent string) *Gate {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &Gate{client: client, Respect: respect, UserAgent: userAgent}
}

// Allowed reports whether rawURL may be fetched. When the gate is
// configured not to respect robots.txt, it always returns true. Any
// fetch, read, or parse failure fails open (allow).
func (g *Gate) Allowed(ctx context.Context, rawURL string) bool {
	if g == nil || !g.Respect {
		return true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return true
	}

	host := parsed.Host
	if cached, ok := g.cache.Load(host); ok {
		entry := cached.(*cachedRobots)
		if entry.data == nil {
			return true
		}
		return entry.data.TestAgent(parsed.Path, g.UserAgent)
	}

	data := g.fetch(ctx, parsed.Scheme, host)
	g.cache.Store(host, &cachedRobots{data: data})
	if data == nil {
		return true
	}
	return data.TestAgent(parsed.Path, g.UserAgent)
}

// fetch retrieves and parses robots.txt for host, returning nil
// (allow-all) on any timeout, network error, 404, 5xx, or parse failure.
func (g *Gate) fetch(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	if scheme == "" {
		scheme = "http"
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}

// ClearCache removes all cached entries. Useful for testing.
func (g *Gate) ClearCache() {
	g.cache = sync.Map{}
}
