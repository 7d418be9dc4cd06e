package crawler

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

// robotsEntryTTL is the cache lifetime for a permissive (allow-all) or
// successfully parsed robots.txt entry: the run lifetime, approximated by a
// long TTL so a multi-hour run still refreshes occasionally.
const robotsEntryTTL = 24 * time.Hour

// robotsDenyTTL is the short cache lifetime applied when the robots.txt
// fetch itself returned a 5xx: that's treated as a deny, retried after a
// short cool-down rather than cached for the run.
const robotsDenyTTL = 60 * time.Second

// cachedRobots stores parsed robots.txt data with fetch timestamp. A nil
// data field with denyAll=false means "permissive" (404/4xx/network error);
// a nil data field with denyAll=true means "deny" (5xx), subject to the
// short robotsDenyTTL rather than robotsEntryTTL.
type cachedRobots struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	denyAll   bool
}

func (c *cachedRobots) ttl() time.Duration {
	if c.denyAll {
		return robotsDenyTTL
	}
	return robotsEntryTTL
}

// RobotsChecker fetches and caches robots.txt rules per host. Fetches
// always use https, regardless of the scheme of the page being checked:
// robots.txt is a host-level policy, and fetching it over https avoids a
// plaintext round trip even when the pages it governs are plain http.
type RobotsChecker struct {
	client *http.Client
	cache  sync.Map // host string -> *cachedRobots
}

// NewRobotsChecker creates a RobotsChecker with the given HTTP client.
func NewRobotsChecker(client *http.Client) *RobotsChecker {
	return &RobotsChecker{client: client}
}

// Allowed checks if the given URL is allowed to be crawled by the user agent.
// Returns true if allowed, false if disallowed by robots.txt.
// Errors (network, parsing) result in allow-all behavior.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL, userAgent string) (bool, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		// Invalid URL - allow by default
		return true, fmt.Errorf("parse URL: %w", err)
	}

	host := parsedURL.Host
	if host == "" {
		return true, nil
	}

	if cached, ok := r.cache.Load(host); ok {
		cachedEntry, ok := cached.(*cachedRobots)
		if !ok || cachedEntry == nil {
			r.cache.Delete(host)
		} else if time.Since(cachedEntry.fetchedAt) < cachedEntry.ttl() {
			if cachedEntry.denyAll {
				return false, nil
			}
			if cachedEntry.data == nil {
				return true, nil
			}
			return cachedEntry.data.TestAgent(parsedURL.Path, userAgent), nil
		}
	}

	robotsURL := fmt.Sprintf("https://%s/robots.txt", host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		r.cachePermissive(host)
		return true, fmt.Errorf("create robots.txt request for host %s: %w", host, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		// Network error (timeout, connection refused, etc.) - permissive
		r.cachePermissive(host)
		return true, fmt.Errorf("fetch robots.txt for host %s: %w", host, err)
	}

	body, readErr := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if readErr != nil {
		r.cachePermissive(host)
		if closeErr != nil {
			return true, fmt.Errorf("read robots.txt body for host %s: %w (close error: %v)", host, readErr, closeErr)
		}
		return true, fmt.Errorf("read robots.txt body for host %s: %w", host, readErr)
	}
	if closeErr != nil {
		r.cachePermissive(host)
		return true, fmt.Errorf("close robots.txt response body for host %s: %w", host, closeErr)
	}

	// 5xx: deny for a short TTL, then retry.
	if resp.StatusCode >= 500 {
		r.cacheDeny(host)
		return false, nil
	}

	// 404/4xx: robots.txt absent or inaccessible - permissive.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 400 {
		r.cachePermissive(host)
		return true, nil
	}

	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		r.cachePermissive(host)
		return true, fmt.Errorf("parse robots.txt for host %s: %w", host, err)
	}

	if robots == nil {
		r.cachePermissive(host)
		return true, nil
	}

	r.cache.Store(host, &cachedRobots{
		data:      robots,
		fetchedAt: time.Now(),
	})

	return robots.TestAgent(parsedURL.Path, userAgent), nil
}

// cachePermissive stores a nil-data, non-deny entry for the run lifetime.
func (r *RobotsChecker) cachePermissive(host string) {
	r.cache.Store(host, &cachedRobots{
		data:      nil,
		fetchedAt: time.Now(),
	})
}

// cacheDeny stores a deny entry with the short robotsDenyTTL.
func (r *RobotsChecker) cacheDeny(host string) {
	r.cache.Store(host, &cachedRobots{
		data:      nil,
		fetchedAt: time.Now(),
		denyAll:   true,
	})
}

// ClearCache removes all cached robots.txt entries.
// Useful for testing.
func (r *RobotsChecker) ClearCache() {
	r.cache = sync.Map{}
}
