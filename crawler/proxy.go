package crawler

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// proxyCheckTimeout bounds each liveness check against the echo endpoint.
const proxyCheckTimeout = 10 * time.Second

// ProxyPool performs round-robin selection over a configured list of
// outbound proxy URLs, with an async liveness check that drops dead
// proxies. An empty pool means direct connection (Get returns nil, nil).
type ProxyPool struct {
	client  *http.Client
	echoURL string
	mu      sync.Mutex
	proxies []*url.URL
	nextIdx int
}

// NewProxyPool builds a pool from raw proxy URL strings, skipping any that
// fail to parse. echoURL is the liveness-check endpoint each proxy is
// expected to reach; it should return HTTP 200 when the proxy is usable.
func NewProxyPool(client *http.Client, echoURL string, rawProxies []string) *ProxyPool {
	pool := &ProxyPool{client: client, echoURL: echoURL}
	for _, raw := range rawProxies {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		pool.proxies = append(pool.proxies, parsed)
	}
	return pool
}

// Get returns the next proxy in round-robin order, or nil if the pool is
// empty (direct connection). Concurrent calls are serialized on the index.
func (p *ProxyPool) Get() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return nil
	}
	proxy := p.proxies[p.nextIdx]
	p.nextIdx = (p.nextIdx + 1) % len(p.proxies)
	return proxy
}

// Len reports the number of live proxies currently in the pool.
func (p *ProxyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Revalidate pings the echo endpoint through every configured proxy and
// drops any that fail to respond 200 within proxyCheckTimeout. Safe to run
// concurrently with Get; the swap is atomic under the pool mutex.
func (p *ProxyPool) Revalidate(ctx context.Context) {
	p.mu.Lock()
	candidates := make([]*url.URL, len(p.proxies))
	copy(candidates, p.proxies)
	p.mu.Unlock()

	if len(candidates) == 0 {
		return
	}

	var wg sync.WaitGroup
	live := make([]bool, len(candidates))

	for i, proxy := range candidates {
		wg.Add(1)
		go func(i int, proxy *url.URL) {
			defer wg.Done()
			live[i] = p.checkProxy(ctx, proxy)
		}(i, proxy)
	}
	wg.Wait()

	survivors := make([]*url.URL, 0, len(candidates))
	for i, ok := range live {
		if ok {
			survivors = append(survivors, candidates[i])
		}
	}

	p.mu.Lock()
	p.proxies = survivors
	if p.nextIdx >= len(p.proxies) {
		p.nextIdx = 0
	}
	p.mu.Unlock()
}

func (p *ProxyPool) checkProxy(ctx context.Context, proxy *url.URL) bool {
	checkCtx, cancel := context.WithTimeout(ctx, proxyCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, p.echoURL, nil)
	if err != nil {
		return false
	}

	checkClient := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxy)},
		Timeout:   proxyCheckTimeout,
	}
	if p.client != nil {
		checkClient.Jar = p.client.Jar
	}

	resp, err := checkClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
