package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lukemcguire/topicrawl/result"
)

// maxBodyBytes bounds how much of a response body Fetch will read, so a
// misbehaving server can't exhaust memory with an unbounded response.
const maxBodyBytes = 20 << 20 // 20MB

func readAllLimited(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}

// isBinaryContentType returns true if the content type indicates a binary file
// that should not be parsed for links (images, PDFs, videos, audio, archives, fonts).
func isBinaryContentType(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}

	if strings.HasPrefix(contentType, "image/") {
		return true
	}
	if strings.HasPrefix(contentType, "video/") {
		return true
	}
	if strings.HasPrefix(contentType, "audio/") {
		return true
	}
	if strings.HasPrefix(contentType, "font/") {
		return true
	}

	binaryTypes := []string{
		"application/pdf",
		"application/zip",
		"application/x-zip-compressed",
		"application/gzip",
		"application/vnd.rar",
		"application/x-7z-compressed",
		"application/octet-stream",
	}
	for _, bt := range binaryTypes {
		if contentType == bt {
			return true
		}
	}
	return false
}

// Config holds crawler-wide configuration.
type Config struct {
	SeedURLs           []string
	MaxDepth           int
	MaxURLsPerHost     int
	Concurrency        int
	RequestTimeout     time.Duration
	UserAgent          string
	Proxies            []string
	ProxyEchoURL       string
	GlobalRateLimit    float64 // optional cross-host admission cap in requests/sec; 0 disables it
	PriorityRules      map[string]float64
	KeywordWeights     map[string]float64
	ContentTypeWeights map[string]float64
	TargetKeywords     []string
	OutputFile         string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(seedURLs []string) Config {
	return Config{
		SeedURLs:       seedURLs,
		MaxDepth:       0,
		MaxURLsPerHost: 0,
		Concurrency:    16,
		RequestTimeout: 30 * time.Second,
		UserAgent:      "topicrawl/1.0 (+https://github.com/lukemcguire/topicrawl)",
		ProxyEchoURL:   "https://httpbin.org/ip",
	}
}

// FetchOutcome is one HTTP GET's result: status, body, and headers on
// success, or a classified error on transport/protocol failure. No retries
// happen at this layer; retry/back-off policy lives in the Scheduler via
// the Rate Limiter.
type FetchOutcome struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	FinalURL   *url.URL
	Err        error
	ErrCat     result.ErrorCategory
}

// Fetcher performs the engine's single HTTP GET per URL, routed through an
// optional proxy.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

// NewFetcher builds a Fetcher using cfg's user agent and request timeout.
// The base client carries no proxy; Fetch applies one per call so different
// calls can rotate through the ProxyPool.
func NewFetcher(cfg Config) *Fetcher {
	return &Fetcher{
		client:    &http.Client{},
		userAgent: cfg.UserAgent,
		timeout:   cfg.RequestTimeout,
	}
}

// Fetch performs one GET against rawURL. If proxy is non-nil, the request
// is routed through it; otherwise the connection is direct.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, proxy *url.URL) FetchOutcome {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchOutcome{Err: err, ErrCat: result.ClassifyError(err, 0, false)}
	}
	req.Header.Set("User-Agent", f.userAgent)

	client := f.client
	if proxy != nil {
		transport := &http.Transport{Proxy: http.ProxyURL(proxy)}
		client = &http.Client{Transport: transport, Timeout: f.timeout}
	}

	// Follow at most maxRedirects redirects; one more fails the fetch.
	const maxRedirects = 5
	limited := *client
	limited.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}

	resp, err := limited.Do(req)
	if err != nil {
		return FetchOutcome{Err: err, ErrCat: result.ClassifyError(err, 0, false)}
	}
	defer resp.Body.Close()

	body, err := readAllLimited(resp.Body)
	if err != nil {
		return FetchOutcome{Err: fmt.Errorf("read response body for %s: %w", rawURL, err),
			ErrCat: result.ClassifyError(err, 0, false)}
	}

	outcome := FetchOutcome{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
		FinalURL:   resp.Request.URL,
	}
	if resp.StatusCode >= 400 {
		outcome.ErrCat = result.ClassifyError(nil, resp.StatusCode, false)
	}
	return outcome
}
