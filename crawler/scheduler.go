// Package crawler implements the focused-crawl engine: a best-first
// frontier scheduler coupled with per-host politeness, proxy rotation,
// content deduplication, link scoring, and an online relevance learner.
package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lukemcguire/topicrawl/extractor"
	"github.com/lukemcguire/topicrawl/learner"
	"github.com/lukemcguire/topicrawl/result"
	"github.com/lukemcguire/topicrawl/scorer"
	"github.com/lukemcguire/topicrawl/urlutil"
)

// seedPriority is the priority assigned to every seed URL, high enough to
// be drawn before any discovered link regardless of scoring.
const seedPriority = 1000.0

// idlePollInterval is how long an idle worker sleeps between frontier pop
// attempts while waiting for either new work or run termination.
const idlePollInterval = 20 * time.Millisecond

// memoryCheckInterval throttles how often the Scheduler samples the
// MemoryWatcher relative to URLs processed.
const memoryCheckInterval = 50

// Scheduler binds the Rate Limiter, Robots Cache, Proxy Pool, Dedup
// Filter, Frontier, Fetcher, Link Scorer, and Relevance Learner into a
// single per-URL pipeline: pop, check robots, fetch, dedup, extract, emit
// every extracted page with its relevance score, push discovered links.
type Scheduler struct {
	cfg Config

	frontier    *Frontier
	rateLimiter *RateLimiter
	robots      *RobotsChecker
	proxies     *ProxyPool
	dedup       *DedupFilter
	fetcher     *Fetcher
	scorer      *scorer.Scorer
	learner     *learner.Learner
	mem         *MemoryWatcher
	globalAdmit *rate.Limiter

	progressCh chan<- CrawlEvent

	mu              sync.Mutex
	pages           []result.PageRecord
	skipped         []result.SkippedURL
	hostAccepted    map[string]int
	urlsVisited     int
	duplicates      int
	robotsDenied    int
	extractFailures int
	fetchFailures   int

	loggedRobotsDeny sync.Map // host string -> struct{}, for once-per-host deny logging

	inFlight      int64
	throttleLevel int64 // atomic ThrottleLevel, last value observed by applyMemoryThrottle
}

// New builds a Scheduler from cfg. progressCh is optional; pass nil to
// disable progress events.
func New(cfg Config, progressCh chan<- CrawlEvent) (*Scheduler, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 16
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "topicrawl/1.0 (+https://github.com/lukemcguire/topicrawl)"
	}
	if cfg.ProxyEchoURL == "" {
		cfg.ProxyEchoURL = "https://httpbin.org/ip"
	}

	visited, err := NewVisitedTracker()
	if err != nil {
		return nil, fmt.Errorf("create visited tracker: %w", err)
	}

	robotsClient := &http.Client{Timeout: 10 * time.Second}

	var globalAdmit *rate.Limiter
	if cfg.GlobalRateLimit > 0 {
		globalAdmit = rate.NewLimiter(rate.Limit(cfg.GlobalRateLimit), int(cfg.GlobalRateLimit)+1)
	}

	warnPercent, criticalPercent := ThresholdsForConcurrency(cfg.Concurrency)
	mem := NewMemoryWatcherWithThresholds(1024, warnPercent, criticalPercent)

	s := &Scheduler{
		cfg:          cfg,
		frontier:     NewFrontier(visited),
		rateLimiter:  NewRateLimiter(),
		robots:       NewRobotsChecker(robotsClient),
		proxies:      NewProxyPool(&http.Client{}, cfg.ProxyEchoURL, cfg.Proxies),
		dedup:        NewDedupFilter(),
		fetcher:      NewFetcher(cfg),
		scorer:       scorer.New(),
		learner:      learner.New(),
		mem:          mem,
		globalAdmit:  globalAdmit,
		progressCh:   progressCh,
		hostAccepted: make(map[string]int),
	}

	mem.SetThrottleCallback(func(level ThrottleLevel) {
		slog.Info("memory throttle level changed", "level", throttleLevelName(level))
	})

	return s, nil
}

// throttleLevelName renders a ThrottleLevel for logging.
func throttleLevelName(level ThrottleLevel) string {
	switch level {
	case ThrottleCritical:
		return "critical"
	case ThrottleWarning:
		return "warning"
	default:
		return "normal"
	}
}

// Run seeds the frontier from cfg.SeedURLs and drives cfg.Concurrency
// workers until the frontier is empty and no fetch is in flight.
func (s *Scheduler) Run(ctx context.Context) (*result.Result, error) {
	start := time.Now()
	defer func() {
		if err := s.frontier.Close(); err != nil {
			slog.Warn("closing frontier", "error", err)
		}
	}()

	for _, seed := range s.cfg.SeedURLs {
		normalized, err := urlutil.Normalize(seed)
		if err != nil {
			s.recordSkip(seed, "", result.CategoryUnknown, err.Error())
			continue
		}
		s.frontier.Push(normalized, 0, seedPriority)
	}

	if s.proxies.Len() > 0 {
		s.proxies.Revalidate(ctx)
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.cfg.Concurrency; i++ {
		g.Go(func() error {
			return s.workerLoop(groupCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("crawl run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return &result.Result{
		Pages:     append([]result.PageRecord(nil), s.pages...),
		Skipped:   append([]result.SkippedURL(nil), s.skipped...),
		LearnerOn: s.learner.IsTrained(),
		Stats: result.CrawlStats{
			URLsVisited:      s.urlsVisited,
			PagesEmitted:     len(s.pages),
			DuplicatesFound:  s.duplicates,
			RobotsDenied:     s.robotsDenied,
			ExtractFailures:  s.extractFailures,
			FetchFailures:    s.fetchFailures,
			FrontierOverflow: s.frontier.OverflowDropped(),
			Duration:         time.Since(start),
		},
	}, nil
}

// workerLoop pulls entries from the frontier and drives them through the
// state machine until the frontier is drained and no sibling worker has
// work in flight, or the context is cancelled.
func (s *Scheduler) workerLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		entry, ok := s.frontier.Pop()
		if !ok {
			if atomic.LoadInt64(&s.inFlight) == 0 {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idlePollInterval):
				continue
			}
		}

		atomic.AddInt64(&s.inFlight, 1)
		s.processEntry(ctx, entry)
		atomic.AddInt64(&s.inFlight, -1)
	}
}

// processEntry drives a single frontier entry through ROBOTS_CHECK,
// HOST_BUDGET, RATE_WAIT, FETCH, DEDUP, EXTRACT, SCORE, EMIT, LEARN, and
// ENUMERATE_LINKS.
func (s *Scheduler) processEntry(ctx context.Context, entry FrontierEntry) {
	host := urlutil.Host(entry.URL)

	s.mu.Lock()
	s.urlsVisited++
	s.mu.Unlock()

	if entry.Depth > s.cfg.MaxDepth {
		s.recordSkip(entry.URL, "", result.CategoryDepthExceeded, "")
		s.emitProgress(entry.URL, false, 0, nil)
		return
	}

	allowed, robotsErr := s.robots.Allowed(ctx, entry.URL, s.cfg.UserAgent)
	if robotsErr != nil {
		s.emitProgress(entry.URL, false, 0, robotsErr)
	}
	if !allowed {
		s.mu.Lock()
		s.robotsDenied++
		s.mu.Unlock()
		if _, already := s.loggedRobotsDeny.LoadOrStore(host, struct{}{}); !already {
			slog.Info("robots denied", "host", host, "url", entry.URL)
		}
		s.recordSkip(entry.URL, "", result.CategoryRobotsDenied, "")
		s.emitProgress(entry.URL, false, 0, nil)
		return
	}

	if s.cfg.MaxURLsPerHost > 0 {
		s.mu.Lock()
		accepted := s.hostAccepted[host]
		s.mu.Unlock()
		if accepted >= s.cfg.MaxURLsPerHost {
			s.recordSkip(entry.URL, "", result.CategoryHostBudget, "")
			s.emitProgress(entry.URL, false, 0, nil)
			return
		}
	}

	if s.globalAdmit != nil {
		if err := s.globalAdmit.Wait(ctx); err != nil {
			return
		}
	}
	if err := s.rateLimiter.Wait(ctx, host); err != nil {
		return
	}

	proxy := s.proxies.Get()
	outcome := s.fetcher.Fetch(ctx, entry.URL, proxy)
	if outcome.Err != nil {
		s.rateLimiter.Update(host, false)
		s.mu.Lock()
		s.fetchFailures++
		s.mu.Unlock()
		slog.Warn("fetch failed", "url", entry.URL, "error", outcome.Err, "category", outcome.ErrCat)
		s.recordSkip(entry.URL, "", outcome.ErrCat, outcome.Err.Error())
		s.emitProgressDetailed(entry.URL, false, 0, outcome.StatusCode, outcome.ErrCat, outcome.Err)
		return
	}
	if outcome.StatusCode >= 400 {
		s.rateLimiter.Update(host, false)
		s.mu.Lock()
		s.fetchFailures++
		s.mu.Unlock()
		slog.Warn("fetch non-2xx", "url", entry.URL, "status", outcome.StatusCode, "category", outcome.ErrCat)
		s.recordSkip(entry.URL, "", outcome.ErrCat, fmt.Sprintf("status %d", outcome.StatusCode))
		s.emitProgressDetailed(entry.URL, false, 0, outcome.StatusCode, outcome.ErrCat, nil)
		return
	}
	s.rateLimiter.Update(host, true)

	if s.dedup.IsDuplicate(outcome.Body) {
		s.mu.Lock()
		s.duplicates++
		s.mu.Unlock()
		s.recordSkip(entry.URL, "", result.CategoryDuplicate, "")
		s.emitProgress(entry.URL, false, 0, nil)
		return
	}

	contentType := ""
	if outcome.Headers != nil {
		contentType = outcome.Headers.Get("Content-Type")
	}
	if isBinaryContentType(contentType) {
		s.mu.Lock()
		s.extractFailures++
		s.mu.Unlock()
		s.recordSkip(entry.URL, "", result.CategoryExtractionFailed, "binary content type")
		s.emitProgress(entry.URL, false, 0, nil)
		return
	}

	record, extractErr := extractor.Extract(bytes.NewReader(outcome.Body), entry.URL)
	if extractErr != nil || record == nil {
		s.mu.Lock()
		s.extractFailures++
		s.mu.Unlock()
		detail := ""
		if extractErr != nil {
			detail = extractErr.Error()
		}
		slog.Info("extraction failed", "url", entry.URL, "detail", detail)
		s.recordSkip(entry.URL, "", result.CategoryExtractionFailed, detail)
		s.emitProgress(entry.URL, false, 0, nil)
		return
	}

	relevance := s.learner.Predict(record.Text)
	record.RelevanceScore = relevance

	s.mu.Lock()
	s.pages = append(s.pages, *record)
	s.hostAccepted[host]++
	s.mu.Unlock()

	label := 0
	if relevance >= learner.SelfTrainThreshold {
		label = 1
	}
	s.learner.Update(record.Text, label)

	s.enumerateLinks(ctx, entry, outcome, record, host)

	s.emitProgress(entry.URL, true, relevance, nil)

	s.mu.Lock()
	visited := s.urlsVisited
	s.mu.Unlock()
	if visited%memoryCheckInterval == 0 {
		s.applyMemoryThrottle()
	}
}

// enumerateLinks extracts raw <a href> candidates from the fetched body,
// scores each, and pushes survivors into the frontier.
func (s *Scheduler) enumerateLinks(ctx context.Context, entry FrontierEntry, outcome FetchOutcome, record *result.PageRecord, host string) {
	base := outcome.FinalURL
	if base == nil {
		parsed, err := url.Parse(entry.URL)
		if err != nil {
			return
		}
		base = parsed
	}

	links, err := ExtractLinks(bytes.NewReader(outcome.Body), base)
	if err != nil {
		return
	}

	nextDepth := entry.Depth + 1
	if nextDepth > s.cfg.MaxDepth {
		return
	}

	s.mu.Lock()
	hostVisited := make(map[string]int, len(s.hostAccepted))
	for h, c := range s.hostAccepted {
		hostVisited[h] = c
	}
	s.mu.Unlock()

	for _, link := range links {
		if ctx.Err() != nil {
			return
		}
		linkHost := urlutil.Host(link.URL)
		score := s.scorer.Score(link.URL, scorer.Context{
			ReferrerText:       scoringText(link.AnchorText, record.Text),
			HostVisitedCount:   hostVisited[linkHost],
			TargetKeywords:     s.cfg.TargetKeywords,
			PriorityRules:      s.cfg.PriorityRules,
			KeywordWeights:     s.cfg.KeywordWeights,
			ContentTypeWeights: s.cfg.ContentTypeWeights,
		})
		s.frontier.Push(link.URL, nextDepth, score)
	}
}

// minAnchorWords is the shortest anchor text the Link Scorer treats as
// meaningful on its own. Real anchors are frequently "click here" or
// "read more," which carry no topical signal, so short anchors fall back
// to the referring page's full extracted text instead, trading anchor
// specificity for a larger sample of topical signal.
const minAnchorWords = 3

// scoringText picks what the Link Scorer sees for one candidate: the
// anchor text itself when it's substantive, otherwise the referrer's text.
func scoringText(anchorText, referrerText string) string {
	if len(strings.Fields(anchorText)) >= minAnchorWords {
		return anchorText
	}
	return referrerText
}

func (s *Scheduler) applyMemoryThrottle() {
	_, level := s.mem.Check()
	atomic.StoreInt64(&s.throttleLevel, int64(level))
	switch level {
	case ThrottleCritical:
		s.frontier.SetCap(frontierDefaultCap / 4)
	case ThrottleWarning:
		s.frontier.SetCap(frontierDefaultCap / 2)
	default:
		s.frontier.SetCap(frontierDefaultCap)
	}
}

func (s *Scheduler) recordSkip(rawURL, sourcePage string, reason result.ErrorCategory, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped = append(s.skipped, result.SkippedURL{
		URL:        rawURL,
		SourcePage: sourcePage,
		Reason:     reason,
		Detail:     detail,
	})
}

func (s *Scheduler) emitProgress(rawURL string, emitted bool, relevance float64, errValue error) {
	s.emitProgressDetailed(rawURL, emitted, relevance, 0, "", errValue)
}

func (s *Scheduler) emitProgressDetailed(rawURL string, emitted bool, relevance float64, statusCode int, cat result.ErrorCategory, errValue error) {
	if s.progressCh == nil {
		return
	}

	throttle := ThrottleLevel(atomic.LoadInt64(&s.throttleLevel))

	s.mu.Lock()
	evt := CrawlEvent{
		URL:            rawURL,
		StatusCode:     statusCode,
		ErrorCategory:  cat,
		Emitted:        emitted,
		RelevanceScore: relevance,
		URLsVisited:    s.urlsVisited,
		PagesEmitted:   len(s.pages),
		FrontierSize:   s.frontier.Len(),
		LearnerTrained: s.learner.IsTrained(),
		Throttle:       throttle,
	}
	s.mu.Unlock()

	if errValue != nil {
		evt.Error = errValue.Error()
	}

	select {
	case s.progressCh <- evt:
	default:
	}
}
