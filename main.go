// Package main provides the topicrawl CLI entrypoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lukemcguire/topicrawl/crawler"
	"github.com/lukemcguire/topicrawl/result"
	"github.com/lukemcguire/topicrawl/sitemap"
	"github.com/lukemcguire/topicrawl/tui"
)

// fileConfig mirrors the external configuration object: the JSON shape
// accepted via -config, with CLI flags layered on top as overrides.
type fileConfig struct {
	SeedURLs           []string           `json:"seed_urls"`
	MaxDepth           int                `json:"max_depth"`
	MaxURLsPerHost     int                `json:"max_urls_per_host"`
	Concurrency        int                `json:"concurrency"`
	UserAgent          string             `json:"user_agent"`
	Proxies            []string           `json:"proxies"`
	ProxyEchoURL       string             `json:"proxy_echo_url"`
	GlobalRateLimit    float64            `json:"global_rate_limit"`
	PriorityRules      map[string]float64 `json:"priority_rules"`
	KeywordWeights     map[string]float64 `json:"keyword_weights"`
	ContentTypeWeights map[string]float64 `json:"content_type_weights"`
	TargetKeywords     []string           `json:"target_keywords"`
	OutputFile         string             `json:"output_file"`
	SitemapURL         string             `json:"sitemap_url"`
	SitemapMaxURLs     int                `json:"sitemap_max_urls"`
}

// loadFileConfig reads and parses a JSON configuration file. A missing
// path is not an error: callers fall back to flag-only configuration.
func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// cliFlags holds parsed command-line flags. Flags override the JSON
// config file when explicitly set.
type cliFlags struct {
	configPath  string
	concurrency int
	maxDepth    int
	maxPerHost  int
	userAgent   string
	outputFile  string
	timeout     time.Duration
	noTUI       bool
	sitemapURL  string
}

func parseFlags() *cliFlags {
	opts := &cliFlags{}
	flag.StringVar(&opts.configPath, "config", "", "path to JSON configuration file")
	flag.IntVar(&opts.concurrency, "concurrency", 0, "number of concurrent workers (overrides config)")
	flag.IntVar(&opts.maxDepth, "depth", -1, "maximum crawl depth, 0 = seeds only (overrides config)")
	flag.IntVar(&opts.maxPerHost, "max-per-host", 0, "maximum accepted pages per host (overrides config)")
	flag.StringVar(&opts.userAgent, "user-agent", "", "user agent string (overrides config)")
	flag.StringVar(&opts.outputFile, "o", "", "JSON output file, overwritten each run (overrides config)")
	flag.DurationVar(&opts.timeout, "request-timeout", 0, "per-request timeout (overrides config)")
	flag.BoolVar(&opts.noTUI, "no-tui", false, "run headless: print the summary instead of the terminal UI")
	flag.StringVar(&opts.sitemapURL, "sitemap", "", "optional sitemap.xml URL to pre-seed the frontier from (overrides config)")
	flag.Parse()
	return opts
}

// buildCrawlerConfig merges the JSON config file with CLI overrides and
// any positional seed URL arguments into a crawler.Config.
func buildCrawlerConfig(opts *cliFlags, fc fileConfig, seedArgs []string) crawler.Config {
	cfg := crawler.DefaultConfig(fc.SeedURLs)
	if len(seedArgs) > 0 {
		cfg.SeedURLs = seedArgs
	}

	cfg.MaxDepth = fc.MaxDepth
	cfg.MaxURLsPerHost = fc.MaxURLsPerHost
	cfg.Proxies = fc.Proxies
	cfg.GlobalRateLimit = fc.GlobalRateLimit
	cfg.PriorityRules = fc.PriorityRules
	cfg.KeywordWeights = fc.KeywordWeights
	cfg.ContentTypeWeights = fc.ContentTypeWeights
	cfg.TargetKeywords = fc.TargetKeywords
	cfg.OutputFile = fc.OutputFile

	if fc.Concurrency > 0 {
		cfg.Concurrency = fc.Concurrency
	}
	if fc.UserAgent != "" {
		cfg.UserAgent = fc.UserAgent
	}
	if fc.ProxyEchoURL != "" {
		cfg.ProxyEchoURL = fc.ProxyEchoURL
	}

	if opts.concurrency > 0 {
		cfg.Concurrency = opts.concurrency
	}
	if opts.maxDepth >= 0 {
		cfg.MaxDepth = opts.maxDepth
	}
	if opts.maxPerHost > 0 {
		cfg.MaxURLsPerHost = opts.maxPerHost
	}
	if opts.userAgent != "" {
		cfg.UserAgent = opts.userAgent
	}
	if opts.outputFile != "" {
		cfg.OutputFile = opts.outputFile
	}
	if opts.timeout > 0 {
		cfg.RequestTimeout = opts.timeout
	}

	return cfg
}

// seedURLsFromSitemap fetches sitemapURL (following a sitemap index if
// that's what it turns out to be) and returns the page URLs it lists, as
// an optional pre-seed step ahead of the crawl proper. maxURLs caps how
// many entries are pulled in; 0 means unlimited.
func seedURLsFromSitemap(ctx context.Context, sitemapURL string, maxURLs int) ([]string, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	entries, err := sitemap.Fetch(ctx, client, sitemapURL, maxURLs)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	urls := make([]string, len(entries))
	for i, e := range entries {
		urls[i] = e.URL
	}
	return urls, nil
}

// runTUI creates and runs the scheduler inside the Bubble Tea program,
// returning the final model.
func runTUI(ctx context.Context, cancel context.CancelFunc, cfg crawler.Config) (tui.Model, error) {
	progressCh := make(chan crawler.CrawlEvent, 100)
	sched, err := crawler.New(cfg, progressCh)
	if err != nil {
		return tui.Model{}, fmt.Errorf("create scheduler: %w", err)
	}

	tuiModel := tui.NewModel(ctx, cancel, sched, progressCh)
	program := tea.NewProgram(tuiModel)

	finalModel, err := program.Run()
	if err != nil {
		return tui.Model{}, fmt.Errorf("run tui: %w", err)
	}

	return finalModel.(tui.Model), nil
}

// runHeadless runs the scheduler directly, printing the summary to
// stdout instead of driving a terminal UI.
func runHeadless(ctx context.Context, cfg crawler.Config) (*result.Result, error) {
	sched, err := crawler.New(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	res, err := sched.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("crawl: %w", err)
	}
	result.PrintResults(os.Stdout, res)
	return res, nil
}

// writeOutputFile writes the emitted pages to outputFile, the run's single
// JSON sink, as one JSON array; any existing contents of the file are
// replaced.
func writeOutputFile(outputFile string, pages []result.PageRecord) error {
	if outputFile == "" {
		return nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "error closing output file: %v\n", cerr)
		}
	}()
	return result.WriteJSON(f, pages)
}

func main() {
	opts := parseFlags()

	fc, err := loadFileConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	seedArgs := flag.Args()
	sitemapURL := opts.sitemapURL
	if sitemapURL == "" {
		sitemapURL = fc.SitemapURL
	}
	if len(fc.SeedURLs) == 0 && len(seedArgs) == 0 && sitemapURL == "" {
		fmt.Fprintln(os.Stderr, "Usage: topicrawl [flags] <seed-url>...")
		fmt.Fprintln(os.Stderr, "Flags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := buildCrawlerConfig(opts, fc, seedArgs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if sitemapURL != "" {
		sitemapSeeds, err := seedURLsFromSitemap(ctx, sitemapURL, fc.SitemapMaxURLs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.SeedURLs = append(cfg.SeedURLs, sitemapSeeds...)
	}

	var res *result.Result

	if opts.noTUI {
		res, err = runHeadless(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else {
		finalTUIModel, err := runTUI(ctx, cancel, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		res = finalTUIModel.GetResult()
	}

	if res == nil {
		os.Exit(1)
	}

	if err := writeOutputFile(cfg.OutputFile, res.Pages); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if res.Stats.PagesEmitted == 0 {
		os.Exit(1)
	}
}
