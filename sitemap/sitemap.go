// Package sitemap parses sitemap.org-namespaced XML sitemaps and sitemap
// indexes into a flat list of URLs, for use as an optional pre-seed step
// before a crawl starts.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// URLEntry is one <url> entry from a sitemap urlset.
type URLEntry struct {
	URL        string
	LastMod    time.Time
	ChangeFreq string
	Priority   float64
}

type urlSetXML struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc        string `xml:"loc"`
		LastMod    string `xml:"lastmod"`
		ChangeFreq string `xml:"changefreq"`
		Priority   string `xml:"priority"`
	} `xml:"url"`
}

type sitemapIndexXML struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// lastModLayouts covers the date and date-time forms sitemaps.org allows
// for <lastmod> (W3C datetime, with and without a time component).
var lastModLayouts = []string{
	time.RFC3339,
	"2006-01-02",
}

// Fetch retrieves sitemapURL and returns its URL entries. If the document
// is a sitemap index, Fetch follows each referenced sitemap and
// concatenates their entries. maxURLs caps the number of entries returned;
// 0 means unlimited.
func Fetch(ctx context.Context, client *http.Client, sitemapURL string, maxURLs int) ([]URLEntry, error) {
	return fetch(ctx, client, sitemapURL, maxURLs)
}

func fetch(ctx context.Context, client *http.Client, sitemapURL string, maxURLs int) ([]URLEntry, error) {
	body, err := fetchBody(ctx, client, sitemapURL)
	if err != nil {
		return nil, err
	}

	root, err := rootElement(body)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}

	var entries []URLEntry
	if root == "sitemapindex" {
		var idx sitemapIndexXML
		if err := xml.Unmarshal(body, &idx); err != nil {
			return nil, fmt.Errorf("parse sitemap index %s: %w", sitemapURL, err)
		}
		for _, ref := range idx.Sitemaps {
			if maxURLs > 0 && len(entries) >= maxURLs {
				break
			}
			remaining := 0
			if maxURLs > 0 {
				remaining = maxURLs - len(entries)
			}
			nested, err := fetch(ctx, client, ref.Loc, remaining)
			if err != nil {
				return nil, err
			}
			entries = append(entries, nested...)
		}
	} else {
		var set urlSetXML
		if err := xml.Unmarshal(body, &set); err != nil {
			return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
		}
		for _, u := range set.URLs {
			if u.Loc == "" {
				continue
			}
			entries = append(entries, URLEntry{
				URL:        u.Loc,
				LastMod:    parseLastMod(u.LastMod),
				ChangeFreq: u.ChangeFreq,
				Priority:   parsePriority(u.Priority),
			})
		}
	}

	if maxURLs > 0 && len(entries) > maxURLs {
		entries = entries[:maxURLs]
	}
	return entries, nil
}

// fetchBody performs the GET and returns the raw body, treating any
// non-2xx response as an error (a missing or broken sitemap is not fatal
// to the caller's crawl, just to this pre-seed step).
func fetchBody(ctx context.Context, client *http.Client, sitemapURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build sitemap request for %s: %w", sitemapURL, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch sitemap %s: status %d", sitemapURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sitemap body for %s: %w", sitemapURL, err)
	}
	return body, nil
}

// rootElement returns the local name of the document's top-level element,
// which distinguishes a <urlset> from a <sitemapindex> without assuming
// either shape up front.
func rootElement(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func parseLastMod(raw string) time.Time {
	for _, layout := range lastModLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parsePriority(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
