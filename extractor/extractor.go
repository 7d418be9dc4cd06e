// Package extractor adapts go-readability's reader-mode HTML parser into
// the engine's PageRecord shape. It is a pure function over bytes: no
// network calls, no shared state.
package extractor

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"

	"github.com/lukemcguire/topicrawl/result"
)

// Extract parses html as the body of pageURL and returns a PageRecord. A
// nil PageRecord with a nil error means extraction produced no usable
// content (e.g. the page is a navigation shell with no article body); the
// caller must treat that as an extraction failure and skip the page while
// still marking the URL visited.
func Extract(html io.Reader, pageURL string) (*result.PageRecord, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract %q: parse URL: %w", pageURL, err)
	}

	article, err := readability.FromReader(html, parsed)
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", pageURL, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, nil
	}

	record := &result.PageRecord{
		URL:     pageURL,
		Title:   strings.TrimSpace(article.Title),
		Text:    text,
		Summary: strings.TrimSpace(article.Excerpt),
	}

	if article.Byline != "" {
		record.Authors = splitAuthors(article.Byline)
	}
	if article.PublishedTime != nil {
		t := *article.PublishedTime
		record.PublishDate = &t
	}

	return record, nil
}

// splitAuthors breaks a byline like "Jane Doe and John Smith" or
// "Jane Doe, John Smith" into individual author names.
func splitAuthors(byline string) []string {
	byline = strings.ReplaceAll(byline, " and ", ",")
	parts := strings.Split(byline, ",")
	authors := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}
