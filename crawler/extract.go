package crawler

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/lukemcguire/topicrawl/urlutil"
	"golang.org/x/net/html"
)

// Link is one outgoing anchor discovered on a fetched page: its resolved,
// normalized destination plus the anchor's own text. When the anchor text
// is substantive, it (not the whole referring page) is what the Link Scorer
// weighs a candidate against, since the destination itself hasn't been
// fetched yet; thin anchors fall back to the referring page's text (see
// the Scheduler's scoringText).
type Link struct {
	URL        string
	AnchorText string
}

// ExtractLinks parses HTML from the given reader and extracts every anchor
// tag's href together with its anchor text. It resolves relative URLs
// against baseURL, filters non-HTTP schemes, normalizes each URL, and
// returns one Link per distinct destination URL (first occurrence's
// anchor text wins on duplicates).
func ExtractLinks(body io.Reader, baseURL *url.URL) ([]Link, error) {
	tokenizer := html.NewTokenizer(body)
	seen := make(map[string]int) // normalized URL -> index into links
	var links []Link
	var errs []error

	var inAnchor bool
	var pendingHref string
	var anchorText strings.Builder

	flushAnchor := func(href string) {
		if href == "" {
			href = baseURL.String()
		}

		hrefURL, err := url.Parse(href)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse href %q: %w", href, err))
			return
		}
		resolved := baseURL.ResolveReference(hrefURL)
		resolvedStr := resolved.String()

		if !urlutil.IsHTTPScheme(resolvedStr) {
			return
		}

		normalized, err := urlutil.Normalize(resolvedStr)
		if err != nil {
			errs = append(errs, fmt.Errorf("normalize URL %q: %w", resolvedStr, err))
			return
		}

		text := strings.TrimSpace(anchorText.String())
		if idx, ok := seen[normalized]; ok {
			if links[idx].AnchorText == "" {
				links[idx].AnchorText = text
			}
			return
		}
		seen[normalized] = len(links)
		links = append(links, Link{URL: normalized, AnchorText: text})
	}

	for {
		tokenType := tokenizer.Next()
		switch tokenType {
		case html.ErrorToken:
			if inAnchor {
				// Unclosed <a> at EOF (malformed HTML): flush whatever
				// text was gathered rather than dropping the link.
				flushAnchor(pendingHref)
			}
			if len(errs) > 0 {
				return links, fmt.Errorf("encountered %d parse errors (first: %w)", len(errs), errs[0])
			}
			return links, nil

		case html.TextToken:
			if inAnchor {
				anchorText.WriteString(tokenizer.Token().Data)
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "a" {
				continue
			}

			var href string
			var hasHref bool
			for _, attr := range token.Attr {
				if attr.Key == "href" {
					href = attr.Val
					hasHref = true
					break
				}
			}
			if !hasHref {
				continue
			}

			if tokenType == html.SelfClosingTagToken {
				flushAnchor(href)
				continue
			}

			inAnchor = true
			pendingHref = href
			anchorText.Reset()

		case html.EndTagToken:
			token := tokenizer.Token()
			if token.Data == "a" && inAnchor {
				flushAnchor(pendingHref)
				inAnchor = false
				pendingHref = ""
			}
		}
	}
}
