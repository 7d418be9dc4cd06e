// Package scorer assigns a numeric priority to a candidate URL given
// configured rules and the text available about it.
package scorer

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/kljensen/snowball"
)

// Context carries everything the Scorer may draw on for one candidate URL.
// ReferrerText is the text to judge this specific candidate against: the
// link's own anchor text when it's substantive, falling back to the
// referring page's full extracted text for thin anchors like "click here" —
// the linked page itself hasn't been fetched yet, so there's nothing else
// to go on.
type Context struct {
	ReferrerText       string
	HostVisitedCount   int
	TargetKeywords     []string
	PriorityRules      map[string]float64
	KeywordWeights     map[string]float64
	ContentTypeWeights map[string]float64
}

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Scorer computes link priorities. It holds no mutable state beyond what a
// caller passes via Context, so it is safe for concurrent use and its
// output is deterministic given fixed inputs.
type Scorer struct{}

// New returns a Scorer.
func New() *Scorer {
	return &Scorer{}
}

// Score computes a link's priority as:
//
//	base + topical + keyword + type + domain_diversity + depth_penalty
//
// clamped to a minimum of 0. topical is a stemmed term-frequency overlap
// between TargetKeywords and the referrer text, a cheap stand-in for
// embedding-based similarity.
func (s *Scorer) Score(rawURL string, ctx Context) float64 {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}

	base := ctx.PriorityRules[parsed.Host]

	tokens := stemmedTokens(ctx.ReferrerText)
	topical := 10 * topicalSimilarity(tokens, ctx.TargetKeywords)

	keyword := keywordScore(tokens, ctx.KeywordWeights)

	typeScore := contentTypeScore(parsed.Path, ctx.ContentTypeWeights)

	var domainDiversity float64
	switch {
	case ctx.HostVisitedCount == 0:
		domainDiversity = 3
	case ctx.HostVisitedCount < 5:
		domainDiversity = 1
	}

	depthPenalty := -0.5 * float64(strings.Count(rawURL, "/"))

	total := base + topical + keyword + typeScore + domainDiversity + depthPenalty
	if total < 0 {
		return 0
	}
	return total
}

// stemmedTokens lowercases, tokenizes, and English-stems text for
// term-overlap scoring. Stemming failures fall back to the raw token so a
// handful of odd words never drop the whole document's signal.
func stemmedTokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	stemmed := make([]string, len(raw))
	for i, tok := range raw {
		s, err := snowball.Stem(tok, "english", true)
		if err != nil || s == "" {
			stemmed[i] = tok
			continue
		}
		stemmed[i] = s
	}
	return stemmed
}

// topicalSimilarity returns the fraction of stemmed target keywords that
// appear (after stemming) among tokens, a cosine-similarity stand-in that
// needs no embedding model.
func topicalSimilarity(tokens []string, targetKeywords []string) float64 {
	if len(targetKeywords) == 0 || len(tokens) == 0 {
		return 0
	}

	present := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		present[tok] = struct{}{}
	}

	matches := 0
	for _, kw := range targetKeywords {
		stemmedKw, err := snowball.Stem(strings.ToLower(kw), "english", true)
		if err != nil || stemmedKw == "" {
			stemmedKw = strings.ToLower(kw)
		}
		if _, ok := present[stemmedKw]; ok {
			matches++
		}
	}

	return float64(matches) / float64(len(targetKeywords))
}

// keywordScore sums weights[k] * frequency(k) over stemmed tokens.
func keywordScore(tokens []string, weights map[string]float64) float64 {
	if len(weights) == 0 {
		return 0
	}

	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}

	var score float64
	for kw, weight := range weights {
		stemmedKw, err := snowball.Stem(strings.ToLower(kw), "english", true)
		if err != nil || stemmedKw == "" {
			stemmedKw = strings.ToLower(kw)
		}
		score += float64(freq[stemmedKw]) * weight
	}
	return score
}

// contentTypeScore sums weights[t] for every t appearing as a substring of
// path.
func contentTypeScore(path string, weights map[string]float64) float64 {
	var score float64
	for t, weight := range weights {
		if t != "" && strings.Contains(path, t) {
			score += weight
		}
	}
	return score
}
