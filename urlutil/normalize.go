package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// defaultPorts maps a scheme to the port implied by it, so that
// "http://host:80/" and "http://host/" normalize identically.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Normalize takes a raw URL string and returns a normalized version per the
// engine's URL data model: scheme+host lowercased, default port elided,
// fragment stripped, trailing slash stripped (except root), query preserved.
//
// Returns an error if the input is empty or cannot be parsed as a valid URL,
// or if the scheme is not http/https.
func Normalize(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("cannot normalize empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize URL %q: %w", rawURL, err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New("URL must have both scheme and host")
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	parsed.Host = strings.ToLower(parsed.Host)
	if port := parsed.Port(); port != "" && port == defaultPorts[parsed.Scheme] {
		parsed.Host = strings.TrimSuffix(parsed.Host, ":"+port)
	}

	parsed.Fragment = ""

	if parsed.Path == "" {
		parsed.Path = "/"
	} else if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), nil
}

// Host extracts the normalized (lowercased, no-port) hostname from a URL
// string, returning the raw input if it cannot be parsed.
func Host(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.ToLower(parsed.Hostname())
}
