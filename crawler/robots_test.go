package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewRobotsChecker_InitializesDefaults(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	checker := NewRobotsChecker(client)

	if checker == nil {
		t.Fatal("NewRobotsChecker returned nil")
	}
	if checker.client != client {
		t.Error("client not wired correctly")
	}
}

func TestRobotsChecker_Allowed(t *testing.T) {
	testCases := []struct {
		name       string
		robotsTxt  string
		statusCode int
		path       string
		userAgent  string
		want       bool
	}{
		{
			name: "disallow specific path",
			robotsTxt: `User-agent: *
Disallow: /private/`,
			statusCode: http.StatusOK,
			path:       "/private/secret",
			userAgent:  "testbot",
			want:       false,
		},
		{
			name: "allow public path",
			robotsTxt: `User-agent: *
Disallow: /private/`,
			statusCode: http.StatusOK,
			path:       "/public/page",
			userAgent:  "testbot",
			want:       true,
		},
		{
			name:       "404 allows all",
			robotsTxt:  "",
			statusCode: http.StatusNotFound,
			path:       "/any/path",
			userAgent:  "testbot",
			want:       true,
		},
		{
			name:       "500 denies all",
			robotsTxt:  "",
			statusCode: http.StatusInternalServerError,
			path:       "/any/path",
			userAgent:  "testbot",
			want:       false,
		},
		{
			name:       "empty robots.txt allows all",
			robotsTxt:  "",
			statusCode: http.StatusOK,
			path:       "/any/path",
			userAgent:  "testbot",
			want:       true,
		},
		{
			name: "specific user agent disallowed",
			robotsTxt: `User-agent: EvilBot
Disallow: /`,
			statusCode: http.StatusOK,
			path:       "/page",
			userAgent:  "EvilBot",
			want:       false,
		},
		{
			name: "other user agent allowed",
			robotsTxt: `User-agent: EvilBot
Disallow: /`,
			statusCode: http.StatusOK,
			path:       "/page",
			userAgent:  "GoodBot",
			want:       true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			server := httptest.NewTLSServer(http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
				if req.URL.Path == "/robots.txt" {
					respWriter.WriteHeader(testCase.statusCode)
					if testCase.statusCode == http.StatusOK && testCase.robotsTxt != "" {
						if _, err := respWriter.Write([]byte(testCase.robotsTxt)); err != nil {
							t.Errorf("write robots.txt: %v", err)
						}
					}
					return
				}
				respWriter.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			checker := NewRobotsChecker(server.Client())

			targetURL := server.URL + testCase.path

			got, err := checker.Allowed(context.Background(), targetURL, testCase.userAgent)
			if err != nil {
				t.Errorf("Allowed() error = %v, want nil", err)
			}
			if got != testCase.want {
				t.Errorf("Allowed() = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestRobotsChecker_CacheReused(t *testing.T) {
	requestCount := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/robots.txt" {
			requestCount++
			respWriter.WriteHeader(http.StatusOK)
			if _, err := respWriter.Write([]byte(`User-agent: *
Disallow: /blocked/`)); err != nil {
				t.Errorf("write robots.txt: %v", err)
			}
			return
		}
		respWriter.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client())

	allowed1, err1 := checker.Allowed(context.Background(), server.URL+"/blocked/page", "testbot")
	if err1 != nil {
		t.Errorf("First request error: %v", err1)
	}
	if allowed1 {
		t.Error("First request should be disallowed")
	}
	if requestCount != 1 {
		t.Errorf("Expected 1 request, got %d", requestCount)
	}

	allowed2, err2 := checker.Allowed(context.Background(), server.URL+"/blocked/page2", "testbot")
	if err2 != nil {
		t.Errorf("Second request error: %v", err2)
	}
	if allowed2 {
		t.Error("Second request should be disallowed (from cache)")
	}
	if requestCount != 1 {
		t.Errorf("Expected 1 request (cached), got %d", requestCount)
	}
}

func TestRobotsChecker_5xxDenyExpiresAfterShortTTL(t *testing.T) {
	requestCount := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/robots.txt" {
			requestCount++
			respWriter.WriteHeader(http.StatusInternalServerError)
			return
		}
		respWriter.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client())

	allowed1, _ := checker.Allowed(context.Background(), server.URL+"/page", "testbot")
	if allowed1 {
		t.Error("5xx should deny")
	}
	if requestCount != 1 {
		t.Fatalf("expected 1 request, got %d", requestCount)
	}

	// Manually expire the short deny TTL rather than sleeping 60s in a test.
	if cached, ok := checker.cache.Load(server.Listener.Addr().String()); ok {
		entry := cached.(*cachedRobots)
		entry.fetchedAt = time.Now().Add(-robotsDenyTTL - time.Second)
	}

	allowed2, _ := checker.Allowed(context.Background(), server.URL+"/page", "testbot")
	if allowed2 {
		t.Error("5xx should still deny on retry")
	}
	if requestCount != 2 {
		t.Errorf("expected retry after deny TTL expiry, got %d requests", requestCount)
	}
}

func TestRobotsChecker_TimeoutAllowsAll(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
		time.Sleep(10 * time.Second)
		respWriter.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := server.Client()
	client.Timeout = 10 * time.Millisecond
	checker := NewRobotsChecker(client)

	allowed, err := checker.Allowed(context.Background(), server.URL+"/any/path", "testbot")
	if !allowed {
		t.Error("Timeout should allow all")
	}
	if err == nil {
		t.Error("Timeout should return an error for visibility")
	}
}

func TestRobotsChecker_ClearCache(t *testing.T) {
	requestCount := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/robots.txt" {
			requestCount++
			respWriter.WriteHeader(http.StatusOK)
			if _, err := respWriter.Write([]byte(`User-agent: *
Disallow: /blocked/`)); err != nil {
				t.Errorf("write robots.txt: %v", err)
			}
			return
		}
		respWriter.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client())

	_, err1 := checker.Allowed(context.Background(), server.URL+"/blocked/page", "testbot")
	if err1 != nil {
		t.Errorf("First request error: %v", err1)
	}
	if requestCount != 1 {
		t.Errorf("Expected 1 request, got %d", requestCount)
	}

	checker.ClearCache()

	_, err2 := checker.Allowed(context.Background(), server.URL+"/blocked/page", "testbot")
	if err2 != nil {
		t.Errorf("Second request error: %v", err2)
	}
	if requestCount != 2 {
		t.Errorf("Expected 2 requests after ClearCache, got %d", requestCount)
	}
}
