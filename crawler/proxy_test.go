package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProxyPool_EmptyReturnsNil(t *testing.T) {
	pool := NewProxyPool(http.DefaultClient, "http://echo.example.com", nil)
	if got := pool.Get(); got != nil {
		t.Errorf("Get() = %v, want nil for empty pool", got)
	}
	if got := pool.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}

func TestProxyPool_RoundRobin(t *testing.T) {
	pool := NewProxyPool(http.DefaultClient, "http://echo.example.com", []string{
		"http://proxy1.example.com:8080",
		"http://proxy2.example.com:8080",
	})

	first := pool.Get()
	second := pool.Get()
	third := pool.Get()

	if first.Host == second.Host {
		t.Error("expected round-robin to alternate hosts")
	}
	if first.Host != third.Host {
		t.Error("expected round-robin to wrap after full cycle")
	}
}

func TestProxyPool_SkipsUnparsableProxies(t *testing.T) {
	pool := NewProxyPool(http.DefaultClient, "http://echo.example.com", []string{
		"http://good.example.com",
		"://not-a-url",
	})
	if got := pool.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1 (one unparsable proxy skipped)", got)
	}
}

func TestProxyPool_Revalidate_DropsDeadProxies(t *testing.T) {
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer echo.Close()

	// Neither configured proxy actually routes anywhere real; both requests
	// through them will fail to dial, so Revalidate should empty the pool.
	pool := NewProxyPool(http.DefaultClient, echo.URL, []string{
		"http://127.0.0.1:1",
		"http://127.0.0.1:2",
	})

	pool.Revalidate(context.Background())

	if got := pool.Len(); got != 0 {
		t.Errorf("Len() after Revalidate = %d, want 0 (all proxies unreachable)", got)
	}
}

func TestProxyPool_ConcurrentGet(t *testing.T) {
	pool := NewProxyPool(http.DefaultClient, "http://echo.example.com", []string{
		"http://proxy1.example.com",
		"http://proxy2.example.com",
		"http://proxy3.example.com",
	})

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 20; j++ {
				_ = pool.Get()
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
