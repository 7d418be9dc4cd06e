package crawler

import (
	"context"
	"testing"
	"time"
)

func TestNewRateLimiter_DefaultDelay(t *testing.T) {
	rl := NewRateLimiter()
	if got := rl.Delay("example.com"); got != rateLimiterMinDelay {
		t.Errorf("Delay() = %v, want %v", got, rateLimiterMinDelay)
	}
}

func TestRateLimiter_Wait_FirstCallImmediate(t *testing.T) {
	rl := NewRateLimiter()
	ctx := context.Background()

	start := time.Now()
	if err := rl.Wait(ctx, "example.com"); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("first Wait() should not block, took %v", elapsed)
	}
}

func TestRateLimiter_Wait_SecondCallBlocksUntilDelay(t *testing.T) {
	rl := NewRateLimiter()
	ctx := context.Background()
	host := "example.com"

	// Shrink the delay via Update so the test doesn't take a full second.
	rl.Update(host, true) // no-op, still at floor
	st := rl.stateFor(host)
	st.mu.Lock()
	st.delay = 50 * time.Millisecond
	st.mu.Unlock()

	if err := rl.Wait(ctx, host); err != nil {
		t.Fatalf("first Wait() failed: %v", err)
	}

	start := time.Now()
	if err := rl.Wait(ctx, host); err != nil {
		t.Fatalf("second Wait() failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("second Wait() returned too early: %v", elapsed)
	}
}

func TestRateLimiter_Wait_ContextCancellation(t *testing.T) {
	rl := NewRateLimiter()
	host := "example.com"

	if err := rl.Wait(context.Background(), host); err != nil {
		t.Fatalf("first Wait() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rl.Wait(ctx, host); err == nil {
		t.Error("Wait() should have failed with cancelled context")
	}
}

func TestRateLimiter_Update_SuccessDecaysTowardFloor(t *testing.T) {
	rl := NewRateLimiter()
	host := "example.com"

	st := rl.stateFor(host)
	st.mu.Lock()
	st.delay = 10 * time.Second
	st.mu.Unlock()

	rl.Update(host, true)

	got := rl.Delay(host)
	want := time.Duration(float64(10*time.Second) / rateLimiterBackoffFactor)
	if got != want {
		t.Errorf("Delay() after success = %v, want %v", got, want)
	}
}

func TestRateLimiter_Update_SuccessClampsAtFloor(t *testing.T) {
	rl := NewRateLimiter()
	host := "example.com"

	rl.Update(host, true)

	if got := rl.Delay(host); got != rateLimiterMinDelay {
		t.Errorf("Delay() = %v, want floor %v", got, rateLimiterMinDelay)
	}
}

func TestRateLimiter_Update_FailureGrowsDelay(t *testing.T) {
	rl := NewRateLimiter()
	host := "example.com"

	rl.Update(host, false)

	got := rl.Delay(host)
	want := time.Duration(float64(rateLimiterMinDelay) * rateLimiterBackoffFactor)
	if got != want {
		t.Errorf("Delay() after failure = %v, want %v", got, want)
	}
}

func TestRateLimiter_Update_FailureClampsAtCeiling(t *testing.T) {
	rl := NewRateLimiter()
	host := "example.com"

	for i := 0; i < 30; i++ {
		rl.Update(host, false)
	}

	if got := rl.Delay(host); got != rateLimiterMaxDelay {
		t.Errorf("Delay() = %v, want ceiling %v", got, rateLimiterMaxDelay)
	}
}

// TestRateLimiter_Update_ThreeConsecutiveFailuresSequence pins the exact
// back-off sequence from a host returning three consecutive 500s starting
// at delay=1.0s: successive delays of 1.5, 2.25, 3.375s.
func TestRateLimiter_Update_ThreeConsecutiveFailuresSequence(t *testing.T) {
	rl := NewRateLimiter()
	host := "flaky.example.com"

	want := []time.Duration{
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		3375 * time.Millisecond,
	}

	for i, w := range want {
		rl.Update(host, false)
		got := rl.Delay(host)
		tolerance := w / 10
		diff := got - w
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			t.Errorf("after failure #%d: Delay() = %v, want %v (±10%%)", i+1, got, w)
		}
	}
}

func TestRateLimiter_PerHostIndependence(t *testing.T) {
	rl := NewRateLimiter()

	rl.Update("slow.example.com", false)
	rl.Update("slow.example.com", false)

	if got := rl.Delay("fast.example.com"); got != rateLimiterMinDelay {
		t.Errorf("unrelated host Delay() = %v, want unaffected floor %v", got, rateLimiterMinDelay)
	}
	if got := rl.Delay("slow.example.com"); got <= rateLimiterMinDelay {
		t.Errorf("slow.example.com Delay() = %v, want > floor", got)
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter()
	ctx := context.Background()
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(n int) {
			host := "example.com"
			for j := 0; j < 5; j++ {
				_ = rl.Wait(ctx, host)
				rl.Update(host, n%2 == 0)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
