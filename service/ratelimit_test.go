package service

import (
	"sync"
	"testing"
	"time"
)

func TestRateLimiterBoundary(t *testing.T) {
	limiter := NewRateLimiter(10, time.Hour)

	for i := 0; i < 10; i++ {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}

	if limiter.Allow("1.2.3.4") {
		t.Error("11th request within the window should be rejected")
	}

	// Other identities are unaffected
	if !limiter.Allow("5.6.7.8") {
		t.Error("Different identity should not be rate limited")
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	limiter := NewRateLimiter(2, time.Hour)

	current := time.Now()
	limiter.now = func() time.Time { return current }

	if !limiter.Allow("client") || !limiter.Allow("client") {
		t.Fatal("First two requests should be allowed")
	}
	if limiter.Allow("client") {
		t.Fatal("Third request should be rejected")
	}

	// Half a window later the cap still holds
	current = current.Add(30 * time.Minute)
	if limiter.Allow("client") {
		t.Error("Request should still be rejected inside the window")
	}

	// Once the first attempts age out, requests are admitted again
	current = current.Add(31 * time.Minute)
	if !limiter.Allow("client") {
		t.Error("Request should be allowed after the window elapses")
	}
}

func TestRateLimiterRejectionNotCharged(t *testing.T) {
	limiter := NewRateLimiter(1, time.Hour)

	current := time.Now()
	limiter.now = func() time.Time { return current }

	if !limiter.Allow("client") {
		t.Fatal("First request should be allowed")
	}

	// Hammering while rejected must not extend the lockout
	for i := 0; i < 5; i++ {
		current = current.Add(10 * time.Minute)
		limiter.Allow("client")
	}

	current = current.Add(15 * time.Minute) // 65 minutes after the admitted request
	if !limiter.Allow("client") {
		t.Error("Rejected attempts must not count toward the window")
	}
}

func TestRateLimiterConcurrent(t *testing.T) {
	limiter := NewRateLimiter(50, time.Hour)

	var wg sync.WaitGroup
	allowed := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- limiter.Allow("shared")
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 50 {
		t.Errorf("Expected exactly 50 admitted requests, got %d", count)
	}
}
