package server

import (
	"testing"
	"time"
)

// TestRateLimiterAllowsBurst verifies that the limiter admits a full burst
// and then starts refusing.
func TestRateLimiterAllowsBurst(t *testing.T) {
	limiter := newRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !limiter.allow() {
			t.Fatalf("Request %d within burst was refused", i)
		}
	}
	if limiter.allow() {
		t.Error("Request beyond the burst was admitted")
	}
}

// TestRateLimiterRefills verifies that tokens come back over time.
func TestRateLimiterRefills(t *testing.T) {
	limiter := newRateLimiter(2, 20*time.Millisecond)

	for i := 0; i < 2; i++ {
		if !limiter.allow() {
			t.Fatalf("Request %d within burst was refused", i)
		}
	}
	if limiter.allow() {
		t.Fatal("Request beyond the burst was admitted")
	}

	time.Sleep(30 * time.Millisecond)
	if !limiter.allow() {
		t.Error("Request after refill interval was refused")
	}
}

// TestRateLimiterSanitizesArguments verifies the fallbacks for nonsensical
// capacity and interval values.
func TestRateLimiterSanitizesArguments(t *testing.T) {
	limiter := newRateLimiter(0, 0)
	if !limiter.allow() {
		t.Error("Sanitized limiter refused its first request")
	}
}
