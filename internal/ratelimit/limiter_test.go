package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(clock Clock) *Limiter {
	return New(&Config{
		CreateCooldown:     2 * time.Second,
		CreateMaxPerHour:   3,
		CreateMaxIPPerHour: 5,
		Clock:              clock,
	})
}

func TestCheckBookingCreate_Cooldown(t *testing.T) {
	clock := newMockClock()
	limiter := newTestLimiter(clock)
	defer limiter.Close()

	userID := "user-1"
	ip := "203.0.113.10"

	result := limiter.CheckBookingCreate(userID, ip)
	if !result.Allowed {
		t.Errorf("First request should be allowed, got blocked: %s", result.Reason)
	}
	limiter.RecordBookingCreate(userID, ip)

	result = limiter.CheckBookingCreate(userID, ip)
	if result.Allowed {
		t.Error("Second request within cooldown should be blocked")
	}
	if result.Reason != "cooldown" {
		t.Errorf("Expected reason 'cooldown', got '%s'", result.Reason)
	}
	if result.RetryAfter <= 0 {
		t.Errorf("Expected positive RetryAfter, got %v", result.RetryAfter)
	}

	// After the cooldown the user may try again
	clock.Advance(3 * time.Second)
	result = limiter.CheckBookingCreate(userID, ip)
	if !result.Allowed {
		t.Errorf("Request after cooldown should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCheckBookingCreate_HourlyLimit(t *testing.T) {
	clock := newMockClock()
	limiter := newTestLimiter(clock)
	defer limiter.Close()

	userID := "user-1"
	ip := "203.0.113.10"

	for i := 0; i < 3; i++ {
		result := limiter.CheckBookingCreate(userID, ip)
		if !result.Allowed {
			t.Fatalf("Request %d should be allowed, got blocked: %s", i+1, result.Reason)
		}
		limiter.RecordBookingCreate(userID, ip)
		clock.Advance(5 * time.Second)
	}

	result := limiter.CheckBookingCreate(userID, ip)
	if result.Allowed {
		t.Error("Request over hourly limit should be blocked")
	}
	if result.Reason != "hourly_limit" {
		t.Errorf("Expected reason 'hourly_limit', got '%s'", result.Reason)
	}

	// The window resets an hour after the first attempt
	clock.Advance(time.Hour)
	result = limiter.CheckBookingCreate(userID, ip)
	if !result.Allowed {
		t.Errorf("Request after window reset should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCheckBookingCreate_IPLimit(t *testing.T) {
	clock := newMockClock()
	limiter := newTestLimiter(clock)
	defer limiter.Close()

	ip := "203.0.113.10"

	// Five different users from one IP exhaust the per-IP allowance
	for i := 0; i < 5; i++ {
		userID := "user-" + string(rune('a'+i))
		result := limiter.CheckBookingCreate(userID, ip)
		if !result.Allowed {
			t.Fatalf("Request %d should be allowed, got blocked: %s", i+1, result.Reason)
		}
		limiter.RecordBookingCreate(userID, ip)
		clock.Advance(5 * time.Second)
	}

	result := limiter.CheckBookingCreate("user-z", ip)
	if result.Allowed {
		t.Error("Request over IP limit should be blocked")
	}
	if result.Reason != "ip_hourly_limit" {
		t.Errorf("Expected reason 'ip_hourly_limit', got '%s'", result.Reason)
	}

	// A different IP is unaffected
	result = limiter.CheckBookingCreate("user-z", "203.0.113.11")
	if !result.Allowed {
		t.Errorf("Request from other IP should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCleanup_RemovesStaleEntries(t *testing.T) {
	clock := newMockClock()
	limiter := newTestLimiter(clock)
	defer limiter.Close()

	limiter.RecordBookingCreate("user-1", "203.0.113.10")
	clock.Advance(2 * time.Hour)
	limiter.cleanup()

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	if len(limiter.byUser) != 0 || len(limiter.byIP) != 0 {
		t.Errorf("Expected empty maps after cleanup, got %d users, %d IPs",
			len(limiter.byUser), len(limiter.byIP))
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		trustProxy bool
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.10:51234",
			want:       "203.0.113.10",
		},
		{
			name:       "forwarded header ignored without trust",
			remoteAddr: "10.0.0.1:443",
			xff:        "203.0.113.10",
			want:       "10.0.0.1",
		},
		{
			name:       "forwarded header with trust",
			remoteAddr: "10.0.0.1:443",
			xff:        "203.0.113.10, 10.0.0.2",
			trustProxy: true,
			want:       "203.0.113.10",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := GetClientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("GetClientIP() = %s, want %s", got, tt.want)
			}
		})
	}
}
