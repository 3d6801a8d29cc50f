package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/platform/auth"
)

func withUser(req *http.Request, uid string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, uid))
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(okHandler)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 0.5, BurstSize: 2})(okHandler)

	for i := 0; i < 2; i++ {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	err := handler(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("expected Retry-After '2', got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining '0', got %q", got)
	}
}

func TestRateLimit_PerUserIsolation(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 1})(okHandler)

	call := func(uid string) error {
		req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), uid)
		return handler(e.NewContext(req, httptest.NewRecorder()))
	}

	if err := call("physician-1"); err != nil {
		t.Fatalf("physician-1 first request: %v", err)
	}
	if err := call("physician-1"); err == nil {
		t.Fatal("physician-1 second request: expected rate limit error")
	}
	if err := call("nurse-2"); err != nil {
		t.Fatalf("nurse-2 first request: expected a separate bucket, got %v", err)
	}
}

func TestRateLimitKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5000"

	key, _ := rateLimitKey(e.NewContext(req, httptest.NewRecorder()))
	if key != "ip:10.0.0.7" {
		t.Errorf("expected ip key, got %q", key)
	}
	key, _ = rateLimitKey(e.NewContext(withUser(req, "u1"), httptest.NewRecorder()))
	if key != "user:u1" {
		t.Errorf("expected user key, got %q", key)
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		rps  float64
		want int
	}{
		{0, 1},
		{50, 1},
		{1, 1},
		{0.5, 2},
		{0.3, 4},
	}
	for _, tt := range tests {
		if got := retryAfter(tt.rps); got != tt.want {
			t.Errorf("retryAfter(%v) = %d, want %d", tt.rps, got, tt.want)
		}
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 50 || cfg.BurstSize != 100 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}
