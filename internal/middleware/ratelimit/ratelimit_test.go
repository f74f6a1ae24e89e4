package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowWindow(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 2})
	defer rl.Stop()

	now := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	want := []bool{true, true, false}
	for i, w := range want {
		if got := rl.Allow("198.51.100.1"); got != w {
			t.Errorf("request %d: Allow() = %v, want %v", i+1, got, w)
		}
	}
	if !rl.Allow("198.51.100.2") {
		t.Errorf("other client was limited")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("198.51.100.1") {
		t.Errorf("client still limited after the window")
	}
	if got := rl.GetMetrics(); got.TotalHits != 1 || got.ClientCount != 2 {
		t.Errorf("metrics = %+v, want 1 hit and 2 clients", got)
	}
}

func TestMiddlewareOnlyLimitsUnsafeMethods(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1})
	defer rl.Stop()

	h := rl.Middleware(func(*http.Request) string { return "client" }, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		method string
		want   int
	}{
		{http.MethodGet, http.StatusNoContent},
		{http.MethodPost, http.StatusNoContent},
		{http.MethodGet, http.StatusNoContent},
		{http.MethodPost, http.StatusTooManyRequests},
	}
	for i, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/expenses", nil))
		if rec.Code != tt.want {
			t.Errorf("request %d (%s): status %d, want %d", i+1, tt.method, rec.Code, tt.want)
		}
		if tt.want == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
			t.Errorf("missing Retry-After header")
		}
	}
}
