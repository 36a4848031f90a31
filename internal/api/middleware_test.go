package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/goleak"

	"github.com/arcalabs/arca/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSAllowedOrigin(t *testing.T) {
	h := corsMiddleware([]string{"http://localhost:3000"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q, want the request origin", got)
	}
}

func TestCORSDisallowedOrigin(t *testing.T) {
	h := corsMiddleware([]string{"http://localhost:3000"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty for disallowed origin", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := corsMiddleware([]string{"http://localhost:3000"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got == "" {
		t.Error("preflight missing Allow-Headers")
	}
}

func TestCORSWildcard(t *testing.T) {
	h := corsMiddleware([]string{"*"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://anywhere.example" {
		t.Errorf("Allow-Origin = %q, want the request origin under wildcard", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(log.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 after panic", rec.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := newRateLimiter(1, 1)
	h := rateLimitMiddleware(rl, false, log.NewNop())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	req.RemoteAddr = "192.0.2.1:4000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After")
	}

	// A different IP has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	other.RemoteAddr = "192.0.2.2:4000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.0.2.1:4000",
			want:       "192.0.2.1",
		},
		{
			name:       "proxy headers ignored when untrusted",
			remoteAddr: "192.0.2.1:4000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "192.0.2.1",
		},
		{
			name:       "x-real-ip trusted",
			remoteAddr: "192.0.2.1:4000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			trustProxy: true,
			want:       "198.51.100.7",
		},
		{
			name:       "x-forwarded-for first entry",
			remoteAddr: "192.0.2.1:4000",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"},
			trustProxy: true,
			want:       "203.0.113.5",
		},
		{
			name:       "non-ip header value falls through",
			remoteAddr: "192.0.2.1:4000",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			trustProxy: true,
			want:       "192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
