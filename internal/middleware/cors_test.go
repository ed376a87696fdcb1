package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func corsRequest(t *testing.T, mw *CORSMiddleware, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/api/incidents", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestCORS_AllowAllEchoesOrigin(t *testing.T) {
	w := corsRequest(t, NewCORSMiddleware(), http.MethodGet, "https://reporting.example.com")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://reporting.example.com" {
		t.Errorf("Allow-Origin = %q, want the request origin", got)
	}
	if allowed := w.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(allowed, RequestIDHeader) {
		t.Errorf("Allow-Headers = %q, want it to include %s", allowed, RequestIDHeader)
	}
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	mw := NewCORSMiddleware("https://safety.example.com")

	w := corsRequest(t, mw, http.MethodGet, "https://safety.example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://safety.example.com" {
		t.Errorf("allowed origin should be echoed, got %q", got)
	}

	w = corsRequest(t, mw, http.MethodGet, "https://elsewhere.example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin should get no CORS headers, got %q", got)
	}
}

func TestCORS_PreflightStopsAtMiddleware(t *testing.T) {
	reached := false
	handler := NewCORSMiddleware().Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/incidents", nil)
	req.Header.Set("Origin", "https://reporting.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", w.Code)
	}
	if reached {
		t.Error("preflight request should not reach the wrapped handler")
	}
}

func TestCORS_SameOriginRequestUntouched(t *testing.T) {
	w := corsRequest(t, NewCORSMiddleware(), http.MethodGet, "")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("requests without an Origin header should get no CORS headers, got %q", got)
	}
}
