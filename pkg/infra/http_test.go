package infra

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRouterHealthAndCORS(t *testing.T) {
	r := NewRouter([]string{"http://kiosk.local"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://kiosk.local")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("GET /healthz = %d %q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://kiosk.local" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestNewRouterRejectsUnknownOrigin(t *testing.T) {
	r := NewRouter([]string{"http://kiosk.local"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}
