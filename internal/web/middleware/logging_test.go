package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestLogger_CapturesStatusAndRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Logger)

	var route string
	r.Get("/api/imports/{id}", func(w http.ResponseWriter, req *http.Request) {
		route = routePattern(req)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/imports/42", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
	if route != "/api/imports/{id}" {
		t.Errorf("route = %q, want pattern", route)
	}
}

func TestResponseWriter_FirstHeaderWins(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	w.WriteHeader(http.StatusCreated)
	w.WriteHeader(http.StatusInternalServerError)
	n, _ := w.Write([]byte("hello"))

	if w.status != http.StatusCreated || rec.Code != http.StatusCreated {
		t.Errorf("status = %d/%d, want 201", w.status, rec.Code)
	}
	if w.bytes != n || n != 5 {
		t.Errorf("bytes = %d, want 5", w.bytes)
	}
}
