package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dom/wartracker/internal/api/middleware"
	"github.com/dom/wartracker/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func TestCORS(t *testing.T) {
	handler := middleware.CORS([]string{"http://localhost:3000/"})(http.HandlerFunc(okHandler))

	tests := []struct {
		name          string
		method        string
		origin        string
		preflight     bool
		expectedAllow string
		reachesNext   bool
	}{
		{name: "allowed origin", method: http.MethodGet, origin: "http://localhost:3000", expectedAllow: "http://localhost:3000", reachesNext: true},
		{name: "other origin", method: http.MethodGet, origin: "https://evil.example.com", reachesNext: true},
		{name: "no origin", method: http.MethodGet, reachesNext: true},
		{name: "preflight", method: http.MethodOptions, origin: "http://localhost:3000", preflight: true, expectedAllow: "http://localhost:3000"},
		{name: "preflight from other origin", method: http.MethodOptions, origin: "https://evil.example.com", preflight: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/records", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, 2, rec.Code/100)
			assert.Equal(t, tt.expectedAllow, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.reachesNext {
				assert.Equal(t, "ok", rec.Body.String())
			} else {
				assert.Empty(t, rec.Body.String())
			}
		})
	}
}

func TestCORS_Wildcard(t *testing.T) {
	handler := middleware.CORS([]string{"*"})(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	r := chi.NewRouter()
	r.Use(middleware.Logger(logger))
	r.Get("/ok", okHandler)
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	for _, path := range []string{"/ok", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "/boom", entries[1].ContextMap()["path"])
}

func TestMetrics(t *testing.T) {
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(middleware.Metrics(m))
	r.Get("/records/{id}", okHandler)
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/records/123", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/records/456", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `wartracker_http_requests_total{code="200",method="GET",route="/records/{id}"} 2`)
	assert.False(t, strings.Contains(string(body), "/records/123"))
}
