package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jsvana/carrier-wave-sub002/internal/adapter"
	"github.com/jsvana/carrier-wave-sub002/internal/config"
	"github.com/jsvana/carrier-wave-sub002/internal/repo"
)

type noCreds struct{}

func (noCreds) IsConfigured(adapter.Service) bool { return false }

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{
		GinMode:     gin.TestMode,
		APIBasePath: "/api/v1",
		RateRPS:     1000,
		RateBurst:   1000,
		Sync:        config.SyncConfig{QueueSize: 4},
	}

	r := gin.New()
	q := RegisterRoutes(r, db, adapter.NewRegistry(), noCreds{}, cfg)
	if q == nil {
		t.Fatalf("expected a trigger queue")
	}
	return r
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r := newTestEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics -> %d", w.Code)
	}
}

func TestRouter_APIRoutesMounted(t *testing.T) {
	r := newTestEngine(t)

	// Empty registry: full sync still runs and reports nothing to do.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/sync -> %d (%s)", w.Code, w.Body.String())
	}

	// Unknown service identifier maps to 404 with the error envelope.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync/myspace", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("POST /api/v1/sync/myspace -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/stats -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/contacts", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/contacts -> %d", w.Code)
	}
}

func TestRouter_FallbackEnvelopes(t *testing.T) {
	r := newTestEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope -> %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON 404 body: %v", err)
	}
	if body["code"] != "not_found" {
		t.Fatalf("unexpected 404 code: %v", body["code"])
	}

	// Registered path, wrong verb.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/sync", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /api/v1/sync -> %d", w.Code)
	}
}
