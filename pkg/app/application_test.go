package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agenda/internal/health"
	"agenda/pkg/config"
	"agenda/pkg/contracts"
	"agenda/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(r *httprouter.Router) {
	r.GET("/api/v1/ping", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
	})
	r.POST("/api/v1/echo", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusCreated)
	})
}

func testConfig() *config.Config {
	return &config.Config{
		Port:              "8080",
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Hour,
		MaxRequestSize:    1024,
		Log:               logger.Discard(),
	}
}

func newTestApp(t *testing.T, checks map[string]health.Check) http.Handler {
	t.Helper()
	a := NewApplication(testConfig())
	a.SetApp(Options{Handlers: []contracts.Handler{pingHandler{}}, Checks: checks})
	t.Cleanup(func() {
		a.idempotencyStore.Stop()
		a.rateLimiter.Stop()
	})
	return a.Handler()
}

func TestApplication_Routes(t *testing.T) {
	h := newTestApp(t, nil)

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		contentType string
		want        int
	}{
		{"health", http.MethodGet, "/health", "", "", http.StatusOK},
		{"ready without checks", http.MethodGet, "/ready", "", "", http.StatusOK},
		{"registered route", http.MethodGet, "/api/v1/ping", "", "", http.StatusOK},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", "", http.StatusNotFound},
		{"json body", http.MethodPost, "/api/v1/echo", `{}`, "application/json", http.StatusCreated},
		{"non-json body", http.MethodPost, "/api/v1/echo", `x`, "text/plain", http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestApplication_ReadyReportsFailingCheck(t *testing.T) {
	h := newTestApp(t, map[string]health.Check{
		"storage": func(context.Context) error { return nil },
		"kafka":   func(context.Context) error { return errors.New("down") },
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"kafka":"error"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
