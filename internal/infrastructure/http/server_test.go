package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/config"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.ApplyDefaults()
	return cfg
}

func TestServer_Routes(t *testing.T) {
	server := NewServer(testConfig(), zap.NewNop(), Services{})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"admin requires token", http.MethodGet, "/api/v1/tenants/acme/backfill", http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestServer_HealthReportsService(t *testing.T) {
	server := NewServer(testConfig(), zap.NewNop(), Services{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Contains(t, rec.Body.String(), `"service":"stripe-notion-sync"`)
}
