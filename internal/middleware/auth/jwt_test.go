package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(tenants ...string) Claims {
	return Claims{
		Role:    "operator",
		Tenants: tenants,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@example.com",
			Issuer:    "sync-admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

// newTestServer routes /api/v1/tenants/:tenant/ping and /health through the middleware.
func newTestServer() *echo.Echo {
	e := echo.New()
	mw := JWTMiddleware(JWTConfig{
		Secret:    testSecret,
		Issuer:    "sync-admin",
		Logger:    zap.NewNop(),
		SkipPaths: []string{"/health"},
	})

	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, mw)
	e.GET("/api/v1/tenants/:tenant/ping", func(c echo.Context) error {
		operator, err := GetOperatorFromContext(c)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, operator)
	}, mw)
	return e
}

func serve(e *echo.Echo, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware_SuccessfulAuthentication(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, testSecret, validClaims())

	rec := serve(newTestServer(), "/api/v1/tenants/acme/ping", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sub":"ops@example.com"`)
	assert.Contains(t, rec.Body.String(), `"role":"operator"`)
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name          string
		authorization string
		wantStatus    int
		wantCode      string
	}{
		{"missing header", "", http.StatusUnauthorized, "MISSING_AUTH_HEADER"},
		{"not bearer", "Basic b3BzOnNlY3JldA==", http.StatusUnauthorized, "INVALID_AUTH_FORMAT"},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, "other-secret", validClaims()), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, expired), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong issuer", "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, wrongIssuer), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"other tenant", "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, validClaims("globex")), http.StatusForbidden, "TENANT_FORBIDDEN"},
	}

	e := newTestServer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, "/api/v1/tenants/acme/ping", tt.authorization)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantCode)
		})
	}
}

func TestJWTMiddleware_TenantScopes(t *testing.T) {
	e := newTestServer()

	scoped := signToken(t, jwt.SigningMethodHS512, testSecret, validClaims("acme", "globex"))
	assert.Equal(t, http.StatusOK, serve(e, "/api/v1/tenants/globex/ping", "Bearer "+scoped).Code)

	wildcard := signToken(t, jwt.SigningMethodHS256, testSecret, validClaims("*"))
	assert.Equal(t, http.StatusOK, serve(e, "/api/v1/tenants/initech/ping", "Bearer "+wildcard).Code)
}

func TestJWTMiddleware_SkipPaths(t *testing.T) {
	rec := serve(newTestServer(), "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOperator_CanAccess(t *testing.T) {
	assert.True(t, (&Operator{}).CanAccess("acme"))
	assert.True(t, (&Operator{Tenants: []string{"acme"}}).CanAccess("acme"))
	assert.False(t, (&Operator{Tenants: []string{"acme"}}).CanAccess("globex"))
}
