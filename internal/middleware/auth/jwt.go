package auth

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Operator is the authenticated caller of the admin API.
type Operator struct {
	Subject string   `json:"sub"`
	Role    string   `json:"role"`
	Tenants []string `json:"tenants,omitempty"`
}

// CanAccess reports whether the operator may act on tenantID. An operator
// without a tenants claim may act on every tenant.
func (o *Operator) CanAccess(tenantID string) bool {
	return len(o.Tenants) == 0 || slices.Contains(o.Tenants, tenantID) || slices.Contains(o.Tenants, "*")
}

type contextKey string

const operatorContextKey contextKey = "authenticated_operator"

// Claims are the admin token claims.
type Claims struct {
	Role    string   `json:"role"`
	Tenants []string `json:"tenants,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds the configuration for JWT middleware
type JWTConfig struct {
	Secret    string
	Issuer    string
	Logger    *zap.Logger
	SkipPaths []string // Paths to skip JWT validation
}

// JWTMiddleware validates HMAC-signed bearer tokens and rejects requests for
// a :tenant the token is not scoped to.
func JWTMiddleware(config JWTConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, skipPath := range config.SkipPaths {
				if strings.HasPrefix(path, skipPath) {
					return next(c)
				}
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				config.Logger.Warn("Missing authorization header",
					zap.String("path", path),
					zap.String("method", c.Request().Method))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Authorization header required",
					"code":  "MISSING_AUTH_HEADER",
				})
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				config.Logger.Warn("Invalid authorization header format",
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid authorization header format. Expected: Bearer <token>",
					"code":  "INVALID_AUTH_FORMAT",
				})
			}

			var claims Claims
			token, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(config.Secret), nil
			})
			if err != nil || !token.Valid {
				config.Logger.Warn("JWT validation failed",
					zap.Error(err),
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid or expired token",
					"code":  "INVALID_TOKEN",
				})
			}

			operator := &Operator{
				Subject: claims.Subject,
				Role:    claims.Role,
				Tenants: claims.Tenants,
			}

			if tenantID := c.Param("tenant"); tenantID != "" && !operator.CanAccess(tenantID) {
				config.Logger.Warn("Operator not scoped to tenant",
					zap.String("sub", operator.Subject),
					zap.String("tenant_id", tenantID),
					zap.String("path", path))
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "Token is not valid for this tenant",
					"code":  "TENANT_FORBIDDEN",
				})
			}

			ctx := context.WithValue(c.Request().Context(), operatorContextKey, operator)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("operator", operator.Subject)

			config.Logger.Debug("Operator authenticated",
				zap.String("sub", operator.Subject),
				zap.String("path", path))

			return next(c)
		}
	}
}

// GetOperatorFromContext extracts the authenticated operator from the request context
func GetOperatorFromContext(c echo.Context) (*Operator, error) {
	operator, ok := c.Request().Context().Value(operatorContextKey).(*Operator)
	if !ok || operator == nil {
		return nil, fmt.Errorf("no authenticated operator found in context")
	}
	return operator, nil
}
