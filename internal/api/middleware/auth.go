// Package middleware provides HTTP middleware for the Gin router.
//
// Go Learning Note — Middleware Pattern (Gin):
// In Gin, middleware is any gin.HandlerFunc, i.e. func(*gin.Context). Each
// one runs, optionally calls c.Next() to pass control down the chain, and can
// call c.Abort() to stop it. Middleware is attached with .Use() on the engine
// or on a route group.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys for the authenticated caller.
const (
	UserIDKey   = "user_id"
	UserNameKey = "user_name"
)

const CodeUnauthorized = "UNAUTHORIZED"

// Claims is the bearer token payload. Tokens are issued by the identity
// service; this service only verifies them.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for userID. The server never calls it; it
// exists for tests and local tooling.
func IssueToken(secret, userID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies signature and expiry and returns the claims. A token
// without user_id falls back to its subject.
func ParseToken(secret, raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.New("token carries no user id")
	}
	return claims, nil
}

// JWTAuth rejects requests without a valid "Authorization: Bearer <jwt>"
// header and stores the caller's user ID for downstream handlers.
//
// Go Learning Note — Returning Functions (Closures):
// JWTAuth(secret) returns a gin.HandlerFunc that captures secret. This is
// the usual shape for middleware that needs configuration.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed bearer token", "code": CodeUnauthorized})
			return
		}

		claims, err := ParseToken(secret, strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": CodeUnauthorized})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserNameKey, claims.Name)
		c.Next()
	}
}

// GetUserID returns the caller set by JWTAuth, or "" on unauthenticated
// routes.
//
// Go Learning Note — Type Assertion:
// c.GetString does the `v, ok := x.(string)` dance for us and returns ""
// instead of panicking when the key is missing.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
