// Package httpkit provides HTTP middleware infrastructure.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"travelplan_backend/platform/apperr"
	"travelplan_backend/platform/config"
	"travelplan_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// ContextPrincipalKey is the gin context key for the authenticated principal.
	ContextPrincipalKey = "principal"
	// ContextRequestIDKey is the gin context key for the request ID.
	ContextRequestIDKey = "requestID"

	// HeaderRequestID carries the request ID in and out.
	HeaderRequestID = "X-Request-ID"

	errMissingToken = "missing token"
	errInvalidToken = "invalid token"
)

// SessionResolver resolves a session cookie value to a principal.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (Principal, bool, error)
}

// RequestID assigns a request ID (or keeps the caller's) and exposes it on the
// request context for logger.WithContext.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.RequestIDKey, id))
		c.Next()
	}
}

// RequestLogger logs HTTP requests with timing.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		clientIP := c.ClientIP()

		reqLog := log.WithContext(c.Request.Context())
		if len(c.Errors) > 0 {
			reqLog.HTTPError(c.Request.Method, path, status, c.Errors.Last(), clientIP)
			return
		}
		reqLog.HTTPRequest(c.Request.Method, path, status, float64(latency.Milliseconds()), clientIP)
	}
}

// SecurityHeaders adds security headers to responses.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// IPRateLimiter manages per-IP rate limiters.
type IPRateLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

// NewIPRateLimiter creates a new IP-based rate limiter.
func NewIPRateLimiter(r rate.Limit, burst int, log *logger.Logger) *IPRateLimiter {
	return &IPRateLimiter{
		rate:  r,
		burst: burst,
		log:   log,
	}
}

// NewPerMinuteRateLimiter allows perMinute requests per IP per minute with an equal burst.
func NewPerMinuteRateLimiter(perMinute int, log *logger.Logger) *IPRateLimiter {
	return NewIPRateLimiter(rate.Limit(float64(perMinute)/60.0), perMinute, log)
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	limiter, _ := i.limiters.LoadOrStore(ip, rate.NewLimiter(i.rate, i.burst))
	return limiter.(*rate.Limiter)
}

// RateLimit returns a middleware that rate limits by IP.
func (i *IPRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter := i.getLimiter(ip)

		if !limiter.Allow() {
			if i.log != nil {
				i.log.RateLimitExceeded(ip, c.Request.URL.Path)
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  apperr.CodeRateLimited,
			})
			return
		}

		c.Next()
	}
}

// AuthRequired returns middleware that authenticates the caller from a Bearer
// access token or, failing that, from the session cookie.
func AuthRequired(cfg config.JWTConfig, sessions SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rawToken, ok := extractBearerToken(c.GetHeader("Authorization")); ok {
			principal, err := ParseAccessToken(rawToken, cfg)
			if err != nil {
				abortUnauthorized(c, errInvalidToken)
				return
			}
			setPrincipal(c, principal)
			c.Next()
			return
		}

		if sessions != nil && cookieName != "" {
			if sessionID, err := c.Cookie(cookieName); err == nil && sessionID != "" {
				principal, ok, err := sessions.Resolve(c.Request.Context(), sessionID)
				if err != nil {
					_ = c.Error(err)
					c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "session lookup failed", Code: apperr.CodeInternal})
					return
				}
				if ok {
					setPrincipal(c, principal)
					c.Next()
					return
				}
			}
		}

		abortUnauthorized(c, errMissingToken)
	}
}

// RequireAnyRole returns middleware that checks if the user has one of the roles.
func RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		for _, role := range roles {
			if id.HasRole(role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Code: apperr.CodeForbidden})
	}
}

// ParseAccessToken validates an HMAC-signed access token and returns its principal.
// Roles are read from "roles" or, for Keycloak-style tokens, "realm_access.roles".
func ParseAccessToken(rawToken string, cfg config.JWTConfig) (Principal, error) {
	parsed, err := jwt.Parse(rawToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(cfg.GetJWTAccessSecret()), nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, errors.New(errInvalidToken)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, errors.New(errInvalidToken)
	}

	if tokenType, present := claims["type"]; present && tokenType != "access" {
		return Principal{}, errors.New(errInvalidToken)
	}

	subject, _ := claims["sub"].(string)
	if strings.TrimSpace(subject) == "" {
		return Principal{}, errors.New(errInvalidToken)
	}

	principal := Principal{Subject: subject}
	principal.Username, _ = claims["preferred_username"].(string)
	principal.Name, _ = claims["name"].(string)
	principal.Email, _ = claims["email"].(string)
	principal.Roles = extractRoles(claims["roles"])
	if realm, ok := claims["realm_access"].(map[string]interface{}); ok {
		principal.Roles = append(principal.Roles, extractRoles(realm["roles"])...)
	}
	return principal, nil
}

func setPrincipal(c *gin.Context, p Principal) {
	c.Set(ContextPrincipalKey, p)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.UserIDKey, p.Subject))
}

func extractRoles(value interface{}) []string {
	roles := make([]string, 0)
	if value == nil {
		return roles
	}

	switch typed := value.(type) {
	case []string:
		return append(roles, typed...)
	case []interface{}:
		for _, item := range typed {
			if text, ok := item.(string); ok {
				roles = append(roles, text)
			}
		}
	}

	return roles
}

func extractBearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	rawToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if rawToken == "" {
		return "", false
	}

	return rawToken, true
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: message, Code: apperr.CodeUnauthorized})
}
