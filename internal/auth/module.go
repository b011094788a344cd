// Package auth provides the authentication bounded context module.
// Identity comes from an external provider as a signed bearer token; this
// context exchanges it for a cookie session and reports who the caller is.
package auth

import (
	"travelplan_backend/internal/auth/handler"
	"travelplan_backend/internal/auth/session"
	apphttp "travelplan_backend/internal/http"
	"travelplan_backend/platform/config"
	"travelplan_backend/platform/logger"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler  *handler.Handler
	sessions session.Store
}

// NewModule creates the auth module on top of an existing session store.
func NewModule(sessions session.Store, cfg config.SessionConfig, log *logger.Logger) *Module {
	return &Module{
		handler:  handler.New(sessions, cfg, log),
		sessions: sessions,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// Sessions returns the store backing cookie sessions.
func (m *Module) Sessions() session.Store {
	return m.sessions
}

// RegisterRoutes mounts auth routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	authGroup := ctx.V1.Group("/auth")
	authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	authGroup.POST("/session", ctx.AuthMiddleware, m.handler.CreateSession)
	authGroup.DELETE("/session", m.handler.DeleteSession)
	authGroup.GET("/me", ctx.AuthMiddleware, m.handler.Me)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
