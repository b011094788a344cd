// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"travelplan_backend/platform/config"
	"travelplan_backend/platform/httpkit"
	"travelplan_backend/platform/logger"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
	config.SessionConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration (HTTP, JWT and session settings only).
	Config RouterConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness/health checks (e.g., store ping).
	Health HealthChecker
	// Sessions resolves session cookies for the auth middleware.
	Sessions httpkit.SessionResolver
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
