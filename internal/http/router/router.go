// Package router assembles the gin engine from the application's modules.
package router

import (
	"net/http"
	"time"

	"travelplan_backend/internal/bookings/domain"
	apphttp "travelplan_backend/internal/http"
	"travelplan_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const serviceName = "travelplan-backend"

// authRequestsPerMinute bounds session exchange attempts per client IP.
const authRequestsPerMinute = 20

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK          bool     `json:"ok"`
	Service     string   `json:"service"`
	StageValues []string `json:"stage_values"`
	Timestamp   string   `json:"timestamp"`
	Error       string   `json:"error,omitempty"`
}

// New builds the engine: global middleware, health, then every module's routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	engine.GET("/health", healthHandler(app))

	authMiddleware := httpkit.AuthRequired(app.Config, app.Sessions, app.Config.GetSessionCookieName())

	v1 := engine.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(authMiddleware)

	ctx := &apphttp.RouterContext{
		Engine:            engine,
		Public:            engine.Group("/public/v1"),
		V1:                v1,
		Protected:         protected,
		AuthMiddleware:    authMiddleware,
		PublicRateLimiter: httpkit.NewPerMinuteRateLimiter(app.Config.GetPublicRateLimitPerMinute(), app.Logger),
		AuthRateLimiter:   httpkit.NewPerMinuteRateLimiter(authRequestsPerMinute, app.Logger),
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		app.Logger.Debug("module routes registered", "module", module.Name())
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", httpkit.HeaderRequestID},
		ExposeHeaders:    []string{httpkit.HeaderRequestID},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.GetCORSOrigins()
		if len(corsCfg.AllowOrigins) == 0 {
			corsCfg.AllowAllOrigins = true
			corsCfg.AllowCredentials = false
		}
	}
	return corsCfg
}

func healthHandler(app *apphttp.App) gin.HandlerFunc {
	stageValues := make([]string, 0, len(domain.Stages))
	for _, stage := range domain.Stages {
		stageValues = append(stageValues, string(stage))
	}

	return func(c *gin.Context) {
		resp := HealthResponse{
			OK:          true,
			Service:     serviceName,
			StageValues: stageValues,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
		if app.Health != nil {
			if err := app.Health.Ping(c.Request.Context()); err != nil {
				resp.OK = false
				resp.Error = "store unavailable"
				c.JSON(http.StatusServiceUnavailable, resp)
				return
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
