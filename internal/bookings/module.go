// Package bookings provides the booking lifecycle bounded context module:
// public lead intake, pipeline stages, ownership, pricing and the audit trail.
package bookings

import (
	"travelplan_backend/internal/bookings/handler"
	"travelplan_backend/internal/bookings/repository"
	"travelplan_backend/internal/bookings/service"
	"travelplan_backend/internal/events"
	apphttp "travelplan_backend/internal/http"
	"travelplan_backend/platform/logger"
	"travelplan_backend/platform/validator"
)

// Module is the bookings bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the bookings module. opts configure the service, for
// example the phone region and the SLA scheduler.
func NewModule(store repository.Store, staffDir service.StaffDirectory, eventBus events.Bus, val *validator.Validator, log *logger.Logger, opts ...service.Option) *Module {
	svc := service.New(store, staffDir, eventBus, log, opts...)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "bookings"
}

// Service returns the bookings service, used by the SLA worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the authenticated booking and customer routes and the
// rate limited public intake.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)

	public := ctx.Public.Group("")
	if ctx.PublicRateLimiter != nil {
		public.Use(ctx.PublicRateLimiter.RateLimit())
	}
	m.handler.RegisterPublicRoutes(public)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
