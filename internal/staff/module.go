package staff

import (
	"travelplan_backend/internal/auth/roles"
	apphttp "travelplan_backend/internal/http"
	"travelplan_backend/internal/staff/handler"
	"travelplan_backend/platform/httpkit"
)

// Module exposes the staff directory read-only to signed-in users.
type Module struct {
	handler *handler.Handler
}

func NewModule(dir Directory) *Module {
	return &Module{handler: handler.New(dir)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "staff"
}

// RegisterRoutes mounts GET /api/v1/staff.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/staff")
	group.Use(httpkit.RequireAnyRole(roles.All...))
	group.GET("", m.handler.List)
}

var _ apphttp.Module = (*Module)(nil)
