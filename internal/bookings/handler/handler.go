package handler

import (
	"net/http"
	"strings"

	"travelplan_backend/internal/bookings/service"
	"travelplan_backend/internal/bookings/transport"
	"travelplan_backend/platform/apperr"
	"travelplan_backend/platform/httpkit"
	"travelplan_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	headerIdempotencyKey = "Idempotency-Key"
	headerCountryGuess   = "CF-IPCountry"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the staff-facing routes on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	bookings := rg.Group("/bookings")
	bookings.GET("", h.ListBookings)
	bookings.GET("/:id", h.GetBooking)
	bookings.PATCH("/:id/stage", h.ChangeStage)
	bookings.PATCH("/:id/owner", h.ChangeOwner)
	bookings.PATCH("/:id/notes", h.ChangeNotes)
	bookings.PATCH("/:id/pricing", h.ChangePricing)
	bookings.GET("/:id/activities", h.ListActivities)
	bookings.POST("/:id/activities", h.CreateActivity)
	bookings.GET("/:id/invoices", h.ListInvoices)
	bookings.POST("/:id/invoices", h.CreateInvoice)
	bookings.PATCH("/:id/invoices/:invoiceId", h.UpdateInvoice)
	bookings.POST("/:id/invoices/:invoiceId/send", h.SendInvoice)
	bookings.POST("/:id/invoices/:invoiceId/paid", h.MarkInvoicePaid)

	customers := rg.Group("/customers")
	customers.GET("", h.ListCustomers)
	customers.GET("/:id", h.GetCustomer)
}

// RegisterPublicRoutes mounts the website intake and the customer invoice link.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/bookings", h.CreateLead)
	rg.POST("/leads", h.CreateLead)
	rg.GET("/invoices/:token", h.GetPublicInvoice)
}

// CreateLead captures a website form. A replayed Idempotency-Key answers 200
// with the original booking instead of 201.
func (h *Handler) CreateLead(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := service.ValidateLead(req); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	if !h.validate(c, req) {
		return
	}
	req.IPAddress = c.ClientIP()
	req.IPCountryGuess = strings.ToUpper(strings.TrimSpace(c.GetHeader(headerCountryGuess)))

	resp, err := h.svc.CreateLead(c.Request.Context(), req, c.GetHeader(headerIdempotencyKey))
	if httpkit.HandleError(c, err) {
		return
	}
	if resp.Deduplicated {
		httpkit.OK(c, resp)
		return
	}
	httpkit.Created(c, resp)
}

func (h *Handler) ListBookings(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req transport.ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if !h.validate(c, req) {
		return
	}

	resp, err := h.svc.ListBookings(c.Request.Context(), req, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) GetBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.GetBooking(c.Request.Context(), c.Param("id"), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) ChangeStage(c *gin.Context) {
	var req transport.ChangeStageRequest
	h.mutate(c, &req, func(actor service.Actor) (transport.MutationResponse, error) {
		return h.svc.ChangeStage(c.Request.Context(), c.Param("id"), req, actor)
	})
}

func (h *Handler) ChangeOwner(c *gin.Context) {
	var req transport.ChangeOwnerRequest
	h.mutate(c, &req, func(actor service.Actor) (transport.MutationResponse, error) {
		return h.svc.ChangeOwner(c.Request.Context(), c.Param("id"), req, actor)
	})
}

func (h *Handler) ChangeNotes(c *gin.Context) {
	var req transport.ChangeNotesRequest
	h.mutate(c, &req, func(actor service.Actor) (transport.MutationResponse, error) {
		return h.svc.ChangeNotes(c.Request.Context(), c.Param("id"), req, actor)
	})
}

func (h *Handler) ChangePricing(c *gin.Context) {
	var req transport.ChangePricingRequest
	h.mutate(c, &req, func(actor service.Actor) (transport.MutationResponse, error) {
		return h.svc.ChangePricing(c.Request.Context(), c.Param("id"), req, actor)
	})
}

// mutate binds and validates req, runs the edit and writes the result. A stale
// booking_hash answers 409 with the current record so the client can rebase.
func (h *Handler) mutate(c *gin.Context, req interface{}, run func(actor service.Actor) (transport.MutationResponse, error)) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if !h.validate(c, req) {
		return
	}

	resp, err := run(actor)
	if err != nil {
		writeMutationError(c, err)
		return
	}
	httpkit.OK(c, resp)
}

func writeMutationError(c *gin.Context, err error) {
	if e, ok := apperr.As(err); ok && e.Code == apperr.CodeBookingHashMismatch {
		if current, ok := e.Details.(transport.BookingResponse); ok {
			httpkit.JSON(c, http.StatusConflict, transport.ConflictResponse{
				Error:   e.Message,
				Code:    e.Code,
				Booking: current,
			})
			return
		}
	}
	httpkit.HandleError(c, err)
}

func (h *Handler) ListActivities(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.ListActivities(c.Request.Context(), c.Param("id"), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) CreateActivity(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req transport.CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if !h.validate(c, req) {
		return
	}

	resp, err := h.svc.CreateActivity(c.Request.Context(), c.Param("id"), req, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, resp)
}

func (h *Handler) ListCustomers(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req transport.ListCustomersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if !h.validate(c, req) {
		return
	}

	resp, err := h.svc.ListCustomers(c.Request.Context(), req, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) GetCustomer(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.GetCustomer(c.Request.Context(), c.Param("id"), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) validate(c *gin.Context, req interface{}) bool {
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(msgValidationFailed).WithDetails(validator.FieldErrors(err)))
		return false
	}
	return true
}

func actorFrom(c *gin.Context) (service.Actor, bool) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return service.Actor{}, false
	}
	return service.Actor{ID: id.UserID(), Username: id.Username(), Roles: id.Roles()}, true
}
