package handler

import (
	"net/http"

	"travelplan_backend/internal/bookings/transport"
	"travelplan_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListInvoices(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.ListInvoices(c.Request.Context(), c.Param("id"), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) CreateInvoice(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	req, ok := h.bindInvoice(c)
	if !ok {
		return
	}
	resp, err := h.svc.CreateInvoice(c.Request.Context(), c.Param("id"), req, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, gin.H{"invoice": resp})
}

func (h *Handler) UpdateInvoice(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	req, ok := h.bindInvoice(c)
	if !ok {
		return
	}
	resp, err := h.svc.UpdateInvoice(c.Request.Context(), c.Param("id"), c.Param("invoiceId"), req, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"invoice": resp})
}

func (h *Handler) SendInvoice(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.SendInvoice(c.Request.Context(), c.Param("id"), c.Param("invoiceId"), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"invoice": resp})
}

func (h *Handler) MarkInvoicePaid(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	resp, err := h.svc.MarkInvoicePaid(c.Request.Context(), c.Param("id"), c.Param("invoiceId"), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"invoice": resp})
}

// GetPublicInvoice serves the customer invoice link. It needs no session.
func (h *Handler) GetPublicInvoice(c *gin.Context) {
	resp, err := h.svc.GetPublicInvoice(c.Request.Context(), c.Param("token"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"invoice": resp})
}

func (h *Handler) bindInvoice(c *gin.Context) (transport.InvoiceRequest, bool) {
	var req transport.InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return req, false
	}
	return req, h.validate(c, req)
}
