package handler

import (
	"net/http"
	"time"

	"travelplan_backend/internal/auth/roles"
	"travelplan_backend/internal/auth/session"
	"travelplan_backend/internal/auth/transport"
	"travelplan_backend/platform/config"
	"travelplan_backend/platform/httpkit"
	"travelplan_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const (
	msgUnauthorized  = "unauthorized"
	msgSessionFailed = "could not create session"
)

type Handler struct {
	sessions session.Store
	cfg      config.SessionConfig
	log      *logger.Logger
}

func New(sessions session.Store, cfg config.SessionConfig, log *logger.Logger) *Handler {
	return &Handler{sessions: sessions, cfg: cfg, log: log}
}

// CreateSession exchanges the already-verified caller for a cookie session.
func (h *Handler) CreateSession(c *gin.Context) {
	principal, ok := httpkit.GetPrincipal(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	sess, err := h.sessions.Create(c.Request.Context(), principal, h.cfg.GetSessionTTL())
	if err != nil {
		h.log.AuthEvent("session_create", principal.Subject, false, err.Error())
		_ = c.Error(err)
		httpkit.Error(c, http.StatusInternalServerError, msgSessionFailed, nil)
		return
	}
	h.log.AuthEvent("session_create", principal.Subject, true, "")

	h.setCookie(c, sess.ID, sess.ExpiresAt)
	httpkit.Created(c, transport.SessionResponse{
		ExpiresAt: sess.ExpiresAt,
		User:      meResponse(principal),
	})
}

// DeleteSession drops the session named by the cookie, if any, and clears it.
func (h *Handler) DeleteSession(c *gin.Context) {
	if sessionID, err := c.Cookie(h.cfg.GetSessionCookieName()); err == nil && sessionID != "" {
		if err := h.sessions.Delete(c.Request.Context(), sessionID); err != nil {
			httpkit.HandleError(c, err)
			return
		}
	}
	h.setCookie(c, "", time.Unix(0, 0))
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	principal, ok := httpkit.GetPrincipal(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}
	httpkit.OK(c, meResponse(principal))
}

func (h *Handler) setCookie(c *gin.Context, value string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if value == "" || maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cfg.GetSessionCookieName(),
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.GetSessionCookieSecure(),
		SameSite: h.cfg.GetSessionCookieSameSite(),
	})
}

func meResponse(p httpkit.Principal) transport.MeResponse {
	roleList := p.Roles
	if roleList == nil {
		roleList = []string{}
	}
	return transport.MeResponse{
		Subject:     p.Subject,
		Username:    p.Username,
		Name:        p.Name,
		Email:       p.Email,
		Roles:       roleList,
		Permissions: roles.PermissionsFor(httpkit.NewIdentity(p)),
	}
}
