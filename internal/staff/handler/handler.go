package handler

import (
	"context"
	"slices"
	"strconv"

	"travelplan_backend/internal/bookings/domain"
	"travelplan_backend/platform/apperr"
	"travelplan_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const msgInvalidActive = "active must be true or false"

// Lister is the read side of the staff directory.
type Lister interface {
	ListStaff(ctx context.Context) ([]domain.StaffMember, error)
}

type StaffResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Active       bool     `json:"active"`
	Email        string   `json:"email,omitempty"`
	Destinations []string `json:"destinations"`
	Languages    []string `json:"languages"`
}

type StaffListResponse struct {
	Items []StaffResponse `json:"items"`
}

type Handler struct {
	staff Lister
}

func New(staff Lister) *Handler {
	return &Handler{staff: staff}
}

// List returns staff sorted by name. Only active members are listed unless
// active=false is passed.
func (h *Handler) List(c *gin.Context) {
	activeOnly := true
	if raw := c.Query("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httpkit.HandleError(c, apperr.Validation(msgInvalidActive))
			return
		}
		activeOnly = v
	}

	members, err := h.staff.ListStaff(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "staff directory unavailable", err))
		return
	}

	names := collate.New(language.Und)
	slices.SortStableFunc(members, func(a, b domain.StaffMember) int {
		return names.CompareString(a.Name, b.Name)
	})

	items := make([]StaffResponse, 0, len(members))
	for _, m := range members {
		if activeOnly && !m.Active {
			continue
		}
		items = append(items, StaffResponse{
			ID:           m.ID,
			Name:         m.Name,
			Active:       m.Active,
			Email:        m.Email,
			Destinations: nonNil(m.Destinations),
			Languages:    nonNil(m.Languages),
		})
	}
	httpkit.OK(c, StaffListResponse{Items: items})
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
