package transport

import (
	"time"

	"travelplan_backend/internal/auth/roles"
)

type MeResponse struct {
	Subject     string            `json:"sub"`
	Username    string            `json:"username"`
	Name        string            `json:"name,omitempty"`
	Email       string            `json:"email,omitempty"`
	Roles       []string          `json:"roles"`
	Permissions roles.Permissions `json:"permissions"`
}

type SessionResponse struct {
	ExpiresAt time.Time  `json:"expires_at"`
	User      MeResponse `json:"user"`
}
