// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// Principal is the authenticated caller as resolved from a bearer token or a session.
type Principal struct {
	Subject  string   `json:"sub"`
	Username string   `json:"preferred_username"`
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles"`
}

// Identity represents the authenticated user's identity.
// This interface abstracts identity extraction from the web framework,
// allowing handlers to access user information without depending on Gin.
type Identity interface {
	// UserID returns the authenticated user's subject.
	UserID() string
	// Username returns the login name used to match staff records.
	Username() string
	// Roles returns the user's assigned roles.
	Roles() []string
	// HasRole checks if the user has a specific role.
	HasRole(role string) bool
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

// identity is the concrete implementation of Identity.
type identity struct {
	principal     Principal
	authenticated bool
}

func (i *identity) UserID() string {
	return i.principal.Subject
}

func (i *identity) Username() string {
	if i.principal.Username != "" {
		return i.principal.Username
	}
	return i.principal.Subject
}

func (i *identity) Roles() []string {
	return i.principal.Roles
}

func (i *identity) HasRole(role string) bool {
	return slices.Contains(i.principal.Roles, role)
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// NewIdentity wraps a principal as an authenticated Identity.
func NewIdentity(p Principal) Identity {
	return &identity{principal: p, authenticated: p.Subject != ""}
}

// GetPrincipal returns the principal stored by AuthRequired.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	value, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := value.(Principal)
	return p, ok
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	p, ok := GetPrincipal(c)
	if !ok || p.Subject == "" {
		return &identity{authenticated: false}
	}
	return &identity{principal: p, authenticated: true}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: "UNAUTHORIZED"})
		return nil
	}
	return id
}
