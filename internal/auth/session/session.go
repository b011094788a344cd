// Package session keeps cookie sessions minted from a verified bearer token.
// Session IDs are only stored hashed so a dump of the store cannot be replayed.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"travelplan_backend/platform/httpkit"
)

const idBytes = 32

// ErrInvalidTTL is returned when a session would expire immediately.
var ErrInvalidTTL = errors.New("session ttl must be positive")

// Session is a resolved cookie session.
type Session struct {
	ID        string            `json:"-"`
	Principal httpkit.Principal `json:"principal"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Store persists sessions. Implementations must satisfy httpkit.SessionResolver.
type Store interface {
	Create(ctx context.Context, principal httpkit.Principal, ttl time.Duration) (Session, error)
	Resolve(ctx context.Context, sessionID string) (httpkit.Principal, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

func newID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashID(id string) string {
	h := sha256.Sum256([]byte(id))
	return hex.EncodeToString(h[:])
}
