package domain

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// ComputeBookingHash derives the optimistic-concurrency token from every field
// of the booking except the token itself. Any committed edit bumps UpdatedAt,
// so the token changes on every mutation.
func ComputeBookingHash(b Booking) string {
	b.BookingHash = ""
	payload, err := json.Marshal(b)
	if err != nil {
		// Booking contains only JSON-safe fields.
		panic(err)
	}
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:16])
}

// MatchesHash reports whether a client-supplied token is current.
func (b Booking) MatchesHash(token string) bool {
	return token != "" && token == b.BookingHash
}
