package utils

import (
	"strings" // Uppercasing the code

	"github.com/google/uuid" // Randomness source for codes
)

// GenerateReferralCode returns a short unique code handed to invitees.
// Uniqueness is enforced by the database index; collisions on 8 hex chars
// are retried by the caller on insert failure.
func GenerateReferralCode() string {
	id := uuid.NewString()                                      // Random UUID
	return strings.ToUpper(strings.ReplaceAll(id, "-", ""))[:8] // First 8 hex chars, uppercased
}
