package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the current UTC time.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator produces identifiers for new accounts and sessions.
type IDGenerator interface {
	NewAccountID() string
	NewSessionToken() string
}

// UUIDGenerator derives identifiers from random UUIDs.
type UUIDGenerator struct{}

// NewAccountID returns "user_" followed by 12 hex characters.
func (UUIDGenerator) NewAccountID() string {
	return "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// NewSessionToken returns a random opaque token.
func (UUIDGenerator) NewSessionToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
