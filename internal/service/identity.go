// Package service implements the business logic of the zoning lookup
// service: identity resolution, the credit ledger, the analysis pipeline,
// account sessions and payment reconciliation.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/parseldeger/imar/internal/models"
)

// SessionStore is the lookup side of account and session storage.
type SessionStore interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
}

// IdentityResolver turns request credentials into a billing identity.
type IdentityResolver struct {
	store SessionStore
	clock Clock
}

// NewIdentityResolver constructs an IdentityResolver.
func NewIdentityResolver(store SessionStore, clock Clock) *IdentityResolver {
	return &IdentityResolver{store: store, clock: clock}
}

// Resolve returns the account bound to token when the session exists, has
// not expired and still points to an account. Any of those failing yields
// the anonymous identity for clientIP without an error. Only storage
// failures are returned.
func (r *IdentityResolver) Resolve(ctx context.Context, token, clientIP string) (models.Identity, error) {
	anonymous := models.AnonymousIdentity(HashIP(clientIP))
	if token == "" {
		return anonymous, nil
	}

	sess, err := r.store.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return anonymous, nil
		}
		return models.Identity{}, fmt.Errorf("resolve session: %w", err)
	}
	if sess.Expired(r.clock.Now()) {
		return anonymous, nil
	}

	acc, err := r.store.GetAccountByID(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return anonymous, nil
		}
		return models.Identity{}, fmt.Errorf("resolve account: %w", err)
	}
	return models.AccountIdentity(acc), nil
}

// HashIP returns the hex SHA-256 digest of ip.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}
