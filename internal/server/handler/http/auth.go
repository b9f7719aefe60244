// Package http provides the HTTP handlers and router of the zoning lookup
// API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/parseldeger/imar/internal/middleware"
	"github.com/parseldeger/imar/internal/models"
	"github.com/parseldeger/imar/internal/service"
)

// AuthService defines the session operations required by AuthHandler.
type AuthService interface {
	// Exchange trades a login session id for an account and a new session.
	Exchange(ctx context.Context, sessionID string) (*models.Account, *models.Session, error)
	// Logout deletes the session behind token.
	Logout(ctx context.Context, token string) error
}

// AuthHandler handles sign-in, the current-user lookup and sign-out.
type AuthHandler struct {
	AuthService AuthService
	// CookieSecure marks the session cookie Secure and SameSite=None. Turn
	// it off only for plain-HTTP local development.
	CookieSecure bool
	Log          *zap.Logger
}

// SessionRequest is the JSON body of POST /api/auth/session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	c := &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.CookieSecure {
		c.SameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, c)
}

// Session handles POST /api/auth/session. On success the session cookie is
// set for seven days and the account is returned.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	acc, sess, err := h.AuthService.Exchange(r.Context(), req.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrValidation):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, service.ErrIdentityRejected):
		writeDetail(w, http.StatusUnauthorized, "Invalid session")
		return
	default:
		h.Log.Error("session exchange failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "session exchange failed")
		return
	}

	h.setSessionCookie(w, sess.Token, int(service.SessionTTL.Seconds()))
	writeJSON(w, http.StatusOK, acc)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok || !id.Authenticated() {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, id.Account)
}

// Logout handles POST /api/auth/logout. It always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.AuthService.Logout(r.Context(), middleware.SessionToken(r)); err != nil {
		h.Log.Error("logout failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
