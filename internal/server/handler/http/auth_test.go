package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/parseldeger/imar/internal/middleware"
	"github.com/parseldeger/imar/internal/models"
	"github.com/parseldeger/imar/internal/service"
)

// fakeAuthService implements AuthService for testing.
type fakeAuthService struct {
	exchangeErr error
	logoutErr   error
	loggedOut   string
}

func (f *fakeAuthService) Exchange(_ context.Context, sessionID string) (*models.Account, *models.Session, error) {
	if f.exchangeErr != nil {
		return nil, nil, f.exchangeErr
	}
	return &models.Account{ID: "user_abc", Email: "a@example.com", Credits: 10},
		&models.Session{Token: "tok-" + sessionID, AccountID: "user_abc", ExpiresAt: time.Now().Add(service.SessionTTL)},
		nil
}

func (f *fakeAuthService) Logout(_ context.Context, token string) error {
	f.loggedOut = token
	return f.logoutErr
}

func sessionCookie(res *http.Response) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Session(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		service      *fakeAuthService
		expectedCode int
	}{
		{name: "invalid JSON", body: `nope`, service: &fakeAuthService{}, expectedCode: http.StatusUnprocessableEntity},
		{
			name:         "empty session id",
			body:         `{"session_id":""}`,
			service:      &fakeAuthService{exchangeErr: &service.ValidationError{Fields: []string{"session_id"}}},
			expectedCode: http.StatusUnprocessableEntity,
		},
		{
			name:         "rejected by provider",
			body:         `{"session_id":"sid"}`,
			service:      &fakeAuthService{exchangeErr: service.ErrIdentityRejected},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "provider down",
			body:         `{"session_id":"sid"}`,
			service:      &fakeAuthService{exchangeErr: errors.New("timeout")},
			expectedCode: http.StatusInternalServerError,
		},
		{name: "success", body: `{"session_id":"sid"}`, service: &fakeAuthService{}, expectedCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/session", bytes.NewBufferString(tt.body))

			h := &AuthHandler{AuthService: tt.service, CookieSecure: true, Log: zap.NewNop()}
			h.Session(rec, req)
			res := rec.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, res.StatusCode)
			}
			c := sessionCookie(res)
			if tt.expectedCode != http.StatusOK {
				if c != nil {
					t.Error("cookie set on failure")
				}
				return
			}
			if c == nil {
				t.Fatal("session cookie missing")
			}
			if c.Value != "tok-sid" || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteNoneMode ||
				c.Path != "/" || c.MaxAge != 7*24*60*60 {
				t.Errorf("unexpected cookie %+v", c)
			}
			var acc models.Account
			if err := json.NewDecoder(res.Body).Decode(&acc); err != nil {
				t.Fatalf("failed to decode JSON: %v", err)
			}
			if acc.ID != "user_abc" || acc.Credits != 10 {
				t.Errorf("unexpected account %+v", acc)
			}
		})
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := &AuthHandler{AuthService: &fakeAuthService{}, Log: zap.NewNop()}

	rec := httptest.NewRecorder()
	h.Me(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), anonymous))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Me(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), authenticated))
	if rec.Code != http.StatusOK {
		t.Fatalf("account: expected 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if payload["user_id"] != "user_abc" || payload["email"] != "a@example.com" {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	svc := &fakeAuthService{}
	h := &AuthHandler{AuthService: svc, CookieSecure: false, Log: zap.NewNop()}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer tok")
	h.Logout(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if svc.loggedOut != "tok" {
		t.Errorf("logged out %q; want %q", svc.loggedOut, "tok")
	}
	c := sessionCookie(res)
	if c == nil || c.MaxAge >= 0 || c.Value != "" {
		t.Errorf("cookie not cleared: %+v", c)
	}
	if c != nil && c.SameSite != http.SameSiteLaxMode {
		t.Errorf("insecure cookie should be SameSite=Lax, got %v", c.SameSite)
	}
}
