package service

import (
	"context"
	"fmt"
	"time"

	"github.com/parseldeger/imar/internal/models"
)

// SessionTTL is how long an issued session stays valid.
const SessionTTL = 7 * 24 * time.Hour

// DefaultSignupCredits is the balance of a newly created account.
const DefaultSignupCredits = 10

// Exchanger resolves a one-time login session id into a user profile.
type Exchanger interface {
	Exchange(ctx context.Context, sessionID string) (*models.Profile, error)
}

// AccountRepository persists accounts and sessions.
type AccountRepository interface {
	UpsertAccount(ctx context.Context, acc models.Account) (*models.Account, error)
	CreateSession(ctx context.Context, s models.Session) error
	DeleteSession(ctx context.Context, token string) error
}

// AuthService signs users in through the external identity provider.
type AuthService struct {
	repo          AccountRepository
	exchanger     Exchanger
	clock         Clock
	ids           IDGenerator
	signupCredits int
}

// NewAuthService constructs an AuthService. New accounts receive
// signupCredits credits.
func NewAuthService(repo AccountRepository, exchanger Exchanger, clock Clock, ids IDGenerator, signupCredits int) *AuthService {
	return &AuthService{repo: repo, exchanger: exchanger, clock: clock, ids: ids, signupCredits: signupCredits}
}

// Exchange trades sessionID for a profile, creates or refreshes the account
// registered under its email, and opens a session for it.
func (s *AuthService) Exchange(ctx context.Context, sessionID string) (*models.Account, *models.Session, error) {
	if sessionID == "" {
		return nil, nil, &ValidationError{Fields: []string{"session_id"}}
	}

	profile, err := s.exchanger.Exchange(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("exchange session: %w", err)
	}

	now := s.clock.Now()
	acc, err := s.repo.UpsertAccount(ctx, models.Account{
		ID:        s.ids.NewAccountID(),
		Email:     profile.Email,
		Name:      profile.Name,
		Picture:   profile.Picture,
		Credits:   s.signupCredits,
		CreatedAt: now,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("upsert account: %w", err)
	}

	token := profile.SessionToken
	if token == "" {
		token = s.ids.NewSessionToken()
	}
	sess := models.Session{
		Token:     token,
		AccountID: acc.ID,
		ExpiresAt: now.Add(SessionTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	return acc, &sess, nil
}

// Logout deletes the session behind token. An empty or unknown token is not
// an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
