package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parseldeger/imar/internal/models"
)

type fakeSessionStore struct {
	GetSessionFunc     func(ctx context.Context, token string) (*models.Session, error)
	GetAccountByIDFunc func(ctx context.Context, id string) (*models.Account, error)
}

func (f *fakeSessionStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	return f.GetSessionFunc(ctx, token)
}

func (f *fakeSessionStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return f.GetAccountByIDFunc(ctx, id)
}

func TestIdentityResolver_Resolve(t *testing.T) {
	acc := &models.Account{ID: "user_abc", Email: "a@example.com", Credits: 3}
	session := func(expires time.Time) func(context.Context, string) (*models.Session, error) {
		return func(context.Context, string) (*models.Session, error) {
			return &models.Session{Token: "tok", AccountID: acc.ID, ExpiresAt: expires}, nil
		}
	}
	account := func(context.Context, string) (*models.Account, error) { return acc, nil }
	dbErr := errors.New("connection refused")

	tests := []struct {
		name      string
		token     string
		store     *fakeSessionStore
		wantAuth  bool
		wantError bool
	}{
		{
			name:  "no token",
			store: &fakeSessionStore{},
		},
		{
			name:  "unknown token",
			token: "tok",
			store: &fakeSessionStore{GetSessionFunc: func(context.Context, string) (*models.Session, error) {
				return nil, models.ErrNotFound
			}},
		},
		{
			name:  "expired exactly now",
			token: "tok",
			store: &fakeSessionStore{GetSessionFunc: session(testNow)},
		},
		{
			name:  "account deleted",
			token: "tok",
			store: &fakeSessionStore{
				GetSessionFunc: session(testNow.Add(time.Hour)),
				GetAccountByIDFunc: func(context.Context, string) (*models.Account, error) {
					return nil, models.ErrNotFound
				},
			},
		},
		{
			name:     "valid session",
			token:    "tok",
			store:    &fakeSessionStore{GetSessionFunc: session(testNow.Add(time.Second)), GetAccountByIDFunc: account},
			wantAuth: true,
		},
		{
			name:  "storage failure",
			token: "tok",
			store: &fakeSessionStore{GetSessionFunc: func(context.Context, string) (*models.Session, error) {
				return nil, dbErr
			}},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewIdentityResolver(tt.store, fixedClock{testNow})
			id, err := r.Resolve(context.Background(), tt.token, "203.0.113.7")
			if tt.wantError {
				assert.ErrorIs(t, err, dbErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAuth, id.Authenticated())
			if !tt.wantAuth {
				assert.Equal(t, HashIP("203.0.113.7"), id.IPHash)
			}
		})
	}
}

func TestHashIP(t *testing.T) {
	h := HashIP("203.0.113.7")
	assert.Len(t, h, 64)
	assert.NotContains(t, h, "203")
	assert.Equal(t, h, HashIP("203.0.113.7"))
	assert.NotEqual(t, h, HashIP("203.0.113.8"))
}
