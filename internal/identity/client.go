// Package identity exchanges a one-time session id issued by the external
// login provider for the signed-in user's profile.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/parseldeger/imar/internal/models"
	"github.com/parseldeger/imar/internal/service"
)

// DefaultURL is the session-data endpoint of the login provider.
const DefaultURL = "https://demobackend.emergentagent.com/auth/v1/env/oauth/session-data"

const exchangeTimeout = 10 * time.Second

// Client calls the provider's session-data endpoint.
type Client struct {
	url    string
	client *http.Client
}

// NewClient returns a Client for url (DefaultURL when empty).
func NewClient(url string, client *http.Client) *Client {
	if url == "" {
		url = DefaultURL
	}
	if client == nil {
		client = &http.Client{Timeout: exchangeTimeout}
	}
	return &Client{url: url, client: client}
}

// Exchange resolves sessionID into a profile. A non-2xx answer or a profile
// without an email is reported as service.ErrIdentityRejected.
func (c *Client) Exchange(ctx context.Context, sessionID string) (*models.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("X-Session-ID", sessionID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("identity: status %d: %w", resp.StatusCode, service.ErrIdentityRejected)
	}

	var p models.Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("identity: decode: %w", err)
	}
	if p.Email == "" {
		return nil, fmt.Errorf("identity: %w", errors.Join(service.ErrIdentityRejected, errors.New("profile without email")))
	}
	return &p, nil
}
