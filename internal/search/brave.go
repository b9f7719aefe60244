package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultBraveURL is the Brave Web Search endpoint.
const DefaultBraveURL = "https://api.search.brave.com/res/v1/web/search"

// BraveClient queries the Brave Web Search API restricted to Turkish results.
type BraveClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewBraveClient returns a client for endpoint (DefaultBraveURL when empty).
func NewBraveClient(endpoint, apiKey string, client *http.Client) *BraveClient {
	if endpoint == "" {
		endpoint = DefaultBraveURL
	}
	if client == nil {
		client = &http.Client{Timeout: callTimeout}
	}
	return &BraveClient{endpoint: endpoint, apiKey: apiKey, client: client}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
		} `json:"results"`
	} `json:"web"`
}

// Search implements Provider.
func (c *BraveClient) Search(ctx context.Context, query string, count int) ([]Hit, error) {
	if c.apiKey == "" {
		return nil, errors.New("brave: api key not configured")
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("brave: endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(count))
	q.Set("search_lang", "tr")
	q.Set("country", "tr")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("brave: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("brave: unexpected status %d", resp.StatusCode)
	}

	var body braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("brave: decode: %w", err)
	}

	hits := make([]Hit, 0, len(body.Web.Results))
	for _, r := range body.Web.Results {
		hits = append(hits, Hit{Title: r.Title, Description: r.Description, URL: r.URL})
	}
	return hits, nil
}
