// Package gemini implements analysis.Generator on top of the Google Gen AI
// SDK, keeping one SDK client per API key.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/genai"

	"github.com/parseldeger/imar/internal/analysis"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Options configures the Generator.
type Options struct {
	Model string
	// BaseURL overrides the API endpoint; empty means the SDK default.
	BaseURL string
	// HTTPClient is passed to the SDK when set.
	HTTPClient *http.Client
}

// Generator sends prompts to Gemini. It is safe for concurrent use.
type Generator struct {
	opts    Options
	mu      sync.Mutex
	clients map[string]*genai.Client
}

// New returns a Generator for opts.
func New(opts Options) *Generator {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	return &Generator{opts: opts, clients: make(map[string]*genai.Client)}
}

func (g *Generator) client(ctx context.Context, key string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[key]; ok {
		return c, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.opts.HTTPClient,
	}
	if g.opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.opts.BaseURL}
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	g.clients[key] = c
	return c, nil
}

// Generate implements analysis.Generator.
func (g *Generator) Generate(ctx context.Context, credential string, req analysis.Request) (string, error) {
	c, err := g.client(ctx, credential)
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}

	var cfg *genai.GenerateContentConfig
	if req.System != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		}
	}

	resp, err := c.Models.GenerateContent(ctx, g.opts.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", wrapError(err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

// wrapError marks HTTP 429 responses with analysis.ErrRateLimited so the
// engine rotates regardless of the message text.
func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("gemini: %w: %w", analysis.ErrRateLimited, err)
	}
	return fmt.Errorf("gemini: %w", err)
}
