// Package analysis turns a parcel descriptor and its search evidence into a
// plain-text zoning report, rotating across a pool of language-model
// credentials when one runs out of quota.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/parseldeger/imar/internal/models"
)

// User-facing texts returned in place of a report.
const (
	NotConfiguredMessage = "Gemini API anahtarları yapılandırılmamış."
	ExhaustedMessage     = "Tüm Gemini API anahtarlarının kotası doldu. Lütfen daha sonra tekrar deneyin."
	failedPrefix         = "Analiz hatası: "
)

var (
	// ErrNotConfigured means the credential pool is empty.
	ErrNotConfigured = errors.New("no model credentials configured")
	// ErrAllProvidersExhausted means every credential failed and the last
	// failure was a quota error.
	ErrAllProvidersExhausted = errors.New("all model credentials exhausted")
	// ErrAnalysisFailed means every attempt failed and the last failure was
	// not quota related.
	ErrAnalysisFailed = errors.New("analysis failed")
	// ErrRateLimited may be wrapped by a Generator to mark a quota failure
	// independently of the error text.
	ErrRateLimited = errors.New("rate limited")
)

// Request is a single completion request.
type Request struct {
	System string
	Prompt string
}

// Generator produces a completion using one credential of the pool.
type Generator interface {
	Generate(ctx context.Context, credential string, req Request) (string, error)
}

// Result is the outcome of Analyze. Text is always presentable to the user;
// Err tells whether it is a report or a degraded message.
type Result struct {
	Text string
	Err  error
}

// Engine calls the Generator with credentials in round-robin order. The
// rotation cursor is shared by every caller of the same Engine.
type Engine struct {
	gen    Generator
	keys   []string
	cursor atomic.Int64
	log    *zap.Logger
}

// NewEngine constructs an Engine over the given credential pool.
func NewEngine(gen Generator, keys []string, log *zap.Logger) *Engine {
	return &Engine{gen: gen, keys: append([]string(nil), keys...), log: log}
}

// Cursor returns the index of the credential the next call will start with.
func (e *Engine) Cursor() int {
	return int(e.cursor.Load())
}

// advance moves the cursor past from. If another call already moved it,
// the cursor is left where that call put it.
func (e *Engine) advance(from int64) {
	e.cursor.CompareAndSwap(from, (from+1)%int64(len(e.keys)))
}

// Analyze asks the model for a report on p. It makes at most one attempt
// per credential, advancing the cursor after every failure.
func (e *Engine) Analyze(ctx context.Context, p models.Property, evidence string) Result {
	if len(e.keys) == 0 {
		return Result{Text: NotConfiguredMessage, Err: ErrNotConfigured}
	}

	req := Request{System: SystemPrompt, Prompt: BuildPrompt(p, evidence)}
	var (
		lastErr   error
		lastQuota bool
	)
	for attempt := 0; attempt < len(e.keys); attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr, lastQuota = err, false
			break
		}

		idx := e.cursor.Load()
		text, err := e.gen.Generate(ctx, e.keys[idx], req)
		if err == nil {
			e.log.Info("analysis completed", zap.Int64("credential", idx+1))
			return Result{Text: Clean(text)}
		}

		lastErr, lastQuota = err, IsQuotaError(err)
		if lastQuota {
			e.log.Warn("credential over quota, rotating", zap.Int64("credential", idx+1))
		} else {
			e.log.Error("model call failed, rotating", zap.Int64("credential", idx+1), zap.Error(err))
		}
		e.advance(idx)
	}

	if lastQuota {
		e.log.Error("all model credentials exhausted", zap.Int("pool", len(e.keys)))
		return Result{Text: ExhaustedMessage, Err: fmt.Errorf("%w: %w", ErrAllProvidersExhausted, lastErr)}
	}
	return Result{
		Text: failedPrefix + lastErr.Error(),
		Err:  fmt.Errorf("%w: %w", ErrAnalysisFailed, lastErr),
	}
}

var quotaMarkers = []string{"quota", "rate limit", "resource exhausted", "429", "quota exceeded"}

// IsQuotaError reports whether err signals quota or rate-limit exhaustion.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range quotaMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

var markdown = strings.NewReplacer("###", "", "##", "", "**", "")

// Clean strips markdown heading and emphasis markers.
func Clean(s string) string {
	return markdown.Replace(s)
}
