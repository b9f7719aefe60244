package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/parseldeger/imar/internal/analysis"
	"github.com/parseldeger/imar/internal/models"
	"github.com/parseldeger/imar/internal/search"
)

// Searcher gathers web evidence for a property.
type Searcher interface {
	Search(ctx context.Context, p models.Property) search.Result
}

// Analyzer synthesizes a report from a property and its evidence.
type Analyzer interface {
	Analyze(ctx context.Context, p models.Property, evidence string) analysis.Result
}

// AnalysisOutcome is the response to a completed analysis.
type AnalysisOutcome struct {
	Analysis         string `json:"analysis"`
	RemainingCredits int    `json:"remaining_credits"`
	SearchQuery      string `json:"search_query"`
}

// AnalysisService runs the credit-gated analysis pipeline.
type AnalysisService struct {
	ledger   *Ledger
	searcher Searcher
	analyzer Analyzer
	clock    Clock
	log      *zap.Logger
}

// NewAnalysisService constructs an AnalysisService.
func NewAnalysisService(ledger *Ledger, searcher Searcher, analyzer Analyzer, clock Clock, log *zap.Logger) *AnalysisService {
	return &AnalysisService{ledger: ledger, searcher: searcher, analyzer: analyzer, clock: clock, log: log}
}

// Analyze validates p, checks the quota of id, searches, analyzes, then
// bills the analysis and stores it. Search and model failures degrade into
// the returned text and are still billed. ErrQuotaExhausted is returned
// before any external call when id has no credits left.
func (s *AnalysisService) Analyze(ctx context.Context, id models.Identity, p models.Property) (*AnalysisOutcome, error) {
	p = p.Normalize()
	if missing := p.MissingFields(); len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	if _, err := s.ledger.Check(ctx, id); err != nil {
		return nil, err
	}

	query := p.SearchQuery()
	found := s.searcher.Search(ctx, p)
	if found.Err != nil {
		s.log.Warn("search degraded", zap.Error(found.Err))
	}

	report := s.analyzer.Analyze(ctx, p, found.Bundle)
	if report.Err != nil {
		s.log.Warn("analysis degraded", zap.Error(report.Err))
	}

	remaining, err := s.ledger.Commit(ctx, id, models.AnalysisRecord{
		PropertyInfo: p.Summary(),
		SearchQuery:  query,
		Analysis:     report.Text,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, ErrQuotaExhausted) {
			return nil, err
		}
		return nil, fmt.Errorf("commit analysis: %w", err)
	}

	s.log.Info("analysis billed",
		zap.Bool("authenticated", id.Authenticated()),
		zap.Int("remaining_credits", remaining),
		zap.Int("hits", len(found.Hits)),
	)
	return &AnalysisOutcome{Analysis: report.Text, RemainingCredits: remaining, SearchQuery: query}, nil
}

// Credits returns the remaining credits of id.
func (s *AnalysisService) Credits(ctx context.Context, id models.Identity) (int, error) {
	return s.ledger.Remaining(ctx, id)
}
