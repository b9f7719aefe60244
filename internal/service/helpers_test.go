package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parseldeger/imar/internal/analysis"
	"github.com/parseldeger/imar/internal/models"
	"github.com/parseldeger/imar/internal/search"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type seqIDs struct{ n atomic.Int32 }

func (s *seqIDs) NewAccountID() string {
	return "user_" + string(rune('a'+s.n.Add(1)-1))
}

func (s *seqIDs) NewSessionToken() string { return "generated-token" }

type countingSearcher struct {
	calls  atomic.Int32
	result search.Result
}

func (c *countingSearcher) Search(_ context.Context, p models.Property) search.Result {
	c.calls.Add(1)
	r := c.result
	if r.Bundle == "" {
		r.Bundle = "Başlık: " + p.Province
	}
	return r
}

type countingAnalyzer struct {
	mu       sync.Mutex
	calls    int
	evidence []string
	result   analysis.Result
}

func (c *countingAnalyzer) Analyze(_ context.Context, _ models.Property, evidence string) analysis.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.evidence = append(c.evidence, evidence)
	if c.result.Text == "" {
		return analysis.Result{Text: "RAPOR"}
	}
	return c.result
}

var validParcel = models.Property{
	Province: "Ankara", District: "Çankaya", Neighborhood: "Kızılay", Block: "123", Parcel: "4",
}
