package repository

import (
	"context"
	"sync"
	"time"

	"github.com/parseldeger/imar/internal/models"
)

// MemoryRepository keeps accounts, sessions, quotas, analyses and payments in
// process memory. It implements the same contracts as the PostgreSQL
// repositories and is safe for concurrent use.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	byEmail  map[string]string
	sessions map[string]models.Session
	quotas   map[string]*models.AnonymousQuota
	payments map[string]models.PaymentRecord
	analyses []models.AnalysisRecord
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[string]*models.Account),
		byEmail:  make(map[string]string),
		sessions: make(map[string]models.Session),
		quotas:   make(map[string]*models.AnonymousQuota),
		payments: make(map[string]models.PaymentRecord),
	}
}

func copyAccount(a *models.Account) *models.Account {
	c := *a
	if a.Picture != nil {
		p := *a.Picture
		c.Picture = &p
	}
	return &c
}

// GetAccountByID implements the account repository contract.
func (m *MemoryRepository) GetAccountByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyAccount(acc), nil
}

// GetAccountByEmail implements the account repository contract.
func (m *MemoryRepository) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyAccount(m.accounts[id]), nil
}

// UpsertAccount implements the account repository contract.
func (m *MemoryRepository) UpsertAccount(_ context.Context, acc models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byEmail[acc.Email]; ok {
		existing := m.accounts[id]
		existing.Name = acc.Name
		existing.Picture = acc.Picture
		return copyAccount(existing), nil
	}
	stored := copyAccount(&acc)
	m.accounts[acc.ID] = stored
	m.byEmail[acc.Email] = acc.ID
	return copyAccount(stored), nil
}

// CreateSession implements the account repository contract.
func (m *MemoryRepository) CreateSession(_ context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s
	return nil
}

// GetSession implements the account repository contract.
func (m *MemoryRepository) GetSession(_ context.Context, token string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &s, nil
}

// DeleteSession implements the account repository contract.
func (m *MemoryRepository) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

// DeleteExpiredSessions removes sessions that expired before cutoff and
// returns how many were removed.
func (m *MemoryRepository) DeleteExpiredSessions(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for token, s := range m.sessions {
		if s.ExpiresAt.Before(cutoff) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

// AccountCredits implements the ledger repository contract.
func (m *MemoryRepository) AccountCredits(_ context.Context, accountID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[accountID]
	if !ok {
		return 0, models.ErrNotFound
	}
	return acc.Credits, nil
}

// EnsureAnonymousQuota implements the ledger repository contract.
func (m *MemoryRepository) EnsureAnonymousQuota(_ context.Context, ipHash string, now time.Time) (*models.AnonymousQuota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotas[ipHash]
	if !ok {
		q = &models.AnonymousQuota{IPHash: ipHash, CreatedAt: now, LastUsed: now}
		m.quotas[ipHash] = q
	}
	c := *q
	c.Analyses = append([]models.AnonymousAnalysis(nil), q.Analyses...)
	return &c, nil
}

// DebitAccount implements the ledger repository contract.
func (m *MemoryRepository) DebitAccount(_ context.Context, rec models.AnalysisRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[rec.AccountID]
	if !ok || acc.Credits <= 0 {
		return 0, models.ErrConditionNotMet
	}
	acc.Credits--
	m.analyses = append(m.analyses, rec)
	return acc.Credits, nil
}

// ConsumeAnonymous implements the ledger repository contract.
func (m *MemoryRepository) ConsumeAnonymous(_ context.Context, rec models.AnalysisRecord, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotas[rec.IPHash]
	if !ok || q.CreditsUsed >= limit {
		return 0, models.ErrConditionNotMet
	}
	q.CreditsUsed++
	q.LastUsed = rec.CreatedAt
	q.Analyses = append(q.Analyses, models.AnonymousAnalysis{
		PropertyInfo: rec.PropertyInfo,
		SearchQuery:  rec.SearchQuery,
		CreatedAt:    rec.CreatedAt,
	})
	m.analyses = append(m.analyses, rec)
	return q.CreditsUsed, nil
}

// CreditAccount implements the ledger repository contract.
func (m *MemoryRepository) CreditAccount(_ context.Context, p models.PaymentRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.payments[p.OrderID]; dup {
		return 0, models.ErrDuplicate
	}
	acc, ok := m.accounts[p.AccountID]
	if !ok {
		return 0, models.ErrNotFound
	}
	acc.Credits += p.Credits
	m.payments[p.OrderID] = p
	return acc.Credits, nil
}

// GetPaymentByOrderID implements the payment repository contract.
func (m *MemoryRepository) GetPaymentByOrderID(_ context.Context, orderID string) (*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

// Analyses returns a copy of the analysis log in insertion order.
func (m *MemoryRepository) Analyses() []models.AnalysisRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AnalysisRecord(nil), m.analyses...)
}

// PaymentCount returns the number of stored payments.
func (m *MemoryRepository) PaymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}
