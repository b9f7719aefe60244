package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parseldeger/imar/internal/models"
)

// LedgerRepository is the storage contract of the credit ledger. Debits and
// credits must be applied as single conditional statements.
type LedgerRepository interface {
	AccountCredits(ctx context.Context, accountID string) (int, error)
	EnsureAnonymousQuota(ctx context.Context, ipHash string, now time.Time) (*models.AnonymousQuota, error)
	DebitAccount(ctx context.Context, rec models.AnalysisRecord) (int, error)
	ConsumeAnonymous(ctx context.Context, rec models.AnalysisRecord, limit int) (int, error)
	CreditAccount(ctx context.Context, p models.PaymentRecord) (int, error)
}

// Ledger enforces per-identity credit quotas.
type Ledger struct {
	repo  LedgerRepository
	clock Clock
	limit int
}

// NewLedger constructs a Ledger granting models.AnonymousCreditLimit free
// analyses per anonymous identity.
func NewLedger(repo LedgerRepository, clock Clock) *Ledger {
	return &Ledger{repo: repo, clock: clock, limit: models.AnonymousCreditLimit}
}

// Remaining returns the credits still available to id. The anonymous quota
// is created on first use.
func (l *Ledger) Remaining(ctx context.Context, id models.Identity) (int, error) {
	if id.Authenticated() {
		credits, err := l.repo.AccountCredits(ctx, id.Account.ID)
		if err != nil {
			return 0, fmt.Errorf("account credits: %w", err)
		}
		return credits, nil
	}

	q, err := l.repo.EnsureAnonymousQuota(ctx, id.IPHash, l.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("anonymous quota: %w", err)
	}
	if q.CreditsUsed >= l.limit {
		return 0, nil
	}
	return l.limit - q.CreditsUsed, nil
}

// Check returns the remaining credits of id, or ErrQuotaExhausted when none
// are left. It must be called before any billable work starts.
func (l *Ledger) Check(ctx context.Context, id models.Identity) (int, error) {
	remaining, err := l.Remaining(ctx, id)
	if err != nil {
		return 0, err
	}
	if remaining <= 0 {
		return 0, ErrQuotaExhausted
	}
	return remaining, nil
}

// Commit bills one analysis to id and stores rec in the same step. It
// returns the credits left afterwards. If a concurrent request consumed the
// last credit first, Commit returns ErrQuotaExhausted and stores nothing.
func (l *Ledger) Commit(ctx context.Context, id models.Identity, rec models.AnalysisRecord) (int, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.clock.Now()
	}

	if id.Authenticated() {
		rec.AccountID = id.Account.ID
		rec.IPHash = ""
		balance, err := l.repo.DebitAccount(ctx, rec)
		if err != nil {
			if errors.Is(err, models.ErrConditionNotMet) {
				return 0, ErrQuotaExhausted
			}
			return 0, fmt.Errorf("debit account: %w", err)
		}
		return balance, nil
	}

	rec.AccountID = ""
	rec.IPHash = id.IPHash
	used, err := l.repo.ConsumeAnonymous(ctx, rec, l.limit)
	if err != nil {
		if errors.Is(err, models.ErrConditionNotMet) {
			return 0, ErrQuotaExhausted
		}
		return 0, fmt.Errorf("consume anonymous: %w", err)
	}
	return l.limit - used, nil
}

// TopUp adds p.Credits to p.AccountID and records the payment. Replaying an
// order returns ErrDuplicateOrder and changes nothing.
func (l *Ledger) TopUp(ctx context.Context, p models.PaymentRecord) (int, error) {
	if p.Credits <= 0 {
		return 0, fmt.Errorf("top up %d credits: %w", p.Credits, ErrUnmatchedPackage)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = l.clock.Now()
	}

	balance, err := l.repo.CreditAccount(ctx, p)
	switch {
	case errors.Is(err, models.ErrDuplicate):
		return 0, ErrDuplicateOrder
	case errors.Is(err, models.ErrNotFound):
		return 0, ErrUnknownBuyer
	case err != nil:
		return 0, fmt.Errorf("credit account: %w", err)
	}
	return balance, nil
}
