package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/parseldeger/imar/internal/dbx"
	"github.com/parseldeger/imar/internal/models"
)

// PostgresLedgerRepository implements the credit ledger against PostgreSQL.
// Every balance change is a single conditional UPDATE so that concurrent
// requests for the same identity cannot overdraw it.
type PostgresLedgerRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresLedgerRepository creates a new PostgresLedgerRepository using the provided *sql.DB.
func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{DB: db}
}

// AccountCredits returns the current balance of an account.
func (r *PostgresLedgerRepository) AccountCredits(ctx context.Context, accountID string) (int, error) {
	var credits int
	err := r.DB.QueryRowContext(ctx, `SELECT credits FROM accounts WHERE id = $1`, accountID).Scan(&credits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, models.ErrNotFound
		}
		return 0, fmt.Errorf("AccountCredits: %w", err)
	}
	return credits, nil
}

// EnsureAnonymousQuota returns the quota row for ipHash, creating an empty
// one first if this is the first request from that address.
func (r *PostgresLedgerRepository) EnsureAnonymousQuota(ctx context.Context, ipHash string, now time.Time) (*models.AnonymousQuota, error) {
	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO anonymous_quotas (ip_hash, credits_used, created_at, last_used)
		VALUES ($1, 0, $2, $2)
		ON CONFLICT (ip_hash) DO NOTHING
	`, ipHash, now); err != nil {
		return nil, fmt.Errorf("EnsureAnonymousQuota insert: %w", err)
	}

	var q models.AnonymousQuota
	err := r.DB.QueryRowContext(ctx, `
		SELECT ip_hash, credits_used, created_at, last_used FROM anonymous_quotas WHERE ip_hash = $1
	`, ipHash).Scan(&q.IPHash, &q.CreditsUsed, &q.CreatedAt, &q.LastUsed)
	if err != nil {
		return nil, fmt.Errorf("EnsureAnonymousQuota select: %w", err)
	}
	return &q, nil
}

// DebitAccount takes one credit from rec.AccountID and appends rec to the
// analysis log in one transaction. It returns the new balance, or
// models.ErrConditionNotMet when the balance was already zero.
func (r *PostgresLedgerRepository) DebitAccount(ctx context.Context, rec models.AnalysisRecord) (int, error) {
	var balance int
	err := dbx.WithTx(ctx, r.DB, func(ctx context.Context, tx dbx.DBTX) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE accounts SET credits = credits - 1
			WHERE id = $1 AND credits > 0
			RETURNING credits
		`, rec.AccountID).Scan(&balance)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrConditionNotMet
			}
			return fmt.Errorf("debit: %w", err)
		}
		return insertAnalysis(ctx, tx, rec)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// ConsumeAnonymous records one free analysis against rec.IPHash as long as
// fewer than limit have been used, appending rec to both the quota log and
// the analysis log. It returns the new consumed count, or
// models.ErrConditionNotMet when the ceiling was already reached.
func (r *PostgresLedgerRepository) ConsumeAnonymous(ctx context.Context, rec models.AnalysisRecord, limit int) (int, error) {
	var used int
	err := dbx.WithTx(ctx, r.DB, func(ctx context.Context, tx dbx.DBTX) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE anonymous_quotas SET credits_used = credits_used + 1, last_used = $2
			WHERE ip_hash = $1 AND credits_used < $3
			RETURNING credits_used
		`, rec.IPHash, rec.CreatedAt, limit).Scan(&used)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrConditionNotMet
			}
			return fmt.Errorf("consume: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO anonymous_analyses (ip_hash, property_info, search_query, created_at)
			VALUES ($1, $2, $3, $4)
		`, rec.IPHash, rec.PropertyInfo, rec.SearchQuery, rec.CreatedAt); err != nil {
			return fmt.Errorf("append anonymous log: %w", err)
		}
		return insertAnalysis(ctx, tx, rec)
	})
	if err != nil {
		return 0, err
	}
	return used, nil
}

// CreditAccount stores the payment and adds its credits to the account in
// one transaction. A second call with the same order id changes nothing and
// returns models.ErrDuplicate.
func (r *PostgresLedgerRepository) CreditAccount(ctx context.Context, p models.PaymentRecord) (int, error) {
	var balance int
	err := dbx.WithTx(ctx, r.DB, func(ctx context.Context, tx dbx.DBTX) error {
		var id int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO payments (order_id, account_id, package_id, credits, amount, currency,
				buyer_email, buyer_name, is_test, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (order_id) DO NOTHING
			RETURNING id
		`, p.OrderID, p.AccountID, p.PackageID, p.Credits, p.Amount, p.Currency,
			p.BuyerEmail, p.BuyerName, p.IsTest, string(p.Payload), p.CreatedAt).Scan(&id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
				return models.ErrDuplicate
			}
			return fmt.Errorf("insert payment: %w", err)
		}

		err = tx.QueryRowContext(ctx, `
			UPDATE accounts SET credits = credits + $2 WHERE id = $1 RETURNING credits
		`, p.AccountID, p.Credits).Scan(&balance)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrNotFound
			}
			return fmt.Errorf("credit: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func insertAnalysis(ctx context.Context, tx dbx.DBTX, rec models.AnalysisRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO analyses (account_id, ip_hash, property_info, search_query, analysis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, dbx.NullString(rec.AccountID), dbx.NullString(rec.IPHash),
		rec.PropertyInfo, rec.SearchQuery, rec.Analysis, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
