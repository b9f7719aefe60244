// Package repository provides persistence implementations for accounts,
// sessions, credit quotas, analyses and payments.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/parseldeger/imar/internal/models"
)

// PostgresAccountRepository implements account and session storage using a
// PostgreSQL database.
type PostgresAccountRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAccountRepository creates a new PostgresAccountRepository with the given database connection.
func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{DB: db}
}

const accountColumns = `id, email, name, picture, credits, created_at`

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		acc     models.Account
		picture sql.NullString
	)
	err := row.Scan(&acc.ID, &acc.Email, &acc.Name, &picture, &acc.Credits, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if picture.Valid {
		acc.Picture = &picture.String
	}
	return &acc, nil
}

// GetAccountByID fetches an account by its identifier.
// Returns models.ErrNotFound if no such account exists.
func (r *PostgresAccountRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	acc, err := scanAccount(r.DB.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("GetAccountByID: %w", err)
	}
	return acc, err
}

// GetAccountByEmail fetches an account by its email address.
// Returns models.ErrNotFound if no such account exists.
func (r *PostgresAccountRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	acc, err := scanAccount(r.DB.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("GetAccountByEmail: %w", err)
	}
	return acc, err
}

// UpsertAccount inserts acc, or refreshes the name and picture of the account
// already registered under the same email. The stored row is returned; its ID
// and credit balance are never overwritten by an update.
func (r *PostgresAccountRepository) UpsertAccount(ctx context.Context, acc models.Account) (*models.Account, error) {
	var picture sql.NullString
	if acc.Picture != nil {
		picture = sql.NullString{String: *acc.Picture, Valid: true}
	}
	stored, err := scanAccount(r.DB.QueryRowContext(ctx, `
		INSERT INTO accounts (id, email, name, picture, credits, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			picture = EXCLUDED.picture
		RETURNING `+accountColumns,
		acc.ID, acc.Email, acc.Name, picture, acc.Credits, acc.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("UpsertAccount: %w", err)
	}
	return stored, nil
}

// CreateSession stores a new session token.
func (r *PostgresAccountRepository) CreateSession(ctx context.Context, s models.Session) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO sessions (token, account_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			expires_at = EXCLUDED.expires_at
	`, s.Token, s.AccountID, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("CreateSession: %w", err)
	}
	return nil
}

// GetSession looks up a session by token. Expiry is not checked here.
// Returns models.ErrNotFound if the token is unknown.
func (r *PostgresAccountRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var s models.Session
	err := r.DB.QueryRowContext(ctx, `
		SELECT token, account_id, expires_at, created_at FROM sessions WHERE token = $1
	`, token).Scan(&s.Token, &s.AccountID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("GetSession: %w", err)
	}
	return &s, nil
}

// DeleteSession removes a session token. Deleting an unknown token is not an error.
func (r *PostgresAccountRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("DeleteSession: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before cutoff and
// returns how many rows were removed.
func (r *PostgresAccountRepository) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("DeleteExpiredSessions: %w", err)
	}
	return res.RowsAffected()
}
