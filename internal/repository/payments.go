package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/parseldeger/imar/internal/models"
)

// PostgresPaymentRepository reads payment records from PostgreSQL.
type PostgresPaymentRepository struct {
	DB *sql.DB
}

// NewPostgresPaymentRepository creates a new PostgresPaymentRepository.
func NewPostgresPaymentRepository(db *sql.DB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{DB: db}
}

// GetPaymentByOrderID returns the payment recorded for an external order id,
// or models.ErrNotFound.
func (r *PostgresPaymentRepository) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.PaymentRecord, error) {
	var (
		p       models.PaymentRecord
		payload []byte
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT order_id, account_id, package_id, credits, amount, currency,
			buyer_email, buyer_name, is_test, payload, created_at
		FROM payments WHERE order_id = $1
	`, orderID).Scan(&p.OrderID, &p.AccountID, &p.PackageID, &p.Credits, &p.Amount, &p.Currency,
		&p.BuyerEmail, &p.BuyerName, &p.IsTest, &payload, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("GetPaymentByOrderID: %w", err)
	}
	p.Payload = payload
	return &p, nil
}
