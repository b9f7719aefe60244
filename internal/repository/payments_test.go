package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parseldeger/imar/internal/models"
)

func TestGetPaymentByOrderID(t *testing.T) {
	db, mock := setupMock(t)
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	cols := []string{"order_id", "account_id", "package_id", "credits", "amount", "currency",
		"buyer_email", "buyer_name", "is_test", "payload", "created_at"}
	query := regexp.QuoteMeta(`FROM payments WHERE order_id = $1`)

	mock.ExpectQuery(query).WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("ord-1", "user_abc", "package_20", 20, 50.0, 0, "a@example.com", "Ayşe Y", true, []byte(`{"x":1}`), now))
	mock.ExpectQuery(query).WithArgs("ord-2").WillReturnError(sql.ErrNoRows)

	repo := NewPostgresPaymentRepository(db)
	got, err := repo.GetPaymentByOrderID(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, 20, got.Credits)
	assert.True(t, got.IsTest)
	assert.JSONEq(t, `{"x":1}`, string(got.Payload))

	_, err = repo.GetPaymentByOrderID(context.Background(), "ord-2")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
