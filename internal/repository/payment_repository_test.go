package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarfund-api/internal/models"
)

func newPaymentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryRecord(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE sponsorships\n        SET completed_payments = completed_payments + 1\n        WHERE id = $1 AND completed_payments < committed_payments\n        RETURNING completed_payments")).
		WithArgs("sp-1").
		WillReturnRows(sqlmock.NewRows([]string{"completed_payments"}).AddRow(2))
	mock.ExpectExec("INSERT INTO payment_transactions").
		WithArgs(sqlmock.AnyArg(), "donor@corp.com", "sp-1", 2, string(models.PaymentStatusCompleted), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	transaction, err := repo.Record(context.Background(), "sp-1", "donor@corp.com")
	require.NoError(t, err)
	assert.Equal(t, 2, transaction.PaymentSequenceNumber)
	assert.Equal(t, models.PaymentStatusCompleted, transaction.Status)
	assert.NotEmpty(t, transaction.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A full sponsorship no longer matches the counter guard: the update
// returns no row, nothing is inserted, and the transaction rolls back.
func TestPaymentRepositoryRecordCommitmentFilled(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE sponsorships").
		WithArgs("sp-1").
		WillReturnRows(sqlmock.NewRows([]string{"completed_payments"}))
	mock.ExpectRollback()

	_, err := repo.Record(context.Background(), "sp-1", "donor@corp.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryRecordInsertFailureRollsBack(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE sponsorships").
		WithArgs("sp-1").
		WillReturnRows(sqlmock.NewRows([]string{"completed_payments"}).AddRow(1))
	mock.ExpectExec("INSERT INTO payment_transactions").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.Record(context.Background(), "sp-1", "donor@corp.com")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListBySponsorship(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "donor_email", "sponsorship_id", "payment_sequence_number", "status", "created_at"}).
		AddRow("tx-1", "donor@corp.com", "sp-1", 1, string(models.PaymentStatusCompleted), time.Now()).
		AddRow("tx-2", "donor@corp.com", "sp-1", 2, string(models.PaymentStatusCompleted), time.Now())
	mock.ExpectQuery("SELECT id, donor_email, sponsorship_id, payment_sequence_number, status, created_at").
		WithArgs("sp-1").
		WillReturnRows(rows)

	transactions, err := repo.ListBySponsorship(context.Background(), "sp-1")
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	assert.Equal(t, 1, transactions[0].PaymentSequenceNumber)
	assert.Equal(t, 2, transactions[1].PaymentSequenceNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}
