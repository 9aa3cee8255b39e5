package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scholarfund-api/internal/models"
)

// PaymentRepository handles the append-only payment transaction log and
// the completed-payment counter it is coupled to.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Record increments the sponsorship's completed counter and appends the
// matching transaction row in one database transaction. The counter
// update is guarded by completed_payments < committed_payments, so a
// concurrent increment past the commitment matches zero rows and the
// whole transaction rolls back with sql.ErrNoRows. The new sequence
// number is the counter value after the increment, which keeps the log
// gapless at 1..n.
func (r *PaymentRepository) Record(ctx context.Context, sponsorshipID, donorEmail string) (*models.PaymentTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const increment = `UPDATE sponsorships
        SET completed_payments = completed_payments + 1
        WHERE id = $1 AND completed_payments < committed_payments
        RETURNING completed_payments`
	var completed int
	if err := tx.GetContext(ctx, &completed, increment, sponsorshipID); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("increment completed payments: %w", err)
	}

	transaction := &models.PaymentTransaction{
		ID:                    uuid.NewString(),
		DonorEmail:            donorEmail,
		SponsorshipID:         sponsorshipID,
		PaymentSequenceNumber: completed,
		Status:                models.PaymentStatusCompleted,
		CreatedAt:             time.Now().UTC(),
	}
	const insert = `INSERT INTO payment_transactions (id, donor_email, sponsorship_id, payment_sequence_number, status, created_at)
        VALUES (:id, :donor_email, :sponsorship_id, :payment_sequence_number, :status, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, transaction); err != nil {
		return nil, fmt.Errorf("create payment transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment tx: %w", err)
	}
	return transaction, nil
}

// FindByID returns one transaction from the audit log.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.PaymentTransaction, error) {
	const query = `SELECT id, donor_email, sponsorship_id, payment_sequence_number, status, created_at
        FROM payment_transactions WHERE id = $1`
	var transaction models.PaymentTransaction
	if err := r.db.GetContext(ctx, &transaction, query, id); err != nil {
		return nil, err
	}
	return &transaction, nil
}

// ListBySponsorship returns the full transaction history in sequence order.
func (r *PaymentRepository) ListBySponsorship(ctx context.Context, sponsorshipID string) ([]models.PaymentTransaction, error) {
	const query = `SELECT id, donor_email, sponsorship_id, payment_sequence_number, status, created_at
        FROM payment_transactions WHERE sponsorship_id = $1 ORDER BY payment_sequence_number`
	var transactions []models.PaymentTransaction
	if err := r.db.SelectContext(ctx, &transactions, query, sponsorshipID); err != nil {
		return nil, fmt.Errorf("list payment transactions: %w", err)
	}
	return transactions, nil
}
