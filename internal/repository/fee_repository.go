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

// FeeRepository handles persistence of per-student fee ledger entries.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// HasLedger reports whether any fee ledger exists for the student.
func (r *FeeRepository) HasLedger(ctx context.Context, studentEmail string) (bool, error) {
	const query = `SELECT 1 FROM fee_entries WHERE student_email = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentEmail); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check fee ledger: %w", err)
	}
	return true, nil
}

// FindByID returns a single fee entry scoped to its owning student.
func (r *FeeRepository) FindByID(ctx context.Context, studentEmail, id string) (*models.FeeEntry, error) {
	const query = `SELECT id, student_email, seq_no, uploaded_date, fee_amount, fee_image, due_date, invoice_number, status
        FROM fee_entries WHERE id = $1 AND student_email = $2`
	var entry models.FeeEntry
	if err := r.db.GetContext(ctx, &entry, query, id, studentEmail); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindPending returns the entry matching the exact fee label with status
// pending. The match rule is a behavioural contract of the approval flow.
func (r *FeeRepository) FindPending(ctx context.Context, studentEmail, label string) (*models.FeeEntry, error) {
	const query = `SELECT id, student_email, seq_no, uploaded_date, fee_amount, fee_image, due_date, invoice_number, status
        FROM fee_entries WHERE student_email = $1 AND fee_amount = $2 AND status = $3
        ORDER BY seq_no LIMIT 1`
	var entry models.FeeEntry
	if err := r.db.GetContext(ctx, &entry, query, studentEmail, label, models.FeeStatusPending); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByStudent returns the student's full ledger in sequence order.
func (r *FeeRepository) ListByStudent(ctx context.Context, studentEmail string) ([]models.FeeEntry, error) {
	const query = `SELECT id, student_email, seq_no, uploaded_date, fee_amount, fee_image, due_date, invoice_number, status
        FROM fee_entries WHERE student_email = $1 ORDER BY seq_no`
	var entries []models.FeeEntry
	if err := r.db.SelectContext(ctx, &entries, query, studentEmail); err != nil {
		return nil, fmt.Errorf("list fee entries: %w", err)
	}
	return entries, nil
}

// Create appends a new entry to the student's ledger, assigning the next
// sequence number.
func (r *FeeRepository) Create(ctx context.Context, entry *models.FeeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.UploadedDate.IsZero() {
		entry.UploadedDate = time.Now().UTC()
	}
	if entry.Status == "" {
		entry.Status = models.FeeStatusPending
	}
	const query = `INSERT INTO fee_entries (id, student_email, seq_no, uploaded_date, fee_amount, fee_image, due_date, invoice_number, status)
        VALUES ($1, $2, (SELECT COALESCE(MAX(seq_no), 0) + 1 FROM fee_entries WHERE student_email = $2), $3, $4, $5, $6, $7, $8)
        RETURNING seq_no`
	if err := r.db.GetContext(ctx, &entry.SequenceNo, query,
		entry.ID, entry.StudentEmail, entry.UploadedDate, entry.FeeAmount,
		entry.FeeImage, entry.DueDate, entry.InvoiceNumber, entry.Status); err != nil {
		return fmt.Errorf("create fee entry: %w", err)
	}
	return nil
}

// MarkApproved flips a pending entry to Approved. The status guard makes
// the transition race-free: a concurrent second approval sees zero rows.
// Returns the number of rows updated so callers can distinguish an
// already-approved entry (idempotent no-op) from a missing one.
func (r *FeeRepository) MarkApproved(ctx context.Context, studentEmail, id string) (int64, error) {
	const query = `UPDATE fee_entries SET status = $3 WHERE id = $1 AND student_email = $2 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, id, studentEmail, models.FeeStatusApproved, models.FeeStatusPending)
	if err != nil {
		return 0, fmt.Errorf("mark fee entry approved: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark fee entry approved: %w", err)
	}
	return affected, nil
}
