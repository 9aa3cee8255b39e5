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

// ApprovedCaseRepository handles persistence of approved cases.
type ApprovedCaseRepository struct {
	db *sqlx.DB
}

// NewApprovedCaseRepository constructs the repository.
func NewApprovedCaseRepository(db *sqlx.DB) *ApprovedCaseRepository {
	return &ApprovedCaseRepository{db: db}
}

// FindByID returns an approved case by its ID.
func (r *ApprovedCaseRepository) FindByID(ctx context.Context, id string) (*models.ApprovedCase, error) {
	const query = `SELECT id, student_email, donor_email, admin_email, payment_proof, description, total_payments, status, approved_date
        FROM approved_cases WHERE id = $1`
	var approved models.ApprovedCase
	if err := r.db.GetContext(ctx, &approved, query, id); err != nil {
		return nil, err
	}
	return &approved, nil
}

// List returns approved cases newest first with a total count.
func (r *ApprovedCaseRepository) List(ctx context.Context, filter models.CaseFilter) ([]models.ApprovedCase, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, student_email, donor_email, admin_email, payment_proof, description, total_payments, status, approved_date
        FROM approved_cases ORDER BY approved_date DESC LIMIT %d OFFSET %d`, size, offset)

	var cases []models.ApprovedCase
	if err := r.db.SelectContext(ctx, &cases, query); err != nil {
		return nil, 0, fmt.Errorf("list approved cases: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM approved_cases"); err != nil {
		return nil, 0, fmt.Errorf("count approved cases: %w", err)
	}
	return cases, total, nil
}

// Create persists a new approved case record.
func (r *ApprovedCaseRepository) Create(ctx context.Context, approved *models.ApprovedCase) error {
	if approved.ID == "" {
		approved.ID = uuid.NewString()
	}
	if approved.ApprovedDate.IsZero() {
		approved.ApprovedDate = time.Now().UTC()
	}
	if approved.Status == "" {
		approved.Status = models.CaseStatusApproved
	}
	const query = `INSERT INTO approved_cases (id, student_email, donor_email, admin_email, payment_proof, description, total_payments, status, approved_date)
        VALUES (:id, :student_email, :donor_email, :admin_email, :payment_proof, :description, :total_payments, :status, :approved_date)`
	if _, err := r.db.NamedExecContext(ctx, query, approved); err != nil {
		return fmt.Errorf("create approved case: %w", err)
	}
	return nil
}

// Delete removes an approved case, used only by saga compensation.
func (r *ApprovedCaseRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM approved_cases WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete approved case: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
