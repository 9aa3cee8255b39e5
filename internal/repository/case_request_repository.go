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

// CaseRequestRepository handles persistence of pending help requests.
type CaseRequestRepository struct {
	db *sqlx.DB
}

// NewCaseRequestRepository constructs the repository.
func NewCaseRequestRepository(db *sqlx.DB) *CaseRequestRepository {
	return &CaseRequestRepository{db: db}
}

// FindByID returns a case request by its ID.
func (r *CaseRequestRepository) FindByID(ctx context.Context, id string) (*models.CaseRequest, error) {
	const query = `SELECT id, student_email, donor_email, status, title, description, photo_url, created_at
        FROM case_requests WHERE id = $1`
	var request models.CaseRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns pending case requests ordered by creation time.
func (r *CaseRequestRepository) List(ctx context.Context, status models.CaseStatus) ([]models.CaseRequest, error) {
	const query = `SELECT id, student_email, donor_email, status, title, description, photo_url, created_at
        FROM case_requests WHERE status = $1 ORDER BY created_at DESC`
	var requests []models.CaseRequest
	if err := r.db.SelectContext(ctx, &requests, query, status); err != nil {
		return nil, fmt.Errorf("list case requests: %w", err)
	}
	return requests, nil
}

// Create persists a new case request.
func (r *CaseRequestRepository) Create(ctx context.Context, request *models.CaseRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	if request.Status == "" {
		request.Status = models.CaseStatusPending
	}
	const query = `INSERT INTO case_requests (id, student_email, donor_email, status, title, description, photo_url, created_at)
        VALUES (:id, :student_email, :donor_email, :status, :title, :description, :photo_url, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create case request: %w", err)
	}
	return nil
}

// Reinsert restores a previously loaded request during saga compensation.
// A no-op when the row still exists.
func (r *CaseRequestRepository) Reinsert(ctx context.Context, request *models.CaseRequest) error {
	const query = `INSERT INTO case_requests (id, student_email, donor_email, status, title, description, photo_url, created_at)
        VALUES (:id, :student_email, :donor_email, :status, :title, :description, :photo_url, :created_at)
        ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("reinsert case request: %w", err)
	}
	return nil
}

// UpdateStatus transitions a request, used by the rejection path.
func (r *CaseRequestRepository) UpdateStatus(ctx context.Context, id string, status models.CaseStatus) error {
	const query = `UPDATE case_requests SET status = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update case request status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a request once it has been consumed by approval.
func (r *CaseRequestRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM case_requests WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete case request: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
