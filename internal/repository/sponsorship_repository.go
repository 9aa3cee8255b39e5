package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/scholarfund-api/internal/models"
)

// ErrDuplicateSponsorship is returned when the unique index on
// approved_case_id rejects a second sponsor for the same case. The index,
// not the advisory pre-check, is what enforces the single-sponsor rule
// under concurrency.
var ErrDuplicateSponsorship = errors.New("sponsorship already exists for case")

const uniqueViolation = "23505"

// SponsorshipRepository handles persistence of donor commitments.
type SponsorshipRepository struct {
	db *sqlx.DB
}

// NewSponsorshipRepository constructs the repository.
func NewSponsorshipRepository(db *sqlx.DB) *SponsorshipRepository {
	return &SponsorshipRepository{db: db}
}

// FindByCase returns the sponsorship for an approved case, if any.
func (r *SponsorshipRepository) FindByCase(ctx context.Context, approvedCaseID string) (*models.Sponsorship, error) {
	const query = `SELECT id, donor_email, approved_case_id, committed_payments, completed_payments, created_at
        FROM sponsorships WHERE approved_case_id = $1`
	var sponsorship models.Sponsorship
	if err := r.db.GetContext(ctx, &sponsorship, query, approvedCaseID); err != nil {
		return nil, err
	}
	return &sponsorship, nil
}

// FindByCaseAndDonor returns the sponsorship held by a specific donor.
func (r *SponsorshipRepository) FindByCaseAndDonor(ctx context.Context, approvedCaseID, donorEmail string) (*models.Sponsorship, error) {
	const query = `SELECT id, donor_email, approved_case_id, committed_payments, completed_payments, created_at
        FROM sponsorships WHERE approved_case_id = $1 AND donor_email = $2`
	var sponsorship models.Sponsorship
	if err := r.db.GetContext(ctx, &sponsorship, query, approvedCaseID, donorEmail); err != nil {
		return nil, err
	}
	return &sponsorship, nil
}

// FindByID returns a sponsorship by its own identifier.
func (r *SponsorshipRepository) FindByID(ctx context.Context, id string) (*models.Sponsorship, error) {
	const query = `SELECT id, donor_email, approved_case_id, committed_payments, completed_payments, created_at
        FROM sponsorships WHERE id = $1`
	var sponsorship models.Sponsorship
	if err := r.db.GetContext(ctx, &sponsorship, query, id); err != nil {
		return nil, err
	}
	return &sponsorship, nil
}

// ListByDonor returns all commitments made by a donor, newest first.
func (r *SponsorshipRepository) ListByDonor(ctx context.Context, donorEmail string) ([]models.Sponsorship, error) {
	const query = `SELECT id, donor_email, approved_case_id, committed_payments, completed_payments, created_at
        FROM sponsorships WHERE donor_email = $1 ORDER BY created_at DESC`
	var sponsorships []models.Sponsorship
	if err := r.db.SelectContext(ctx, &sponsorships, query, donorEmail); err != nil {
		return nil, fmt.Errorf("list sponsorships: %w", err)
	}
	return sponsorships, nil
}

// Create persists a new sponsorship. Maps a unique-index violation on
// approved_case_id to ErrDuplicateSponsorship.
func (r *SponsorshipRepository) Create(ctx context.Context, sponsorship *models.Sponsorship) error {
	if sponsorship.ID == "" {
		sponsorship.ID = uuid.NewString()
	}
	if sponsorship.CreatedAt.IsZero() {
		sponsorship.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sponsorships (id, donor_email, approved_case_id, committed_payments, completed_payments, created_at)
        VALUES (:id, :donor_email, :approved_case_id, :committed_payments, :completed_payments, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sponsorship); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateSponsorship
		}
		return fmt.Errorf("create sponsorship: %w", err)
	}
	return nil
}
