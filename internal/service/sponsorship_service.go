package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarfund-api/internal/models"
	"github.com/noah-isme/scholarfund-api/internal/repository"
	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
)

type sponsorshipStore interface {
	FindByCase(ctx context.Context, approvedCaseID string) (*models.Sponsorship, error)
	FindByCaseAndDonor(ctx context.Context, approvedCaseID, donorEmail string) (*models.Sponsorship, error)
	FindByID(ctx context.Context, id string) (*models.Sponsorship, error)
	ListByDonor(ctx context.Context, donorEmail string) ([]models.Sponsorship, error)
	Create(ctx context.Context, sponsorship *models.Sponsorship) error
}

type approvedCaseReader interface {
	FindByID(ctx context.Context, id string) (*models.ApprovedCase, error)
}

// SponsorCaseRequest describes a donor committing to a case.
type SponsorCaseRequest struct {
	DonorEmail        string `json:"donor_email" validate:"required,email"`
	ApprovedCaseID    string `json:"approved_case_id" validate:"required"`
	CommittedPayments int    `json:"committed_payments" validate:"required,min=1"`
}

// SponsorshipService enforces the single-sponsor and no-overcommit rules
// around sponsorship creation.
type SponsorshipService struct {
	repo          sponsorshipStore
	cases         approvedCaseReader
	notifications notificationDispatcher
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewSponsorshipService constructs SponsorshipService.
func NewSponsorshipService(repo sponsorshipStore, cases approvedCaseReader, notifications notificationDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SponsorshipService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SponsorshipService{
		repo:          repo,
		cases:         cases,
		notifications: notifications,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
	}
}

// Sponsor commits a donor to an approved case. The existence pre-check
// gives a friendly error in the common path; the database unique index is
// what actually guarantees at most one sponsor when two donors race.
func (s *SponsorshipService) Sponsor(ctx context.Context, req SponsorCaseRequest) (*models.Sponsorship, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid sponsorship payload")
	}

	approved, err := s.cases.FindByID(ctx, req.ApprovedCaseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approved case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved case")
	}
	if req.CommittedPayments > approved.TotalPayments {
		return nil, appErrors.Clone(appErrors.ErrOverCommit,
			fmt.Sprintf("committed payments %d exceed case total %d", req.CommittedPayments, approved.TotalPayments))
	}

	if _, err := s.repo.FindByCase(ctx, req.ApprovedCaseID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadySponsored, "")
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing sponsorship")
	}

	sponsorship := &models.Sponsorship{
		DonorEmail:        req.DonorEmail,
		ApprovedCaseID:    req.ApprovedCaseID,
		CommittedPayments: req.CommittedPayments,
		CompletedPayments: 0,
	}
	if err := s.repo.Create(ctx, sponsorship); err != nil {
		if errors.Is(err, repository.ErrDuplicateSponsorship) {
			return nil, appErrors.Clone(appErrors.ErrAlreadySponsored, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sponsorship")
	}

	body := fmt.Sprintf("Case %q is now sponsored by %s for %d payments.", approved.Description, req.DonorEmail, req.CommittedPayments)
	s.notifications.Dispatch(ctx, req.DonorEmail, "Sponsorship confirmed", body)
	s.notifications.Dispatch(ctx, approved.StudentEmail, "Your case found a sponsor", body)
	s.notifications.Dispatch(ctx, approved.AdminEmail, "Case sponsored", body)

	s.metrics.RecordSponsorship()
	return sponsorship, nil
}

// GetByCase returns the sponsorship attached to an approved case.
func (s *SponsorshipService) GetByCase(ctx context.Context, approvedCaseID string) (*models.Sponsorship, error) {
	sponsorship, err := s.repo.FindByCase(ctx, approvedCaseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "sponsorship not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sponsorship")
	}
	return sponsorship, nil
}

// ListByDonor returns a donor's commitments.
func (s *SponsorshipService) ListByDonor(ctx context.Context, donorEmail string) ([]models.Sponsorship, error) {
	if donorEmail == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "donor email is required")
	}
	sponsorships, err := s.repo.ListByDonor(ctx, donorEmail)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sponsorships")
	}
	return sponsorships, nil
}
