package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarfund-api/internal/models"
	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
)

type feeStore interface {
	HasLedger(ctx context.Context, studentEmail string) (bool, error)
	FindByID(ctx context.Context, studentEmail, id string) (*models.FeeEntry, error)
	FindPending(ctx context.Context, studentEmail, label string) (*models.FeeEntry, error)
	ListByStudent(ctx context.Context, studentEmail string) ([]models.FeeEntry, error)
	Create(ctx context.Context, entry *models.FeeEntry) error
	MarkApproved(ctx context.Context, studentEmail, id string) (int64, error)
}

// AddFeeEntryRequest describes a fee line item upload.
type AddFeeEntryRequest struct {
	StudentEmail  string     `json:"student_email" validate:"required,email"`
	FeeAmount     string     `json:"fee_amount" validate:"required"`
	FeeImage      string     `json:"fee_image"`
	DueDate       *time.Time `json:"due_date"`
	InvoiceNumber string     `json:"invoice_number"`
}

// FeeService owns per-student fee ledger entries and their one-way
// pending-to-approved transition.
type FeeService struct {
	repo      feeStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeService constructs FeeService.
func NewFeeService(repo feeStore, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{repo: repo, validator: validate, logger: logger}
}

// AddEntry appends a fee line item to the student's ledger.
func (s *FeeService) AddEntry(ctx context.Context, req AddFeeEntryRequest) (*models.FeeEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee entry payload")
	}
	entry := &models.FeeEntry{
		StudentEmail:  req.StudentEmail,
		FeeAmount:     req.FeeAmount,
		FeeImage:      req.FeeImage,
		DueDate:       req.DueDate,
		InvoiceNumber: req.InvoiceNumber,
		Status:        models.FeeStatusPending,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee entry")
	}
	return entry, nil
}

// ListEntries returns the student's full ledger.
func (s *FeeService) ListEntries(ctx context.Context, studentEmail string) ([]models.FeeEntry, error) {
	if studentEmail == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student email is required")
	}
	entries, err := s.repo.ListByStudent(ctx, studentEmail)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee entries")
	}
	return entries, nil
}

// HasLedger reports whether the student has any fee ledger at all.
func (s *FeeService) HasLedger(ctx context.Context, studentEmail string) (bool, error) {
	return s.repo.HasLedger(ctx, studentEmail)
}

// FindPendingEntry returns the entry whose fee label exactly equals the
// given label and whose status is still pending.
func (s *FeeService) FindPendingEntry(ctx context.Context, studentEmail, label string) (*models.FeeEntry, error) {
	entry, err := s.repo.FindPending(ctx, studentEmail, label)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find fee entry")
	}
	return entry, nil
}

// MarkApproved transitions an entry to Approved. Idempotent: re-marking
// an already-approved entry is a no-op success so a retried saga step
// cannot fail here.
func (s *FeeService) MarkApproved(ctx context.Context, studentEmail, entryID string) (*models.FeeEntry, error) {
	affected, err := s.repo.MarkApproved(ctx, studentEmail, entryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark fee entry approved")
	}
	if affected == 0 {
		// Either the entry is gone or it was approved previously. Only
		// the former is an error.
		entry, findErr := s.repo.FindByID(ctx, studentEmail, entryID)
		if findErr != nil {
			if findErr == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "fee entry not found")
			}
			return nil, appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee entry")
		}
		if entry.Status != models.FeeStatusApproved {
			return nil, appErrors.Clone(appErrors.ErrConflict, "fee entry no longer pending")
		}
		return entry, nil
	}
	entry, err := s.repo.FindByID(ctx, studentEmail, entryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee entry")
	}
	return entry, nil
}
