package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarfund-api/internal/models"
	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
)

type caseRequestStore interface {
	FindByID(ctx context.Context, id string) (*models.CaseRequest, error)
	List(ctx context.Context, status models.CaseStatus) ([]models.CaseRequest, error)
	Create(ctx context.Context, request *models.CaseRequest) error
	Reinsert(ctx context.Context, request *models.CaseRequest) error
	UpdateStatus(ctx context.Context, id string, status models.CaseStatus) error
	Delete(ctx context.Context, id string) error
}

type approvedCaseStore interface {
	FindByID(ctx context.Context, id string) (*models.ApprovedCase, error)
	List(ctx context.Context, filter models.CaseFilter) ([]models.ApprovedCase, int, error)
	Create(ctx context.Context, approved *models.ApprovedCase) error
	Delete(ctx context.Context, id string) error
}

type feeLedger interface {
	HasLedger(ctx context.Context, studentEmail string) (bool, error)
	FindPendingEntry(ctx context.Context, studentEmail, label string) (*models.FeeEntry, error)
	MarkApproved(ctx context.Context, studentEmail, entryID string) (*models.FeeEntry, error)
}

type notificationDispatcher interface {
	Dispatch(ctx context.Context, recipient, subject, message string)
}

// SubmitCaseRequest describes a student filing a help request.
type SubmitCaseRequest struct {
	StudentEmail string `json:"student_email" validate:"required,email"`
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description"`
	PhotoURL     string `json:"photo_url"`
}

// ApproveCaseRequest carries the administrative approval parameters.
// Title must exactly equal the fee label of the pending entry it settles.
type ApproveCaseRequest struct {
	AdminEmail    string `json:"admin_email" validate:"required"`
	StudentEmail  string `json:"student_email" validate:"required"`
	DonorEmail    string `json:"donor_email" validate:"required"`
	PaymentProof  string `json:"payment_proof" validate:"required"`
	Title         string `json:"title" validate:"required"`
	TotalPayments int    `json:"total_payments" validate:"required,min=1"`
}

// RejectCaseRequest carries the rejection parameters.
type RejectCaseRequest struct {
	AdminEmail string `json:"admin_email" validate:"required"`
	Reason     string `json:"reason"`
}

// CaseService owns the CaseRequest and ApprovedCase lifecycle, including
// the approval saga across request, approved-case and fee stores.
type CaseService struct {
	requests      caseRequestStore
	approved      approvedCaseStore
	fees          feeLedger
	notifications notificationDispatcher
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewCaseService constructs CaseService.
func NewCaseService(requests caseRequestStore, approved approvedCaseStore, fees feeLedger, notifications notificationDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CaseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseService{
		requests:      requests,
		approved:      approved,
		fees:          fees,
		notifications: notifications,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
	}
}

// Submit files a new pending case request.
func (s *CaseService) Submit(ctx context.Context, req SubmitCaseRequest) (*models.CaseRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid case request payload")
	}
	request := &models.CaseRequest{
		StudentEmail: req.StudentEmail,
		Title:        req.Title,
		Description:  req.Description,
		PhotoURL:     req.PhotoURL,
		Status:       models.CaseStatusPending,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create case request")
	}
	return request, nil
}

// ApproveResult is what a successful approval returns: the durable case
// record plus the fee entry it settled.
type ApproveResult struct {
	ApprovedCase *models.ApprovedCase `json:"approved_case"`
	FeeEntry     *models.FeeEntry     `json:"fee_entry"`
}

// Approve runs the approval saga. The writes touch three independently
// stored aggregates with no cross-store transaction, so each step carries
// the compensation that undoes it; on failure the completed steps are
// unwound in reverse and the system returns to its pre-call state. A
// failed unwind surfaces as CompensationFailed for manual reconciliation.
func (s *CaseService) Approve(ctx context.Context, requestID string, req ApproveCaseRequest) (*ApproveResult, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case request")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid approval payload")
	}

	approved := &models.ApprovedCase{
		StudentEmail:  req.StudentEmail,
		DonorEmail:    req.DonorEmail,
		AdminEmail:    req.AdminEmail,
		PaymentProof:  req.PaymentProof,
		Description:   req.Title,
		TotalPayments: req.TotalPayments,
		Status:        models.CaseStatusApproved,
	}
	var feeEntry *models.FeeEntry

	steps := []sagaStep{
		{
			name: "create-approved-case",
			run: func(ctx context.Context) error {
				if err := s.approved.Create(ctx, approved); err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approved case")
				}
				return nil
			},
			compensate: func(ctx context.Context) error {
				if err := s.approved.Delete(ctx, approved.ID); err != nil && err != sql.ErrNoRows {
					return fmt.Errorf("delete approved case %s: %w", approved.ID, err)
				}
				// The request is only deleted in the final step, so this
				// insert is normally a no-op; it restores the record if
				// an earlier attempt removed it.
				if err := s.requests.Reinsert(ctx, request); err != nil {
					return fmt.Errorf("reinsert case request %s: %w", request.ID, err)
				}
				return nil
			},
		},
		{
			name: "approve-fee-entry",
			run: func(ctx context.Context) error {
				hasLedger, err := s.fees.HasLedger(ctx, req.StudentEmail)
				if err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student fee ledger")
				}
				if !hasLedger {
					return appErrors.Clone(appErrors.ErrNotFound, "student not found")
				}
				entry, err := s.fees.FindPendingEntry(ctx, req.StudentEmail, req.Title)
				if err != nil {
					return err
				}
				feeEntry, err = s.fees.MarkApproved(ctx, req.StudentEmail, entry.ID)
				return err
			},
			// The fee entry stays Approved if a later step fails; the
			// source system never reverted it and this keeps that
			// documented behaviour.
			compensate: nil,
		},
		{
			name: "notify-parties",
			run: func(ctx context.Context) error {
				body := fmt.Sprintf("Case %q has been approved.", req.Title)
				s.notifications.Dispatch(ctx, req.AdminEmail, "Case approved", body)
				s.notifications.Dispatch(ctx, req.StudentEmail, "Your case was approved", body)
				s.notifications.Dispatch(ctx, req.DonorEmail, "A case awaits your sponsorship", body)
				return nil
			},
			compensate: nil,
		},
		{
			name: "delete-case-request",
			run: func(ctx context.Context) error {
				if err := s.requests.Delete(ctx, request.ID); err != nil && err != sql.ErrNoRows {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete case request")
				}
				return nil
			},
			compensate: nil,
		},
	}

	if err := runSaga(ctx, s.logger, steps); err != nil {
		if errors.Is(err, appErrors.ErrCompensationFailed) {
			s.metrics.RecordApproval("compensation_failed")
			s.metrics.RecordCompensation(false)
		} else {
			s.metrics.RecordApproval("failed")
			s.metrics.RecordCompensation(true)
		}
		return nil, err
	}

	s.metrics.RecordApproval("approved")
	return &ApproveResult{ApprovedCase: approved, FeeEntry: feeEntry}, nil
}

// Reject marks a pending request rejected and informs the student. No
// fee-ledger or approved-case writes happen, so there is nothing to
// compensate.
func (s *CaseService) Reject(ctx context.Context, requestID string, req RejectCaseRequest) (*models.CaseRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid rejection payload")
	}
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case request")
	}
	if request.Status != models.CaseStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "case request already decided")
	}
	if err := s.requests.UpdateStatus(ctx, requestID, models.CaseStatusRejected); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject case request")
	}
	request.Status = models.CaseStatusRejected

	body := fmt.Sprintf("Your case %q was not approved.", request.Title)
	if req.Reason != "" {
		body += " Reason: " + req.Reason
	}
	s.notifications.Dispatch(ctx, request.StudentEmail, "Your case was rejected", body)
	s.metrics.RecordApproval("rejected")
	return request, nil
}

// GetApproved returns one approved case.
func (s *CaseService) GetApproved(ctx context.Context, id string) (*models.ApprovedCase, error) {
	approved, err := s.approved.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approved case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved case")
	}
	return approved, nil
}

// ListApproved returns approved cases with pagination metadata.
func (s *CaseService) ListApproved(ctx context.Context, filter models.CaseFilter) ([]models.ApprovedCase, *models.Pagination, error) {
	cases, total, err := s.approved.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approved cases")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return cases, pagination, nil
}

// ListPending returns requests awaiting an administrative decision.
func (s *CaseService) ListPending(ctx context.Context) ([]models.CaseRequest, error) {
	requests, err := s.requests.List(ctx, models.CaseStatusPending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list case requests")
	}
	return requests, nil
}

// validationError formats validator failures so the response names the
// offending fields.
func validationError(err error, message string) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field())
		}
		message = fmt.Sprintf("%s: missing or invalid %s", message, strings.Join(fields, ", "))
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
