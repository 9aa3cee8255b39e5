package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarfund-api/internal/models"
	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
	"github.com/noah-isme/scholarfund-api/pkg/export"
)

type paymentStore interface {
	Record(ctx context.Context, sponsorshipID, donorEmail string) (*models.PaymentTransaction, error)
	FindByID(ctx context.Context, id string) (*models.PaymentTransaction, error)
	ListBySponsorship(ctx context.Context, sponsorshipID string) ([]models.PaymentTransaction, error)
}

type sponsorshipReader interface {
	FindByCaseAndDonor(ctx context.Context, approvedCaseID, donorEmail string) (*models.Sponsorship, error)
	FindByID(ctx context.Context, id string) (*models.Sponsorship, error)
}

// RecordPaymentRequest identifies the sponsorship being paid against.
type RecordPaymentRequest struct {
	DonorEmail     string `json:"donor_email" validate:"required,email"`
	ApprovedCaseID string `json:"approved_case_id" validate:"required"`
}

// PaymentService owns the append-only payment log and the sponsorship
// completion counter.
type PaymentService struct {
	payments      paymentStore
	sponsorships  sponsorshipReader
	cases         approvedCaseReader
	notifications notificationDispatcher
	metrics       *MetricsService
	pdf           *export.PDFExporter
	csv           *export.CSVExporter
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(payments paymentStore, sponsorships sponsorshipReader, cases approvedCaseReader, notifications notificationDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		payments:      payments,
		sponsorships:  sponsorships,
		cases:         cases,
		notifications: notifications,
		metrics:       metrics,
		pdf:           export.NewPDFExporter(),
		csv:           export.NewCSVExporter(),
		validator:     validate,
		logger:        logger,
	}
}

// RecordPayment appends one payment increment. The completed counter can
// never pass the committed amount: the store's guarded update refuses the
// increment, which this service reports as AlreadyComplete — a normal
// terminal condition for a fully funded sponsorship, not a fault.
func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*models.PaymentTransaction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment payload")
	}

	sponsorship, err := s.sponsorships.FindByCaseAndDonor(ctx, req.ApprovedCaseID, req.DonorEmail)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotSponsor, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sponsorship")
	}
	if sponsorship.Complete() {
		return nil, appErrors.Clone(appErrors.ErrAlreadyComplete, "")
	}

	transaction, err := s.payments.Record(ctx, sponsorship.ID, req.DonorEmail)
	if err != nil {
		if err == sql.ErrNoRows {
			// A concurrent payment filled the last slot between the read
			// above and the guarded increment.
			return nil, appErrors.Clone(appErrors.ErrAlreadyComplete, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	title := req.ApprovedCaseID
	var studentEmail string
	if approved, caseErr := s.cases.FindByID(ctx, req.ApprovedCaseID); caseErr == nil {
		title = approved.Description
		studentEmail = approved.StudentEmail
	} else {
		s.logger.Sugar().Warnw("case lookup failed for payment notification", "case_id", req.ApprovedCaseID, "error", caseErr)
	}

	body := fmt.Sprintf("Payment %d of %d received for case %q.",
		transaction.PaymentSequenceNumber, sponsorship.CommittedPayments, title)
	s.notifications.Dispatch(ctx, req.DonorEmail, "Payment recorded", body)
	s.notifications.Dispatch(ctx, studentEmail, "A payment arrived for your case", body)

	s.metrics.RecordPayment()
	return transaction, nil
}

// ListTransactions returns the sponsorship's audit trail.
func (s *PaymentService) ListTransactions(ctx context.Context, sponsorshipID string) ([]models.PaymentTransaction, error) {
	if _, err := s.sponsorships.FindByID(ctx, sponsorshipID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "sponsorship not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sponsorship")
	}
	transactions, err := s.payments.ListBySponsorship(ctx, sponsorshipID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payment transactions")
	}
	return transactions, nil
}

// Receipt renders a PDF receipt for one transaction.
func (s *PaymentService) Receipt(ctx context.Context, transactionID string) ([]byte, error) {
	transaction, err := s.payments.FindByID(ctx, transactionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment transaction not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment transaction")
	}
	sponsorship, err := s.sponsorships.FindByID(ctx, transaction.SponsorshipID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sponsorship")
	}

	receipt := export.Receipt{
		TransactionID:  transaction.ID,
		DonorEmail:     transaction.DonorEmail,
		SequenceNumber: transaction.PaymentSequenceNumber,
		Committed:      sponsorship.CommittedPayments,
		Completed:      sponsorship.CompletedPayments,
		PaidAt:         transaction.CreatedAt,
	}
	if approved, caseErr := s.cases.FindByID(ctx, sponsorship.ApprovedCaseID); caseErr == nil {
		receipt.CaseTitle = approved.Description
		receipt.StudentEmail = approved.StudentEmail
	}

	data, err := s.pdf.RenderReceipt(receipt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return data, nil
}

// ExportHistory renders the sponsorship's transaction log as CSV.
func (s *PaymentService) ExportHistory(ctx context.Context, sponsorshipID string) ([]byte, error) {
	transactions, err := s.ListTransactions(ctx, sponsorshipID)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{
		Headers: []string{"sequence", "transaction_id", "donor", "status", "created_at"},
	}
	for _, tx := range transactions {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"sequence":       strconv.Itoa(tx.PaymentSequenceNumber),
			"transaction_id": tx.ID,
			"donor":          tx.DonorEmail,
			"status":         string(tx.Status),
			"created_at":     tx.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transaction history")
	}
	return data, nil
}
