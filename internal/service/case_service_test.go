package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarfund-api/internal/models"
	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
)

type mockCaseRequestStore struct {
	requests  map[string]models.CaseRequest
	deleteErr error
	deleted   []string
	reinserts []string
}

func (m *mockCaseRequestStore) FindByID(ctx context.Context, id string) (*models.CaseRequest, error) {
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCaseRequestStore) List(ctx context.Context, status models.CaseStatus) ([]models.CaseRequest, error) {
	var list []models.CaseRequest
	for _, r := range m.requests {
		if r.Status == status {
			list = append(list, r)
		}
	}
	return list, nil
}

func (m *mockCaseRequestStore) Create(ctx context.Context, request *models.CaseRequest) error {
	if m.requests == nil {
		m.requests = make(map[string]models.CaseRequest)
	}
	if request.ID == "" {
		request.ID = "req-new"
	}
	m.requests[request.ID] = *request
	return nil
}

func (m *mockCaseRequestStore) Reinsert(ctx context.Context, request *models.CaseRequest) error {
	m.reinserts = append(m.reinserts, request.ID)
	if _, ok := m.requests[request.ID]; !ok {
		m.requests[request.ID] = *request
	}
	return nil
}

func (m *mockCaseRequestStore) UpdateStatus(ctx context.Context, id string, status models.CaseStatus) error {
	r, ok := m.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = status
	m.requests[id] = r
	return nil
}

func (m *mockCaseRequestStore) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.requests[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.requests, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockApprovedCaseStore struct {
	cases     map[string]models.ApprovedCase
	createErr error
	deleteErr error
	deleted   []string
}

func (m *mockApprovedCaseStore) FindByID(ctx context.Context, id string) (*models.ApprovedCase, error) {
	if c, ok := m.cases[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApprovedCaseStore) List(ctx context.Context, filter models.CaseFilter) ([]models.ApprovedCase, int, error) {
	var list []models.ApprovedCase
	for _, c := range m.cases {
		list = append(list, c)
	}
	return list, len(list), nil
}

func (m *mockApprovedCaseStore) Create(ctx context.Context, approved *models.ApprovedCase) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.cases == nil {
		m.cases = make(map[string]models.ApprovedCase)
	}
	if approved.ID == "" {
		approved.ID = "ac-1"
	}
	m.cases[approved.ID] = *approved
	return nil
}

func (m *mockApprovedCaseStore) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.cases[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.cases, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockFeeLedger struct {
	hasLedger bool
	entries   map[string]models.FeeEntry // keyed by fee label
	marked    []string
}

func (m *mockFeeLedger) HasLedger(ctx context.Context, studentEmail string) (bool, error) {
	return m.hasLedger, nil
}

func (m *mockFeeLedger) FindPendingEntry(ctx context.Context, studentEmail, label string) (*models.FeeEntry, error) {
	if e, ok := m.entries[label]; ok && e.Status == models.FeeStatusPending {
		return &e, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "fee entry not found")
}

func (m *mockFeeLedger) MarkApproved(ctx context.Context, studentEmail, entryID string) (*models.FeeEntry, error) {
	for label, e := range m.entries {
		if e.ID == entryID {
			e.Status = models.FeeStatusApproved
			m.entries[label] = e
			m.marked = append(m.marked, entryID)
			return &e, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "fee entry not found")
}

type mockDispatcher struct {
	recipients []string
}

func (m *mockDispatcher) Dispatch(ctx context.Context, recipient, subject, message string) {
	m.recipients = append(m.recipients, recipient)
}

func approvalFixture() (*mockCaseRequestStore, *mockApprovedCaseStore, *mockFeeLedger, *mockDispatcher, *CaseService) {
	requests := &mockCaseRequestStore{requests: map[string]models.CaseRequest{
		"req-1": {ID: "req-1", StudentEmail: "student@uni.edu", Title: "Spring Tuition", Status: models.CaseStatusPending},
	}}
	approved := &mockApprovedCaseStore{}
	fees := &mockFeeLedger{hasLedger: true, entries: map[string]models.FeeEntry{
		"Spring Tuition": {ID: "fee-1", StudentEmail: "student@uni.edu", FeeAmount: "Spring Tuition", Status: models.FeeStatusPending},
	}}
	dispatcher := &mockDispatcher{}
	svc := NewCaseService(requests, approved, fees, dispatcher, nil, validator.New(), zap.NewNop())
	return requests, approved, fees, dispatcher, svc
}

func validApproval() ApproveCaseRequest {
	return ApproveCaseRequest{
		AdminEmail:    "admin@fund.org",
		StudentEmail:  "student@uni.edu",
		DonorEmail:    "donor@corp.com",
		PaymentProof:  "proof.png",
		Title:         "Spring Tuition",
		TotalPayments: 4,
	}
}

func TestCaseServiceApprove(t *testing.T) {
	requests, approved, fees, dispatcher, svc := approvalFixture()

	result, err := svc.Approve(context.Background(), "req-1", validApproval())
	require.NoError(t, err)
	require.NotNil(t, result.ApprovedCase)
	assert.Equal(t, models.CaseStatusApproved, result.ApprovedCase.Status)
	assert.Equal(t, 4, result.ApprovedCase.TotalPayments)
	assert.Equal(t, models.FeeStatusApproved, result.FeeEntry.Status)

	assert.Len(t, approved.cases, 1)
	assert.Contains(t, fees.marked, "fee-1")
	assert.NotContains(t, requests.requests, "req-1")
	assert.Equal(t, []string{"admin@fund.org", "student@uni.edu", "donor@corp.com"}, dispatcher.recipients)
}

func TestCaseServiceApproveMissingRequest(t *testing.T) {
	_, approved, _, _, svc := approvalFixture()

	_, err := svc.Approve(context.Background(), "missing", validApproval())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Empty(t, approved.cases)
}

func TestCaseServiceApproveValidation(t *testing.T) {
	requests, approved, fees, _, svc := approvalFixture()

	req := validApproval()
	req.StudentEmail = ""
	_, err := svc.Approve(context.Background(), "req-1", req)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "StudentEmail")

	// Validation fails before any write.
	assert.Empty(t, approved.cases)
	assert.Empty(t, fees.marked)
	assert.Contains(t, requests.requests, "req-1")
}

func TestCaseServiceApproveNoFeeEntryCompensates(t *testing.T) {
	requests, approved, fees, _, svc := approvalFixture()
	delete(fees.entries, "Spring Tuition")

	_, err := svc.Approve(context.Background(), "req-1", validApproval())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	// The approved case created mid-saga was rolled back and the
	// original request survived untouched.
	assert.Empty(t, approved.cases)
	assert.Contains(t, approved.deleted, "ac-1")
	assert.Contains(t, requests.requests, "req-1")
}

func TestCaseServiceApproveUnknownStudentCompensates(t *testing.T) {
	requests, approved, fees, _, svc := approvalFixture()
	fees.hasLedger = false

	_, err := svc.Approve(context.Background(), "req-1", validApproval())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Contains(t, err.Error(), "student")
	assert.Empty(t, approved.cases)
	assert.Contains(t, requests.requests, "req-1")
}

func TestCaseServiceApproveDeleteFailureRollsBackApprovedCase(t *testing.T) {
	requests, approved, fees, _, svc := approvalFixture()
	requests.deleteErr = errors.New("store unavailable")

	_, err := svc.Approve(context.Background(), "req-1", validApproval())
	require.Error(t, err)
	assert.NotErrorIs(t, err, appErrors.ErrCompensationFailed)

	// Request delete failed, so the approved case is rolled back. The
	// fee entry stays approved: the accepted inconsistency window.
	assert.Empty(t, approved.cases)
	assert.Contains(t, requests.requests, "req-1")
	assert.Contains(t, fees.marked, "fee-1")
}

func TestCaseServiceApproveCompensationFailure(t *testing.T) {
	_, approved, fees, _, svc := approvalFixture()
	delete(fees.entries, "Spring Tuition")
	approved.deleteErr = errors.New("rollback broken")

	_, err := svc.Approve(context.Background(), "req-1", validApproval())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrCompensationFailed)
}

func TestCaseServiceReject(t *testing.T) {
	requests, _, _, dispatcher, svc := approvalFixture()

	request, err := svc.Reject(context.Background(), "req-1", RejectCaseRequest{AdminEmail: "admin@fund.org", Reason: "incomplete documents"})
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusRejected, request.Status)
	assert.Equal(t, models.CaseStatusRejected, requests.requests["req-1"].Status)
	assert.Equal(t, []string{"student@uni.edu"}, dispatcher.recipients)
}

func TestCaseServiceRejectAlreadyDecided(t *testing.T) {
	requests, _, _, _, svc := approvalFixture()
	r := requests.requests["req-1"]
	r.Status = models.CaseStatusRejected
	requests.requests["req-1"] = r

	_, err := svc.Reject(context.Background(), "req-1", RejectCaseRequest{AdminEmail: "admin@fund.org"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestCaseServiceSubmit(t *testing.T) {
	requests, _, _, _, svc := approvalFixture()

	request, err := svc.Submit(context.Background(), SubmitCaseRequest{StudentEmail: "new@uni.edu", Title: "Lab Fees"})
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusPending, request.Status)
	assert.Contains(t, requests.requests, request.ID)
}
