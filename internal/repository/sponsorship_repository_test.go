package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarfund-api/internal/models"
)

func newSponsorshipMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSponsorshipRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newSponsorshipMock(t)
	defer cleanup()
	repo := NewSponsorshipRepository(db)

	mock.ExpectExec("INSERT INTO sponsorships").
		WithArgs(sqlmock.AnyArg(), "donor@corp.com", "ac-1", 3, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sponsorship := &models.Sponsorship{DonorEmail: "donor@corp.com", ApprovedCaseID: "ac-1", CommittedPayments: 3}
	require.NoError(t, repo.Create(context.Background(), sponsorship))
	assert.NotEmpty(t, sponsorship.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The unique index on approved_case_id is the real single-sponsor guard;
// its violation surfaces as ErrDuplicateSponsorship.
func TestSponsorshipRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newSponsorshipMock(t)
	defer cleanup()
	repo := NewSponsorshipRepository(db)

	mock.ExpectExec("INSERT INTO sponsorships").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_sponsorships_case"})

	err := repo.Create(context.Background(), &models.Sponsorship{DonorEmail: "donor@corp.com", ApprovedCaseID: "ac-1", CommittedPayments: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateSponsorship)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSponsorshipRepositoryFindByCase(t *testing.T) {
	db, mock, cleanup := newSponsorshipMock(t)
	defer cleanup()
	repo := NewSponsorshipRepository(db)

	rows := sqlmock.NewRows([]string{"id", "donor_email", "approved_case_id", "committed_payments", "completed_payments", "created_at"}).
		AddRow("sp-1", "donor@corp.com", "ac-1", 3, 1, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, donor_email, approved_case_id, committed_payments, completed_payments, created_at\n        FROM sponsorships WHERE approved_case_id = $1")).
		WithArgs("ac-1").
		WillReturnRows(rows)

	sponsorship, err := repo.FindByCase(context.Background(), "ac-1")
	require.NoError(t, err)
	assert.Equal(t, "sp-1", sponsorship.ID)
	assert.Equal(t, 1, sponsorship.CompletedPayments)
	assert.False(t, sponsorship.Complete())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSponsorshipRepositoryListByDonor(t *testing.T) {
	db, mock, cleanup := newSponsorshipMock(t)
	defer cleanup()
	repo := NewSponsorshipRepository(db)

	rows := sqlmock.NewRows([]string{"id", "donor_email", "approved_case_id", "committed_payments", "completed_payments", "created_at"}).
		AddRow("sp-2", "donor@corp.com", "ac-2", 2, 2, time.Now()).
		AddRow("sp-1", "donor@corp.com", "ac-1", 3, 1, time.Now())
	mock.ExpectQuery("SELECT id, donor_email, approved_case_id, committed_payments, completed_payments, created_at").
		WithArgs("donor@corp.com").
		WillReturnRows(rows)

	sponsorships, err := repo.ListByDonor(context.Background(), "donor@corp.com")
	require.NoError(t, err)
	require.Len(t, sponsorships, 2)
	assert.True(t, sponsorships[0].Complete())
	assert.NoError(t, mock.ExpectationsWereMet())
}
