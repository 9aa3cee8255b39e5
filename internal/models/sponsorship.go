package models

import "time"

// Sponsorship is one donor's commitment to fund one approved case.
// At most one sponsorship exists per case, enforced by a unique index on
// approved_case_id. Never deleted: it is the historical funding record.
type Sponsorship struct {
	ID                string    `db:"id" json:"id"`
	DonorEmail        string    `db:"donor_email" json:"donor_email"`
	ApprovedCaseID    string    `db:"approved_case_id" json:"approved_case_id"`
	CommittedPayments int       `db:"committed_payments" json:"committed_payments"`
	CompletedPayments int       `db:"completed_payments" json:"completed_payments"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Complete reports whether every committed payment has been made.
func (s Sponsorship) Complete() bool {
	return s.CompletedPayments >= s.CommittedPayments
}
