package models

import "time"

// CaseStatus enumerates the lifecycle of a help request.
type CaseStatus string

const (
	CaseStatusPending  CaseStatus = "PENDING"
	CaseStatusApproved CaseStatus = "APPROVED"
	CaseStatusRejected CaseStatus = "REJECTED"
)

// CaseRequest is a student's ask for financial assistance. The record is
// consumed (deleted) when approval succeeds; ApprovedCase supersedes it.
type CaseRequest struct {
	ID           string     `db:"id" json:"id"`
	StudentEmail string     `db:"student_email" json:"student_email"`
	DonorEmail   *string    `db:"donor_email" json:"donor_email,omitempty"`
	Status       CaseStatus `db:"status" json:"status"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	PhotoURL     string     `db:"photo_url" json:"photo_url"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// ApprovedCase is the durable record of an administrative approval. It
// exists if and only if the matching fee entry was marked approved.
type ApprovedCase struct {
	ID            string     `db:"id" json:"id"`
	StudentEmail  string     `db:"student_email" json:"student_email"`
	DonorEmail    string     `db:"donor_email" json:"donor_email"`
	AdminEmail    string     `db:"admin_email" json:"admin_email"`
	PaymentProof  string     `db:"payment_proof" json:"payment_proof"`
	Description   string     `db:"description" json:"description"`
	TotalPayments int        `db:"total_payments" json:"total_payments"`
	Status        CaseStatus `db:"status" json:"status"`
	ApprovedDate  time.Time  `db:"approved_date" json:"approved_date"`
}

// CaseFilter limits approved-case listings.
type CaseFilter struct {
	Page     int
	PageSize int
}
