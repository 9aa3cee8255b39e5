package models

import "time"

// FeeStatus enumerates fee entry states. Values mirror what the fee
// ledger stores: entries start pending and are approved exactly once.
type FeeStatus string

const (
	FeeStatusPending  FeeStatus = "pending"
	FeeStatusApproved FeeStatus = "Approved"
)

// FeeEntry is one billable line item belonging to a student. Entries are
// matched during approval by (student_email, fee_amount, status=pending);
// exact label equality is a behavioural contract, not an implementation
// detail.
type FeeEntry struct {
	ID            string     `db:"id" json:"id"`
	StudentEmail  string     `db:"student_email" json:"student_email"`
	SequenceNo    int        `db:"seq_no" json:"seq_no"`
	UploadedDate  time.Time  `db:"uploaded_date" json:"uploaded_date"`
	FeeAmount     string     `db:"fee_amount" json:"fee_amount"`
	FeeImage      string     `db:"fee_image" json:"fee_image"`
	DueDate       *time.Time `db:"due_date" json:"due_date,omitempty"`
	InvoiceNumber string     `db:"invoice_number" json:"invoice_number"`
	Status        FeeStatus  `db:"status" json:"status"`
}
