package models

import "time"

// PaymentStatus enumerates transaction states. Transactions are written
// once, already completed; there is no pending payment state.
type PaymentStatus string

const PaymentStatusCompleted PaymentStatus = "COMPLETED"

// PaymentTransaction is the immutable audit record of one payment
// increment against a sponsorship. Sequence numbers are gapless from 1.
type PaymentTransaction struct {
	ID                    string        `db:"id" json:"id"`
	DonorEmail            string        `db:"donor_email" json:"donor_email"`
	SponsorshipID         string        `db:"sponsorship_id" json:"sponsorship_id"`
	PaymentSequenceNumber int           `db:"payment_sequence_number" json:"payment_sequence_number"`
	Status                PaymentStatus `db:"status" json:"status"`
	CreatedAt             time.Time     `db:"created_at" json:"created_at"`
}
