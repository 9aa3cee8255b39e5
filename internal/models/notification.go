package models

import "time"

// Notification is an outbound message persisted for in-app display.
// Delivery to the recipient's address is best-effort and asynchronous;
// only the recipient may flip the viewed flag.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	Recipient string    `db:"recipient" json:"recipient"`
	Subject   string    `db:"subject" json:"subject"`
	Message   string    `db:"message" json:"message"`
	Viewed    bool      `db:"viewed" json:"viewed"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
