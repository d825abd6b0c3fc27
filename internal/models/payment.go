package models

import (
	"time"
)

type PaymentType string

const (
	PaymentHold    PaymentType = "hold"
	PaymentDeposit PaymentType = "deposit"
)

type PaymentStatus string

const (
	PayPending   PaymentStatus = "pending"
	PayCaptured  PaymentStatus = "captured"
	PayReleased  PaymentStatus = "released"
	PayRefunded  PaymentStatus = "refunded"
	PayCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) rank() int {
	switch s {
	case PayPending:
		return 0
	case PayCaptured, PayReleased, PayCancelled:
		return 1
	case PayRefunded:
		return 2
	}
	return -1
}

// CanBecome reports whether moving to next is a forward move. Statuses
// never regress: captured can only proceed to refunded, the other
// settled states are final.
func (s PaymentStatus) CanBecome(next PaymentStatus) bool {
	if s == next {
		return true
	}
	if s == PayCaptured && next == PayRefunded {
		return true
	}
	return s.rank() == 0 && next.rank() == 1
}

type Payment struct {
	PaymentID     string        `json:"payment_id" bun:"payment_id,pk"`
	ReservationID string        `json:"reservation_id" bun:"reservation_id,notnull"`
	Type          PaymentType   `json:"type" bun:"type,notnull"`
	Status        PaymentStatus `json:"status" bun:"status,notnull"`
	Amount        int64         `json:"amount" bun:"amount,notnull"` // minor currency units
	Currency      string        `json:"currency" bun:"currency,notnull"`
	IntentID      string        `json:"intent_id,omitempty" bun:"intent_id,nullzero"`
	CreatedAt     time.Time     `json:"created_at" bun:"created_at,notnull"`
	UpdatedAt     time.Time     `json:"updated_at,omitempty" bun:"updated_at,nullzero"`
}

// PaymentIntentRequest is the guest-facing payload to create a processor
// intent. The guest proves ownership with the reservation short code plus
// the last four digits of the phone number on file.
type PaymentIntentRequest struct {
	ReservationID string `json:"reservation_id"`
	Code          string `json:"code"`
	PhoneLast4    string `json:"phone_last4"`
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type NoShowChargeResult struct {
	Charged bool   `json:"charged"`
	Amount  int64  `json:"amount,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
