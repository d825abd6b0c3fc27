package models

// SlotReason explains why a slot is not bookable.
type SlotReason string

const (
	ReasonPastDate   SlotReason = "past_date"
	ReasonPastTime   SlotReason = "past_time"
	ReasonClosed     SlotReason = "closed"
	ReasonNoCapacity SlotReason = "no_capacity"
)

// Slot is a candidate reservation start time.
type Slot struct {
	Time      string     `json:"time"` // HH:MM local wall clock
	Available bool       `json:"available"`
	Reason    SlotReason `json:"reason,omitempty"`
}

// DepositInfo is the result of the deposit policy evaluation: whether a
// pre-authorization is required for this date/party and how much.
type DepositInfo struct {
	Required bool        `json:"required"`
	Amount   int64       `json:"amount"` // minor currency units
	MinParty int         `json:"min_party"`
	Type     PaymentType `json:"type"`
	Source   string      `json:"source"` // "special", "global" or "none"
	Label    string      `json:"label,omitempty"`
	Message  string      `json:"message,omitempty"`
}

type AvailabilityResponse struct {
	Date        string      `json:"date"`
	PartySize   int         `json:"party_size"`
	DurationMin int         `json:"duration_min"`
	Slots       []Slot      `json:"slots"`
	Deposit     DepositInfo `json:"deposit"`
}
