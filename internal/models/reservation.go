package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ReservationStatus string

const (
	ResPending        ReservationStatus = "pending"
	ResCounterOffered ReservationStatus = "counter_offered"
	ResApproved       ReservationStatus = "approved"
	ResConfirmed      ReservationStatus = "confirmed"
	ResArrived        ReservationStatus = "arrived"
	ResSeated         ReservationStatus = "seated"
	ResCompleted      ReservationStatus = "completed"
	ResNoShow         ReservationStatus = "no_show"
	ResDeclined       ReservationStatus = "declined"
	ResCancelled      ReservationStatus = "cancelled"
	ResExpired        ReservationStatus = "expired"
)

// IsTerminal reports whether a reservation can no longer move.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case ResCompleted, ResNoShow, ResDeclined, ResCancelled, ResExpired:
		return true
	}
	return false
}

type ReservationSource string

const (
	SourceWidget   ReservationSource = "widget"
	SourceWalkIn   ReservationSource = "walk-in"
	SourceStaff    ReservationSource = "staff"
	SourceWaitlist ReservationSource = "waitlist"
)

type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID          string            `bun:"id,pk" json:"id"`
	Code        string            `bun:"code,notnull,unique" json:"code"`
	GuestName   string            `bun:"guest_name,notnull" json:"guest_name"`
	GuestPhone  string            `bun:"guest_phone,notnull" json:"guest_phone"`
	GuestEmail  string            `bun:"guest_email,nullzero" json:"guest_email,omitempty"`
	PartySize   int               `bun:"party_size,notnull" json:"party_size"`
	Date        string            `bun:"date,notnull" json:"date"` // YYYY-MM-DD in the restaurant zone
	Time        string            `bun:"time,notnull" json:"time"` // HH:MM local wall clock
	EndTime     string            `bun:"end_time,notnull" json:"end_time"`
	DurationMin int               `bun:"duration_min,notnull" json:"duration_min"`
	Status      ReservationStatus `bun:"status,notnull" json:"status"`
	Source      ReservationSource `bun:"source,notnull" json:"source"`
	TableID     string            `bun:"table_id,nullzero" json:"table_id,omitempty"`
	Notes       string            `bun:"notes,nullzero" json:"notes,omitempty"`

	DepositRequired bool  `bun:"deposit_required" json:"deposit_required"`
	DepositAmount   int64 `bun:"deposit_amount,nullzero" json:"deposit_amount,omitempty"`

	// Counter-offer bookkeeping.
	OriginalTime   string     `bun:"original_time,nullzero" json:"original_time,omitempty"`
	CounterExpires *time.Time `bun:"counter_expires,nullzero" json:"counter_expires,omitempty"`

	ApprovedAt  *time.Time `bun:"approved_at,nullzero" json:"approved_at,omitempty"`
	ArrivedAt   *time.Time `bun:"arrived_at,nullzero" json:"arrived_at,omitempty"`
	SeatedAt    *time.Time `bun:"seated_at,nullzero" json:"seated_at,omitempty"`
	CompletedAt *time.Time `bun:"completed_at,nullzero" json:"completed_at,omitempty"`
	CancelledAt *time.Time `bun:"cancelled_at,nullzero" json:"cancelled_at,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type ReservationRequest struct {
	GuestName  string `json:"guest_name"`
	GuestPhone string `json:"guest_phone"`
	GuestEmail string `json:"guest_email,omitempty"`
	PartySize  int    `json:"party_size"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Notes      string `json:"notes,omitempty"`
	Source     string `json:"source,omitempty"`
}

type ReservationResponse struct {
	Code            string            `json:"code"`
	Status          ReservationStatus `json:"status"`
	DepositRequired bool              `json:"deposit_required"`
	DepositAmount   int64             `json:"deposit_amount,omitempty"`
}

// ActionRequest is the payload for a lifecycle action on a reservation.
type ActionRequest struct {
	Action  string `json:"action"`
	TableID string `json:"table_id,omitempty"`
	// NewTime is required by the counter action (HH:MM local).
	NewTime string `json:"new_time,omitempty"`
}
