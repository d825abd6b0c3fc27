package models

import (
	"time"

	"github.com/uptrace/bun"
)

type WaitlistStatus string

const (
	WaitWaiting   WaitlistStatus = "waiting"
	WaitNotified  WaitlistStatus = "notified"
	WaitSeated    WaitlistStatus = "seated"
	WaitCancelled WaitlistStatus = "cancelled"
	WaitLeft      WaitlistStatus = "left"
)

// IsActive reports whether the entry still occupies a queue position.
func (s WaitlistStatus) IsActive() bool {
	return s == WaitWaiting || s == WaitNotified
}

type WaitlistEntry struct {
	bun.BaseModel `bun:"table:waitlist_entries"`

	ID            string         `bun:"id,pk" json:"id"`
	GuestName     string         `bun:"guest_name,notnull" json:"guest_name"`
	GuestPhone    string         `bun:"guest_phone,notnull" json:"guest_phone"`
	PartySize     int            `bun:"party_size,notnull" json:"party_size"`
	Status        WaitlistStatus `bun:"status,notnull" json:"status"`
	Position      int            `bun:"position,notnull" json:"position"`
	EstimatedWait int            `bun:"estimated_wait,notnull" json:"estimated_wait"` // minutes
	NotifiedAt    *time.Time     `bun:"notified_at,nullzero" json:"notified_at,omitempty"`
	SeatedAt      *time.Time     `bun:"seated_at,nullzero" json:"seated_at,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time      `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type WaitlistJoinRequest struct {
	GuestName  string `json:"guest_name"`
	GuestPhone string `json:"guest_phone"`
	PartySize  int    `json:"party_size"`
}

type WaitlistJoinResponse struct {
	ID               string `json:"id"`
	Position         int    `json:"position"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

type WaitEstimate struct {
	EstimatedMinutes int    `json:"estimated_minutes"`
	EstimatedTime    string `json:"estimated_time"` // HH:MM local wall clock
	BasedOn          string `json:"based_on"`       // "turn_times" or "heuristic"
}
