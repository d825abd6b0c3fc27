package models

import (
	"github.com/uptrace/bun"
)

// RestaurantTable is read-mostly reference data for slot capacity checks
// and turn-time predictions.
type RestaurantTable struct {
	bun.BaseModel `bun:"table:restaurant_tables"`

	ID          string `bun:"id,pk" json:"id"`
	Name        string `bun:"name,notnull" json:"name"`
	MinCapacity int    `bun:"min_capacity,notnull" json:"min_capacity"`
	MaxCapacity int    `bun:"max_capacity,notnull" json:"max_capacity"`
	Active      bool   `bun:"active,notnull" json:"active"`
	SortOrder   int    `bun:"sort_order" json:"sort_order"`
}

// DayOverride replaces the weekly template for a single date: a closed
// flag, special open/close times, and/or a covers cap.
type DayOverride struct {
	bun.BaseModel `bun:"table:day_overrides"`

	Date      string `bun:"date,pk" json:"date"` // YYYY-MM-DD
	IsClosed  bool   `bun:"is_closed" json:"is_closed"`
	OpenTime  string `bun:"open_time,nullzero" json:"open_time,omitempty"`   // HH:MM
	CloseTime string `bun:"close_time,nullzero" json:"close_time,omitempty"` // HH:MM
	MaxCovers int    `bun:"max_covers,nullzero" json:"max_covers,omitempty"`
	Note      string `bun:"note,nullzero" json:"note,omitempty"`
}

// GuestStats holds aggregate visit counters per guest phone, recomputed
// by the stats updater after complete/noshow transitions.
type GuestStats struct {
	bun.BaseModel `bun:"table:guest_stats"`

	Phone       string `bun:"phone,pk" json:"phone"`
	Visits      int    `bun:"visits,notnull" json:"visits"`
	NoShows     int    `bun:"no_shows,notnull" json:"no_shows"`
	LastVisitAt string `bun:"last_visit_at,nullzero" json:"last_visit_at,omitempty"`
}
