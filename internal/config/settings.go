package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"tablebook/internal/models"
)

// BookingSettings is the restaurant's operational configuration, parsed
// and validated once at startup and passed into the engine explicitly.
type BookingSettings struct {
	Timezone             string              `json:"timezone"`
	WeeklySchedule       map[string]DayHours `json:"weekly_schedule"` // keyed by lowercase weekday name
	SlotIntervalMin      int                 `json:"slot_interval_min"`
	LastSeatingBufferMin int                 `json:"last_seating_buffer_min"`
	DiningDurations      map[int]int         `json:"dining_durations"` // party size -> minutes
	DefaultDurationMin   int                 `json:"default_duration_min"`
	MaxPartySize         int                 `json:"max_party_size"`
	Deposit              DepositSettings     `json:"deposit"`
	NoShow               NoShowSettings      `json:"no_show"`
}

type DayHours struct {
	Closed bool   `json:"closed"`
	Open   string `json:"open,omitempty"`  // HH:MM
	Close  string `json:"close,omitempty"` // HH:MM
}

type DepositSettings struct {
	Enabled      bool               `json:"enabled"`
	Type         models.PaymentType `json:"type"`   // hold or deposit
	Amount       int64              `json:"amount"` // minor currency units
	MinPartySize int                `json:"min_party_size"`
	Currency     string             `json:"currency"`
	SpecialRules []DepositRule      `json:"special_rules,omitempty"`
}

// DepositRule scopes a deposit override by date range and/or party size.
// Rules are evaluated in order, first match wins.
type DepositRule struct {
	StartDate    string `json:"start_date,omitempty"` // YYYY-MM-DD inclusive, empty = unbounded
	EndDate      string `json:"end_date,omitempty"`   // YYYY-MM-DD inclusive, empty = unbounded
	MinPartySize int    `json:"min_party_size,omitempty"`
	Amount       int64  `json:"amount"`
	Label        string `json:"label,omitempty"`
	Message      string `json:"message,omitempty"`
}

type NoShowSettings struct {
	ChargeEnabled bool  `json:"charge_enabled"`
	Amount        int64 `json:"amount"` // minor currency units
}

// LoadSettings reads settings from a JSON file. Missing file falls back
// to DefaultSettings so local development works without one.
func LoadSettings(path string) (*BookingSettings, error) {
	if path == "" {
		path = os.Getenv("BOOKING_SETTINGS_PATH")
	}
	if path == "" {
		s := DefaultSettings()
		return s, s.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	s := DefaultSettings()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func DefaultSettings() *BookingSettings {
	return &BookingSettings{
		Timezone: "America/New_York",
		WeeklySchedule: map[string]DayHours{
			"monday":    {Closed: true},
			"tuesday":   {Open: "17:00", Close: "22:00"},
			"wednesday": {Open: "17:00", Close: "22:00"},
			"thursday":  {Open: "17:00", Close: "22:00"},
			"friday":    {Open: "17:00", Close: "23:00"},
			"saturday":  {Open: "12:00", Close: "23:00"},
			"sunday":    {Open: "12:00", Close: "21:00"},
		},
		SlotIntervalMin:      30,
		LastSeatingBufferMin: 30,
		DiningDurations: map[int]int{
			1: 60,
			2: 90,
			4: 105,
			6: 120,
			8: 150,
		},
		DefaultDurationMin: 90,
		MaxPartySize:       12,
		Deposit: DepositSettings{
			Enabled:      false,
			Type:         models.PaymentHold,
			Amount:       2500,
			MinPartySize: 6,
			Currency:     "usd",
		},
		NoShow: NoShowSettings{
			ChargeEnabled: false,
			Amount:        2500,
		},
	}
}

func (s *BookingSettings) Validate() error {
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	if s.SlotIntervalMin <= 0 {
		return errors.New("slot_interval_min must be positive")
	}
	if s.LastSeatingBufferMin < 0 {
		return errors.New("last_seating_buffer_min cannot be negative")
	}
	if s.DefaultDurationMin <= 0 {
		return errors.New("default_duration_min must be positive")
	}
	if s.MaxPartySize <= 0 {
		return errors.New("max_party_size must be positive")
	}
	for day, hours := range s.WeeklySchedule {
		if hours.Closed {
			continue
		}
		open, err := ParseClock(hours.Open)
		if err != nil {
			return fmt.Errorf("invalid open time for %s: %w", day, err)
		}
		closeAt, err := ParseClock(hours.Close)
		if err != nil {
			return fmt.Errorf("invalid close time for %s: %w", day, err)
		}
		if !closeAt.After(open) {
			return fmt.Errorf("close time must be after open time for %s", day)
		}
	}
	if s.Deposit.Enabled {
		if s.Deposit.Type != models.PaymentHold && s.Deposit.Type != models.PaymentDeposit {
			return fmt.Errorf("invalid deposit type %q", s.Deposit.Type)
		}
		if s.Deposit.Amount <= 0 {
			return errors.New("deposit amount must be positive when deposits are enabled")
		}
		if s.Deposit.Currency == "" {
			return errors.New("deposit currency is required when deposits are enabled")
		}
	}
	return nil
}

// Location resolves the restaurant's IANA time zone. Validate has already
// checked it, so errors here only happen on an unvalidated struct.
func (s *BookingSettings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HoursFor returns the weekly template entry for a weekday.
func (s *BookingSettings) HoursFor(day time.Weekday) (DayHours, bool) {
	hours, ok := s.WeeklySchedule[strings.ToLower(day.String())]
	return hours, ok
}

// DurationFor looks up the expected dining duration for a party size.
// Exact match wins; otherwise the nearest defined size at or below the
// request, then the smallest defined size, then the default. With a
// non-decreasing duration table this keeps the lookup monotonic in
// party size.
func (s *BookingSettings) DurationFor(partySize int) int {
	if d, ok := s.DiningDurations[partySize]; ok {
		return d
	}
	if len(s.DiningDurations) == 0 {
		return s.DefaultDurationMin
	}

	sizes := make([]int, 0, len(s.DiningDurations))
	for size := range s.DiningDurations {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)

	best := -1
	for _, size := range sizes {
		if size <= partySize {
			best = size
		}
	}
	if best >= 0 {
		return s.DiningDurations[best]
	}
	return s.DiningDurations[sizes[0]]
}

// ParseClock parses an HH:MM wall-clock string into minutes since
// midnight, returned as a ClockTime.
func ParseClock(value string) (ClockTime, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return ClockTime(-1), fmt.Errorf("invalid time %q (want HH:MM): %w", value, err)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

// ClockTime is minutes since local midnight.
type ClockTime int

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) After(other ClockTime) bool { return c > other }

// Add returns the clock time shifted by minutes. It can pass midnight;
// callers that care compare against close times before wrapping.
func (c ClockTime) Add(minutes int) ClockTime { return c + ClockTime(minutes) }

func (c ClockTime) Minutes() int { return int(c) }
