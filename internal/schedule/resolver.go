package schedule

import (
	"context"
	"fmt"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/models"
)

// OverrideStore supplies the date-specific schedule data the resolver
// needs: overrides and booked covers for capacity caps.
type OverrideStore interface {
	GetDayOverride(ctx context.Context, date string) (*models.DayOverride, error)
	CountCoversForDate(ctx context.Context, date string) (int, error)
}

// EffectiveHours is the resolved operating window for one date after
// applying any override on top of the weekly template.
type EffectiveHours struct {
	Closed    bool
	Open      config.ClockTime
	Close     config.ClockTime
	MaxCovers int // 0 means uncapped
}

type Resolver struct {
	settings *config.BookingSettings
	store    OverrideStore
	now      func() time.Time
}

func NewResolver(settings *config.BookingSettings, store OverrideStore) *Resolver {
	return &Resolver{
		settings: settings,
		store:    store,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock, for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// ParseDate interprets a YYYY-MM-DD string as midnight in the
// restaurant's zone. All schedule arithmetic goes through this so the
// server's local zone never leaks in.
func (r *Resolver) ParseDate(date string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, r.settings.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", date, err)
	}
	return day, nil
}

// ResolveHours returns the effective operating hours for a date. A
// DayOverride takes precedence over the weekly template: a closed flag
// closes the date outright, and open/close/max-covers each override
// their template counterpart independently.
func (r *Resolver) ResolveHours(ctx context.Context, date string) (EffectiveHours, error) {
	day, err := r.ParseDate(date)
	if err != nil {
		return EffectiveHours{}, err
	}

	template, ok := r.settings.HoursFor(day.Weekday())
	hours := EffectiveHours{Closed: !ok || template.Closed}
	if !hours.Closed {
		if hours.Open, err = config.ParseClock(template.Open); err != nil {
			return EffectiveHours{}, err
		}
		if hours.Close, err = config.ParseClock(template.Close); err != nil {
			return EffectiveHours{}, err
		}
	}

	override, err := r.store.GetDayOverride(ctx, date)
	if err != nil {
		return EffectiveHours{}, fmt.Errorf("failed to load day override for %s: %w", date, err)
	}
	if override == nil {
		return hours, nil
	}

	if override.IsClosed {
		return EffectiveHours{Closed: true}, nil
	}
	if override.OpenTime != "" {
		if hours.Open, err = config.ParseClock(override.OpenTime); err != nil {
			return EffectiveHours{}, err
		}
		hours.Closed = false
	}
	if override.CloseTime != "" {
		if hours.Close, err = config.ParseClock(override.CloseTime); err != nil {
			return EffectiveHours{}, err
		}
		hours.Closed = false
	}
	if override.MaxCovers > 0 {
		hours.MaxCovers = override.MaxCovers
	}
	return hours, nil
}
