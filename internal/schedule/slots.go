package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/models"
)

var ErrSlotUnavailable = errors.New("slot unavailable")

// SlotRejection wraps ErrSlotUnavailable with the reason a requested
// slot was rejected.
type SlotRejection struct {
	Reason models.SlotReason
}

func (e *SlotRejection) Error() string {
	return fmt.Sprintf("slot unavailable: %s", e.Reason)
}

func (e *SlotRejection) Unwrap() error { return ErrSlotUnavailable }

// SlotsFor generates the ordered slot list for a date and party size,
// along with the expected dining duration in minutes.
//
// Closed and past dates produce an empty list. Otherwise the open->close
// window is walked in slot-interval steps; a slot is bookable iff its
// start is no later than close minus the last-seating buffer (boundary
// inclusive). Slots for today that are already behind the restaurant's
// wall clock stay in the list marked past_time, and a capacity-capped
// date marks everything no_capacity once the cap is hit.
func (r *Resolver) SlotsFor(ctx context.Context, date string, partySize int) ([]models.Slot, int, error) {
	duration := r.settings.DurationFor(partySize)

	day, err := r.ParseDate(date)
	if err != nil {
		return nil, 0, err
	}

	hours, err := r.ResolveHours(ctx, date)
	if err != nil {
		return nil, 0, err
	}
	if hours.Closed {
		return []models.Slot{}, duration, nil
	}

	now := r.now().In(r.settings.Location())
	today := now.Format("2006-01-02")
	if day.Format("2006-01-02") < today {
		return []models.Slot{}, duration, nil
	}

	capacityFull := false
	if hours.MaxCovers > 0 {
		booked, err := r.store.CountCoversForDate(ctx, date)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to count covers for %s: %w", date, err)
		}
		capacityFull = booked+partySize > hours.MaxCovers
	}

	lastStart := hours.Close.Add(-r.settings.LastSeatingBufferMin)
	nowClock := config.ClockTime(now.Hour()*60 + now.Minute())
	isToday := date == today

	var slots []models.Slot
	for start := hours.Open; !start.After(lastStart); start = start.Add(r.settings.SlotIntervalMin) {
		slot := models.Slot{Time: start.String(), Available: true}
		switch {
		case isToday && !start.After(nowClock):
			slot.Available = false
			slot.Reason = models.ReasonPastTime
		case capacityFull:
			slot.Available = false
			slot.Reason = models.ReasonNoCapacity
		}
		slots = append(slots, slot)
	}
	if slots == nil {
		slots = []models.Slot{}
	}
	return slots, duration, nil
}

// ValidateSlot checks that a requested date/time is a bookable slot for
// the party size and returns the dining duration. Rejections carry the
// same reason codes the slot list uses.
func (r *Resolver) ValidateSlot(ctx context.Context, date, timeOfDay string, partySize int) (int, error) {
	day, err := r.ParseDate(date)
	if err != nil {
		return 0, err
	}
	requested, err := config.ParseClock(timeOfDay)
	if err != nil {
		return 0, err
	}

	now := r.now().In(r.settings.Location())
	today := now.Format("2006-01-02")
	if day.Format("2006-01-02") < today {
		return 0, &SlotRejection{Reason: models.ReasonPastDate}
	}

	slots, duration, err := r.SlotsFor(ctx, date, partySize)
	if err != nil {
		return 0, err
	}
	if len(slots) == 0 {
		return 0, &SlotRejection{Reason: models.ReasonClosed}
	}

	for _, slot := range slots {
		if slot.Time != requested.String() {
			continue
		}
		if !slot.Available {
			return 0, &SlotRejection{Reason: slot.Reason}
		}
		return duration, nil
	}
	return 0, &SlotRejection{Reason: models.ReasonClosed}
}

// LocalInstant converts a reservation's local date and wall-clock time
// into an absolute instant in the restaurant's zone.
func (r *Resolver) LocalInstant(date, timeOfDay string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+timeOfDay, r.settings.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q %q: %w", date, timeOfDay, err)
	}
	return t, nil
}

// EndTimeFor derives the wall-clock end time from a start and duration.
func EndTimeFor(start string, durationMin int) (string, error) {
	clock, err := config.ParseClock(start)
	if err != nil {
		return "", err
	}
	end := clock.Add(durationMin)
	// Wrap past midnight for display.
	return config.ClockTime(end.Minutes() % (24 * 60)).String(), nil
}
