package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/config"
	"tablebook/internal/models"
)

type mockOverrideStore struct {
	overrides map[string]*models.DayOverride
	covers    map[string]int
	failOn    string
}

func (m *mockOverrideStore) GetDayOverride(ctx context.Context, date string) (*models.DayOverride, error) {
	if m.failOn == "GetDayOverride" {
		return nil, errors.New("store down")
	}
	return m.overrides[date], nil
}

func (m *mockOverrideStore) CountCoversForDate(ctx context.Context, date string) (int, error) {
	if m.failOn == "CountCoversForDate" {
		return 0, errors.New("store down")
	}
	return m.covers[date], nil
}

func testSettings() *config.BookingSettings {
	s := config.DefaultSettings()
	s.Timezone = "America/New_York"
	s.WeeklySchedule = map[string]config.DayHours{
		"monday":    {Closed: true},
		"tuesday":   {Open: "17:00", Close: "22:00"},
		"wednesday": {Open: "17:00", Close: "22:00"},
		"thursday":  {Open: "17:00", Close: "22:00"},
		"friday":    {Open: "17:00", Close: "22:00"},
		"saturday":  {Open: "12:00", Close: "23:00"},
		"sunday":    {Open: "12:00", Close: "21:00"},
	}
	s.SlotIntervalMin = 30
	s.LastSeatingBufferMin = 30
	return s
}

func testResolver(store *mockOverrideStore) *Resolver {
	if store.overrides == nil {
		store.overrides = map[string]*models.DayOverride{}
	}
	if store.covers == nil {
		store.covers = map[string]int{}
	}
	// A fixed Monday morning well before any test date.
	clock := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	return NewResolver(testSettings(), store).WithClock(func() time.Time { return clock })
}

func TestSlotsForGeneratesGridWithBufferBoundary(t *testing.T) {
	r := testResolver(&mockOverrideStore{})

	// Friday 2026-09-11: open 17:00, close 22:00, buffer 30. The last
	// bookable start is exactly close minus buffer.
	slots, duration, err := r.SlotsFor(context.Background(), "2026-09-11", 2)
	require.NoError(t, err)

	require.Len(t, slots, 10)
	assert.Equal(t, "17:00", slots[0].Time)
	assert.Equal(t, "21:30", slots[len(slots)-1].Time)
	assert.Equal(t, 90, duration)

	for _, slot := range slots {
		assert.True(t, slot.Available, "slot %s should be open", slot.Time)
	}
}

func TestSlotsForClosedDay(t *testing.T) {
	r := testResolver(&mockOverrideStore{})

	// Monday is closed in the weekly template.
	slots, _, err := r.SlotsFor(context.Background(), "2026-09-14", 2)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsForPastDate(t *testing.T) {
	r := testResolver(&mockOverrideStore{})

	slots, _, err := r.SlotsFor(context.Background(), "2026-09-04", 2)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsForTodayMarksElapsedTimes(t *testing.T) {
	store := &mockOverrideStore{}
	r := testResolver(store)

	// 2026-09-11 is a Friday; set the clock to 18:10 local that evening.
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	r.WithClock(func() time.Time { return time.Date(2026, 9, 11, 18, 10, 0, 0, loc) })

	slots, _, err := r.SlotsFor(context.Background(), "2026-09-11", 2)
	require.NoError(t, err)
	require.Len(t, slots, 10)

	// 17:00, 17:30 and 18:00 are behind the clock; 18:30 onward is open.
	for _, slot := range slots[:3] {
		assert.False(t, slot.Available)
		assert.Equal(t, models.ReasonPastTime, slot.Reason)
	}
	for _, slot := range slots[3:] {
		assert.True(t, slot.Available, "slot %s should be open", slot.Time)
	}
}

func TestSlotsForClosedOverrideWinsOverTemplate(t *testing.T) {
	store := &mockOverrideStore{
		overrides: map[string]*models.DayOverride{
			"2026-09-11": {Date: "2026-09-11", IsClosed: true, Note: "private event"},
		},
	}
	r := testResolver(store)

	slots, _, err := r.SlotsFor(context.Background(), "2026-09-11", 2)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsForOverrideHours(t *testing.T) {
	store := &mockOverrideStore{
		overrides: map[string]*models.DayOverride{
			// Monday is normally closed; the override opens it.
			"2026-09-14": {Date: "2026-09-14", OpenTime: "18:00", CloseTime: "21:00"},
		},
	}
	r := testResolver(store)

	slots, _, err := r.SlotsFor(context.Background(), "2026-09-14", 2)
	require.NoError(t, err)
	require.Len(t, slots, 6)
	assert.Equal(t, "18:00", slots[0].Time)
	assert.Equal(t, "20:30", slots[len(slots)-1].Time)
}

func TestSlotsForCapacityCap(t *testing.T) {
	store := &mockOverrideStore{
		overrides: map[string]*models.DayOverride{
			"2026-09-11": {Date: "2026-09-11", MaxCovers: 40},
		},
		covers: map[string]int{"2026-09-11": 38},
	}
	r := testResolver(store)

	// 38 booked + party of 4 would exceed the 40-cover cap.
	slots, _, err := r.SlotsFor(context.Background(), "2026-09-11", 4)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	for _, slot := range slots {
		assert.False(t, slot.Available)
		assert.Equal(t, models.ReasonNoCapacity, slot.Reason)
	}

	// A deuce still fits under the cap.
	slots, _, err = r.SlotsFor(context.Background(), "2026-09-11", 2)
	require.NoError(t, err)
	assert.True(t, slots[0].Available)
}

func TestValidateSlot(t *testing.T) {
	r := testResolver(&mockOverrideStore{})
	ctx := context.Background()

	duration, err := r.ValidateSlot(ctx, "2026-09-11", "21:30", 2)
	require.NoError(t, err)
	assert.Equal(t, 90, duration)

	// Past the last-seating cutoff.
	_, err = r.ValidateSlot(ctx, "2026-09-11", "22:00", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	// Off the slot grid.
	_, err = r.ValidateSlot(ctx, "2026-09-11", "17:15", 2)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	// Closed day carries the closed reason.
	_, err = r.ValidateSlot(ctx, "2026-09-14", "18:00", 2)
	var rejection *SlotRejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, models.ReasonClosed, rejection.Reason)

	// Past date.
	_, err = r.ValidateSlot(ctx, "2026-09-04", "18:00", 2)
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, models.ReasonPastDate, rejection.Reason)
}

func TestEndTimeFor(t *testing.T) {
	end, err := EndTimeFor("19:00", 105)
	require.NoError(t, err)
	assert.Equal(t, "20:45", end)

	// Dinner running past midnight wraps for display.
	end, err = EndTimeFor("23:00", 120)
	require.NoError(t, err)
	assert.Equal(t, "01:00", end)

	_, err = EndTimeFor("bogus", 60)
	assert.Error(t, err)
}

func TestResolveHoursStoreFailure(t *testing.T) {
	r := testResolver(&mockOverrideStore{failOn: "GetDayOverride"})

	_, err := r.ResolveHours(context.Background(), "2026-09-11")
	assert.Error(t, err)
}
