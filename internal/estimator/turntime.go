package estimator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/models"
)

const (
	historyWindow = 30 * 24 * time.Hour

	// Turn times outside this band are treated as data-entry noise.
	minSaneTurnMin = 5
	maxSaneTurnMin = 300

	defaultTurnMin = 60
)

// HistoryStore supplies the seating history and floor state the
// estimator works from.
type HistoryStore interface {
	CompletedSince(ctx context.Context, since time.Time) ([]models.Reservation, error)
	CurrentlySeated(ctx context.Context) ([]models.Reservation, error)
	ActiveTables(ctx context.Context) ([]models.RestaurantTable, error)
}

// TurnTimes holds average occupancy durations in minutes computed from
// completed reservations.
type TurnTimes struct {
	Overall int
	BySize  map[int]int
	ByTable map[string]int
	Samples int
}

type Estimator struct {
	Store    HistoryStore
	Settings *config.BookingSettings

	now func() time.Time
}

func New(store HistoryStore, settings *config.BookingSettings) *Estimator {
	return &Estimator{Store: store, Settings: settings, now: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (e *Estimator) WithClock(now func() time.Time) *Estimator {
	e.now = now
	return e
}

// ComputeTurnTimes averages seated->completed durations over the
// trailing 30-day window, overall and broken out by party size and
// table. Outliers outside the 5-300 minute band are discarded.
func (e *Estimator) ComputeTurnTimes(ctx context.Context) (*TurnTimes, error) {
	history, err := e.Store.CompletedSince(ctx, e.now().Add(-historyWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load seating history: %w", err)
	}

	stats := &TurnTimes{
		BySize:  make(map[int]int),
		ByTable: make(map[string]int),
	}

	var totalMin int
	sizeTotals := make(map[int][2]int) // sum, count
	tableTotals := make(map[string][2]int)

	for _, res := range history {
		if res.SeatedAt == nil || res.CompletedAt == nil {
			continue
		}
		turn := int(res.CompletedAt.Sub(*res.SeatedAt).Minutes())
		if turn < minSaneTurnMin || turn > maxSaneTurnMin {
			continue
		}
		stats.Samples++
		totalMin += turn

		acc := sizeTotals[res.PartySize]
		sizeTotals[res.PartySize] = [2]int{acc[0] + turn, acc[1] + 1}

		if res.TableID != "" {
			acc := tableTotals[res.TableID]
			tableTotals[res.TableID] = [2]int{acc[0] + turn, acc[1] + 1}
		}
	}

	if stats.Samples > 0 {
		stats.Overall = totalMin / stats.Samples
	}
	for size, acc := range sizeTotals {
		stats.BySize[size] = acc[0] / acc[1]
	}
	for table, acc := range tableTotals {
		stats.ByTable[table] = acc[0] / acc[1]
	}
	return stats, nil
}

// expectedTurn picks the best available average for an occupant: the
// table's own history, then the party size's, then overall, then a
// 60-minute default.
func (t *TurnTimes) expectedTurn(tableID string, partySize int) int {
	if avg, ok := t.ByTable[tableID]; ok && avg > 0 {
		return avg
	}
	if avg, ok := t.BySize[partySize]; ok && avg > 0 {
		return avg
	}
	if t.Overall > 0 {
		return t.Overall
	}
	return defaultTurnMin
}

// PredictTableFree estimates when a currently occupied table frees up.
func (e *Estimator) PredictTableFree(ctx context.Context, tableID string, seatedAt time.Time, partySize int) (time.Time, error) {
	stats, err := e.ComputeTurnTimes(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return seatedAt.Add(time.Duration(stats.expectedTurn(tableID, partySize)) * time.Minute), nil
}

// WaitlistEstimate predicts the wait for a party at the given queue
// position: project every seated party's departure, keep the tables big
// enough for the request, and take the Nth soonest. With no history or
// no suitable table it falls back to max(5, position*15) minutes.
func (e *Estimator) WaitlistEstimate(ctx context.Context, partySize, position int) (*models.WaitEstimate, error) {
	if position < 1 {
		position = 1
	}

	stats, err := e.ComputeTurnTimes(ctx)
	if err != nil {
		return nil, err
	}
	seated, err := e.Store.CurrentlySeated(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load seated parties: %w", err)
	}
	tables, err := e.Store.ActiveTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}

	capacities := make(map[string]int, len(tables))
	for _, t := range tables {
		capacities[t.ID] = t.MaxCapacity
	}

	now := e.now().In(e.Settings.Location())

	var departures []time.Time
	for _, res := range seated {
		if res.SeatedAt == nil || res.TableID == "" {
			continue
		}
		if capacities[res.TableID] < partySize {
			continue
		}
		departures = append(departures, res.SeatedAt.Add(time.Duration(stats.expectedTurn(res.TableID, res.PartySize))*time.Minute))
	}

	if stats.Samples == 0 || len(departures) < position {
		minutes := position * 15
		if minutes < 5 {
			minutes = 5
		}
		return &models.WaitEstimate{
			EstimatedMinutes: roundUpTo5(minutes),
			EstimatedTime:    now.Add(time.Duration(minutes) * time.Minute).Format("15:04"),
			BasedOn:          "heuristic",
		}, nil
	}

	sort.Slice(departures, func(i, j int) bool { return departures[i].Before(departures[j]) })
	target := departures[position-1]

	minutes := int(target.Sub(now).Minutes())
	if minutes < 5 {
		minutes = 5
	}
	minutes = roundUpTo5(minutes)

	return &models.WaitEstimate{
		EstimatedMinutes: minutes,
		EstimatedTime:    now.Add(time.Duration(minutes) * time.Minute).Format("15:04"),
		BasedOn:          "turn_times",
	}, nil
}

// roundUpTo5 rounds up to the nearest 5 minutes for guest display.
func roundUpTo5(minutes int) int {
	return ((minutes + 4) / 5) * 5
}
