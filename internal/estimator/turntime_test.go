package estimator

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

type mockHistoryStore struct {
	completed    []models.Reservation
	seated       []models.Reservation
	tables       []models.RestaurantTable
	shouldFailOn string
}

func (m *mockHistoryStore) CompletedSince(ctx context.Context, since time.Time) ([]models.Reservation, error) {
	if m.shouldFailOn == "CompletedSince" {
		return nil, errors.New("db down")
	}
	return m.completed, nil
}

func (m *mockHistoryStore) CurrentlySeated(ctx context.Context) ([]models.Reservation, error) {
	if m.shouldFailOn == "CurrentlySeated" {
		return nil, errors.New("db down")
	}
	return m.seated, nil
}

func (m *mockHistoryStore) ActiveTables(ctx context.Context) ([]models.RestaurantTable, error) {
	if m.shouldFailOn == "ActiveTables" {
		return nil, errors.New("db down")
	}
	return m.tables, nil
}

var estimatorClock = time.Date(2026, 9, 11, 19, 0, 0, 0, time.UTC)

func completedVisit(tableID string, partySize, turnMin int) models.Reservation {
	seated := estimatorClock.Add(-72 * time.Hour)
	completed := seated.Add(time.Duration(turnMin) * time.Minute)
	return models.Reservation{
		TableID:     tableID,
		PartySize:   partySize,
		Status:      models.ResCompleted,
		SeatedAt:    &seated,
		CompletedAt: &completed,
	}
}

func seatedParty(tableID string, partySize, minutesAgo int) models.Reservation {
	seated := estimatorClock.Add(-time.Duration(minutesAgo) * time.Minute)
	return models.Reservation{
		TableID:   tableID,
		PartySize: partySize,
		Status:    models.ResSeated,
		SeatedAt:  &seated,
	}
}

func newEstimator(store *mockHistoryStore) *Estimator {
	settings := config.DefaultSettings()
	settings.Timezone = "UTC"
	return New(store, settings).WithClock(func() time.Time { return estimatorClock })
}

func TestComputeTurnTimesAverages(t *testing.T) {
	store := &mockHistoryStore{
		completed: []models.Reservation{
			completedVisit("t03", 2, 80),
			completedVisit("t03", 2, 100),
			completedVisit("t06", 4, 120),
		},
	}
	e := newEstimator(store)

	stats, err := e.ComputeTurnTimes(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Samples)
	assert.Equal(t, 100, stats.Overall)
	assert.Equal(t, 90, stats.BySize[2])
	assert.Equal(t, 120, stats.BySize[4])
	assert.Equal(t, 90, stats.ByTable["t03"])
	assert.Equal(t, 120, stats.ByTable["t06"])
}

func TestComputeTurnTimesDiscardsOutliers(t *testing.T) {
	store := &mockHistoryStore{
		completed: []models.Reservation{
			completedVisit("t03", 2, 90),
			completedVisit("t03", 2, 2),   // below the sanity band
			completedVisit("t03", 2, 600), // data-entry noise
		},
	}
	e := newEstimator(store)

	stats, err := e.ComputeTurnTimes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Samples)
	assert.Equal(t, 90, stats.Overall)
}

func TestComputeTurnTimesSkipsIncompleteRows(t *testing.T) {
	seated := estimatorClock.Add(-2 * time.Hour)
	store := &mockHistoryStore{
		completed: []models.Reservation{
			{PartySize: 2, SeatedAt: &seated}, // never completed
			completedVisit("t03", 2, 90),
		},
	}
	e := newEstimator(store)

	stats, err := e.ComputeTurnTimes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Samples)
}

func TestPredictTableFree(t *testing.T) {
	store := &mockHistoryStore{
		completed: []models.Reservation{
			completedVisit("t03", 2, 80),
			completedVisit("t03", 2, 100),
		},
	}
	e := newEstimator(store)

	seatedAt := estimatorClock.Add(-30 * time.Minute)
	free, err := e.PredictTableFree(context.Background(), "t03", seatedAt, 2)
	require.NoError(t, err)
	assert.Equal(t, seatedAt.Add(90*time.Minute), free)

	// Unknown table falls through to the party-size average.
	free, err = e.PredictTableFree(context.Background(), "t99", seatedAt, 2)
	require.NoError(t, err)
	assert.Equal(t, seatedAt.Add(90*time.Minute), free)
}

func TestWaitlistEstimateUsesNthSoonestSuitableTable(t *testing.T) {
	store := &mockHistoryStore{
		completed: []models.Reservation{
			completedVisit("t03", 2, 60),
			completedVisit("t06", 4, 90),
			completedVisit("t07", 4, 90),
		},
		seated: []models.Reservation{
			// The deuce frees up first but cannot take a party of 4.
			seatedParty("t03", 2, 40),
			seatedParty("t06", 4, 60), // frees in 30 min
			seatedParty("t07", 4, 20), // frees in 70 min
		},
		tables: []models.RestaurantTable{
			{ID: "t03", MaxCapacity: 2, Active: true},
			{ID: "t06", MaxCapacity: 6, Active: true},
			{ID: "t07", MaxCapacity: 6, Active: true},
		},
	}
	e := newEstimator(store)
	ctx := context.Background()

	// Position 1: soonest table with capacity >= 4 is t06 in 30 minutes.
	estimate, err := e.WaitlistEstimate(ctx, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, 30, estimate.EstimatedMinutes)
	assert.Equal(t, "turn_times", estimate.BasedOn)
	assert.Equal(t, estimatorClock.Add(30*time.Minute).Format("15:04"), estimate.EstimatedTime)

	// Position 2: the next suitable departure is t07 in 70 minutes.
	estimate, err = e.WaitlistEstimate(ctx, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 70, estimate.EstimatedMinutes)

	// A party of 2 can take the deuce, which frees first (60-minute
	// average turn, seated 40 minutes ago).
	estimate, err = e.WaitlistEstimate(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 20, estimate.EstimatedMinutes)
}

func TestWaitlistEstimateHeuristicFallback(t *testing.T) {
	// No history at all.
	e := newEstimator(&mockHistoryStore{})

	estimate, err := e.WaitlistEstimate(context.Background(), 4, 1)
	require.NoError(t, err)
	assert.Equal(t, 15, estimate.EstimatedMinutes)
	assert.Equal(t, "heuristic", estimate.BasedOn)

	estimate, err = e.WaitlistEstimate(context.Background(), 4, 3)
	require.NoError(t, err)
	assert.Equal(t, 45, estimate.EstimatedMinutes)
}

func TestWaitlistEstimateFallsBackWhenQueueOutrunsDepartures(t *testing.T) {
	store := &mockHistoryStore{
		completed: []models.Reservation{completedVisit("t06", 4, 90)},
		seated:    []models.Reservation{seatedParty("t06", 4, 60)},
		tables:    []models.RestaurantTable{{ID: "t06", MaxCapacity: 6, Active: true}},
	}
	e := newEstimator(store)

	// Only one projected departure but the guest is third in line.
	estimate, err := e.WaitlistEstimate(context.Background(), 4, 3)
	require.NoError(t, err)
	assert.Equal(t, "heuristic", estimate.BasedOn)
	assert.Equal(t, 45, estimate.EstimatedMinutes)
}

func TestWaitlistEstimateNeverBelowFiveMinutes(t *testing.T) {
	store := &mockHistoryStore{
		completed: []models.Reservation{completedVisit("t06", 4, 90)},
		// Seated 100 minutes ago with a 90-minute expected turn: the
		// departure is already overdue.
		seated: []models.Reservation{seatedParty("t06", 4, 100)},
		tables: []models.RestaurantTable{{ID: "t06", MaxCapacity: 6, Active: true}},
	}
	e := newEstimator(store)

	estimate, err := e.WaitlistEstimate(context.Background(), 4, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, estimate.EstimatedMinutes)
}

func TestRoundUpTo5(t *testing.T) {
	assert.Equal(t, 5, roundUpTo5(1))
	assert.Equal(t, 5, roundUpTo5(5))
	assert.Equal(t, 10, roundUpTo5(6))
	assert.Equal(t, 30, roundUpTo5(28))
	assert.Equal(t, 30, roundUpTo5(30))
}

func TestWaitlistEstimateStoreFailure(t *testing.T) {
	e := newEstimator(&mockHistoryStore{shouldFailOn: "CurrentlySeated"})

	_, err := e.WaitlistEstimate(context.Background(), 4, 1)
	assert.Error(t, err)
}
