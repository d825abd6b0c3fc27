package waitlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/config"
	"tablebook/internal/logger"
	"tablebook/internal/models"
)

// Mock implementations for testing

type mockWaitlistDB struct {
	entries      map[string]*models.WaitlistEntry
	shouldFailOn string
}

func newMockWaitlistDB() *mockWaitlistDB {
	return &mockWaitlistDB{entries: make(map[string]*models.WaitlistEntry)}
}

func (m *mockWaitlistDB) CreateEntry(ctx context.Context, entry models.WaitlistEntry) error {
	if m.shouldFailOn == "CreateEntry" {
		return errors.New("db down")
	}
	m.entries[entry.ID] = &entry
	return nil
}

func (m *mockWaitlistDB) GetEntryByID(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	entry, exists := m.entries[id]
	if !exists {
		return nil, errors.New("entry not found")
	}
	copied := *entry
	return &copied, nil
}

func (m *mockWaitlistDB) GetActiveEntryByPhone(ctx context.Context, phone string) (*models.WaitlistEntry, error) {
	if m.shouldFailOn == "GetActiveEntryByPhone" {
		return nil, errors.New("db down")
	}
	for _, entry := range m.entries {
		if entry.GuestPhone == phone && entry.Status.IsActive() {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockWaitlistDB) MaxActivePosition(ctx context.Context) (int, error) {
	max := 0
	for _, entry := range m.entries {
		if entry.Status.IsActive() && entry.Position > max {
			max = entry.Position
		}
	}
	return max, nil
}

func (m *mockWaitlistDB) ListActiveEntries(ctx context.Context) ([]models.WaitlistEntry, error) {
	var out []models.WaitlistEntry
	for _, entry := range m.entries {
		if entry.Status.IsActive() {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (m *mockWaitlistDB) TransitionEntry(ctx context.Context, entry models.WaitlistEntry) error {
	if m.shouldFailOn == "TransitionEntry" {
		return errors.New("db down")
	}
	m.entries[entry.ID] = &entry
	return nil
}

type mockEstimator struct {
	estimate   *models.WaitEstimate
	shouldFail bool
	calls      []int // positions requested
}

func (m *mockEstimator) WaitlistEstimate(ctx context.Context, partySize, position int) (*models.WaitEstimate, error) {
	m.calls = append(m.calls, position)
	if m.shouldFail {
		return nil, errors.New("no history")
	}
	return m.estimate, nil
}

type mockReservations struct {
	requests []models.ReservationRequest
	fail     bool
}

func (m *mockReservations) RequestReservation(ctx context.Context, req models.ReservationRequest) (*models.ReservationResponse, error) {
	m.requests = append(m.requests, req)
	if m.fail {
		return nil, errors.New("booking engine down")
	}
	return &models.ReservationResponse{Code: "R-SEATED", Status: models.ResSeated}, nil
}

type mockWaitlistNotifier struct {
	events []string
}

func (m *mockWaitlistNotifier) WaitlistEvent(event string, entry models.WaitlistEntry) error {
	m.events = append(m.events, event)
	return nil
}

func setupManager() (*Manager, *mockWaitlistDB, *mockEstimator, *mockReservations, *mockWaitlistNotifier) {
	db := newMockWaitlistDB()
	est := &mockEstimator{estimate: &models.WaitEstimate{EstimatedMinutes: 25, BasedOn: "turn_times"}}
	reservations := &mockReservations{}
	notifier := &mockWaitlistNotifier{}
	mgr := NewManager(db, est, reservations, notifier, config.DefaultSettings(), logger.NewLogger("test")).
		WithClock(func() time.Time { return time.Date(2026, 9, 11, 18, 30, 0, 0, time.UTC) })
	return mgr, db, est, reservations, notifier
}

func joinRequest(phone string) models.WaitlistJoinRequest {
	return models.WaitlistJoinRequest{
		GuestName:  "Sam Okafor",
		GuestPhone: phone,
		PartySize:  4,
	}
}

func TestJoinAssignsNextPosition(t *testing.T) {
	mgr, db, est, _, notifier := setupManager()
	ctx := context.Background()

	first, err := mgr.Join(ctx, joinRequest("+15550000001"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, 25, first.EstimatedMinutes)

	second, err := mgr.Join(ctx, joinRequest("+15550000002"))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Position)

	// The estimator saw each joiner's own position.
	assert.Equal(t, []int{1, 2}, est.calls)
	assert.Len(t, db.entries, 2)
	assert.Equal(t, []string{"waitlist_joined", "waitlist_joined"}, notifier.events)
}

func TestJoinValidation(t *testing.T) {
	mgr, _, _, _, _ := setupManager()
	ctx := context.Background()

	req := joinRequest("+15550000001")
	req.GuestName = ""
	_, err := mgr.Join(ctx, req)
	assert.ErrorIs(t, err, ErrValidation)

	req = joinRequest("+15550000001")
	req.PartySize = 0
	_, err = mgr.Join(ctx, req)
	assert.ErrorIs(t, err, ErrValidation)

	req = joinRequest("+15550000001")
	req.PartySize = 99
	_, err = mgr.Join(ctx, req)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestJoinRejectsDuplicatePhone(t *testing.T) {
	mgr, _, _, _, _ := setupManager()
	ctx := context.Background()

	_, err := mgr.Join(ctx, joinRequest("+15550000001"))
	require.NoError(t, err)

	_, err = mgr.Join(ctx, joinRequest("+15550000001"))
	assert.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestJoinFallsBackWhenEstimatorFails(t *testing.T) {
	mgr, _, est, _, _ := setupManager()
	est.shouldFail = true

	resp, err := mgr.Join(context.Background(), joinRequest("+15550000001"))
	require.NoError(t, err)
	// Heuristic fallback: position * 15 minutes.
	assert.Equal(t, 15, resp.EstimatedMinutes)
}

func seedEntry(db *mockWaitlistDB, id string, status models.WaitlistStatus, position int) {
	db.entries[id] = &models.WaitlistEntry{
		ID:         id,
		GuestName:  "Sam Okafor",
		GuestPhone: "+1555000" + id,
		PartySize:  4,
		Status:     status,
		Position:   position,
		CreatedAt:  time.Now(),
	}
}

func TestActNotify(t *testing.T) {
	mgr, db, _, _, notifier := setupManager()
	seedEntry(db, "w1", models.WaitWaiting, 1)
	ctx := context.Background()

	updated, err := mgr.Act(ctx, "w1", "notify")
	require.NoError(t, err)
	assert.Equal(t, models.WaitNotified, updated.Status)
	require.NotNil(t, updated.NotifiedAt)
	assert.Contains(t, notifier.events, "waitlist_notified")

	// Notifying twice is invalid.
	_, err = mgr.Act(ctx, "w1", "notify")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestActSeatOpensReservation(t *testing.T) {
	mgr, db, _, reservations, _ := setupManager()
	seedEntry(db, "w1", models.WaitNotified, 1)

	updated, err := mgr.Act(context.Background(), "w1", "seat")
	require.NoError(t, err)
	assert.Equal(t, models.WaitSeated, updated.Status)
	require.NotNil(t, updated.SeatedAt)

	require.Len(t, reservations.requests, 1)
	req := reservations.requests[0]
	assert.Equal(t, string(models.SourceWaitlist), req.Source)
	assert.Equal(t, 4, req.PartySize)
	assert.NotEmpty(t, req.Date)
	assert.NotEmpty(t, req.Time)
}

func TestActSeatSurvivesReservationFailure(t *testing.T) {
	mgr, db, _, reservations, _ := setupManager()
	seedEntry(db, "w1", models.WaitWaiting, 1)
	reservations.fail = true

	// The seating itself still goes through.
	updated, err := mgr.Act(context.Background(), "w1", "seat")
	require.NoError(t, err)
	assert.Equal(t, models.WaitSeated, updated.Status)
}

func TestActGuards(t *testing.T) {
	mgr, db, _, _, _ := setupManager()
	ctx := context.Background()

	seedEntry(db, "w1", models.WaitSeated, 0)
	for _, action := range []string{"notify", "seat", "cancel", "remove"} {
		_, err := mgr.Act(ctx, "w1", action)
		assert.ErrorIs(t, err, ErrInvalidAction, "action %s on seated entry", action)
	}

	seedEntry(db, "w2", models.WaitWaiting, 1)
	_, err := mgr.Act(ctx, "w2", "vaporize")
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = mgr.Act(ctx, "missing", "notify")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActCancelAndRemove(t *testing.T) {
	mgr, db, _, _, _ := setupManager()
	ctx := context.Background()

	seedEntry(db, "w1", models.WaitWaiting, 1)
	updated, err := mgr.Act(ctx, "w1", "cancel")
	require.NoError(t, err)
	assert.Equal(t, models.WaitCancelled, updated.Status)

	seedEntry(db, "w2", models.WaitNotified, 1)
	updated, err = mgr.Act(ctx, "w2", "remove")
	require.NoError(t, err)
	assert.Equal(t, models.WaitLeft, updated.Status)
}

func TestEstimateValidation(t *testing.T) {
	mgr, _, est, _, _ := setupManager()

	_, err := mgr.Estimate(context.Background(), 0, 1)
	assert.ErrorIs(t, err, ErrValidation)

	got, err := mgr.Estimate(context.Background(), 4, 2)
	require.NoError(t, err)
	assert.Equal(t, est.estimate, got)
}
