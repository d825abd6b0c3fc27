package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tablebook/internal/config"
	"tablebook/internal/logger"
	"tablebook/internal/models"
)

var (
	ErrDuplicateEntry = errors.New("guest is already on the waitlist")
	ErrNotFound       = errors.New("waitlist entry not found")
	ErrInvalidAction  = errors.New("invalid waitlist action")
	ErrValidation     = errors.New("invalid waitlist request")
)

type DBLayer interface {
	CreateEntry(ctx context.Context, entry models.WaitlistEntry) error
	GetEntryByID(ctx context.Context, id string) (*models.WaitlistEntry, error)
	GetActiveEntryByPhone(ctx context.Context, phone string) (*models.WaitlistEntry, error)
	MaxActivePosition(ctx context.Context) (int, error)
	ListActiveEntries(ctx context.Context) ([]models.WaitlistEntry, error)
	TransitionEntry(ctx context.Context, entry models.WaitlistEntry) error
}

// ReservationCreator is the single bridge from the waitlist into the
// reservation lifecycle: seating an entry may open a seated reservation.
type ReservationCreator interface {
	RequestReservation(ctx context.Context, req models.ReservationRequest) (*models.ReservationResponse, error)
}

type WaitEstimator interface {
	WaitlistEstimate(ctx context.Context, partySize, position int) (*models.WaitEstimate, error)
}

type Notifier interface {
	WaitlistEvent(event string, entry models.WaitlistEntry) error
}

type Manager struct {
	DB           DBLayer
	Estimator    WaitEstimator
	Reservations ReservationCreator
	Notifier     Notifier
	Settings     *config.BookingSettings

	logger *logger.Logger
	now    func() time.Time
}

func NewManager(db DBLayer, est WaitEstimator, reservations ReservationCreator, notifier Notifier, settings *config.BookingSettings, log *logger.Logger) *Manager {
	return &Manager{
		DB:           db,
		Estimator:    est,
		Reservations: reservations,
		Notifier:     notifier,
		Settings:     settings,
		logger:       log,
		now:          time.Now,
	}
}

// WithClock replaces the wall clock, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Join adds a guest to the standby line at the next position.
func (m *Manager) Join(ctx context.Context, req models.WaitlistJoinRequest) (*models.WaitlistJoinResponse, error) {
	if req.GuestName == "" || req.GuestPhone == "" {
		return nil, fmt.Errorf("%w: guest name and phone are required", ErrValidation)
	}
	if req.PartySize < 1 || req.PartySize > m.Settings.MaxPartySize {
		return nil, fmt.Errorf("%w: party size out of bounds", ErrValidation)
	}

	existing, err := m.DB.GetActiveEntryByPhone(ctx, req.GuestPhone)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEntry
	}

	maxPos, err := m.DB.MaxActivePosition(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find queue tail: %w", err)
	}
	position := maxPos + 1

	estimate, err := m.Estimator.WaitlistEstimate(ctx, req.PartySize, position)
	if err != nil {
		m.logger.Warn("WAITLIST", fmt.Sprintf("Wait estimate failed for %s: %v", req.GuestPhone, err))
		estimate = &models.WaitEstimate{EstimatedMinutes: position * 15, BasedOn: "heuristic"}
	}

	entry := models.WaitlistEntry{
		ID:            uuid.NewString(),
		GuestName:     req.GuestName,
		GuestPhone:    req.GuestPhone,
		PartySize:     req.PartySize,
		Status:        models.WaitWaiting,
		Position:      position,
		EstimatedWait: estimate.EstimatedMinutes,
		CreatedAt:     m.now(),
	}
	if err := m.DB.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to join waitlist: %w", err)
	}

	m.logger.LogWaitlist("JOIN", entry.ID, fmt.Sprintf("party of %d at position %d (~%d min)", entry.PartySize, position, entry.EstimatedWait))
	m.notify("waitlist_joined", entry)

	return &models.WaitlistJoinResponse{
		ID:               entry.ID,
		Position:         position,
		EstimatedMinutes: entry.EstimatedWait,
	}, nil
}

// Act applies a waitlist action: notify, seat, cancel or remove. Every
// departure from the active set renumbers the remaining entries.
func (m *Manager) Act(ctx context.Context, id, action string) (*models.WaitlistEntry, error) {
	entry, err := m.DB.GetEntryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := m.now()
	updated := *entry

	switch action {
	case "notify":
		if entry.Status != models.WaitWaiting {
			return nil, fmt.Errorf("%w: cannot notify a %s entry", ErrInvalidAction, entry.Status)
		}
		updated.Status = models.WaitNotified
		updated.NotifiedAt = &now
	case "seat":
		if !entry.Status.IsActive() {
			return nil, fmt.Errorf("%w: cannot seat a %s entry", ErrInvalidAction, entry.Status)
		}
		updated.Status = models.WaitSeated
		updated.SeatedAt = &now
	case "cancel":
		if !entry.Status.IsActive() {
			return nil, fmt.Errorf("%w: cannot cancel a %s entry", ErrInvalidAction, entry.Status)
		}
		updated.Status = models.WaitCancelled
	case "remove":
		if !entry.Status.IsActive() {
			return nil, fmt.Errorf("%w: cannot remove a %s entry", ErrInvalidAction, entry.Status)
		}
		updated.Status = models.WaitLeft
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	if err := m.DB.TransitionEntry(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to apply %s on entry %s: %w", action, id, err)
	}

	m.logger.LogWaitlist(action, id, fmt.Sprintf("%s -> %s", entry.Status, updated.Status))
	m.notify("waitlist_"+string(updated.Status), updated)

	// Seating opens a reservation so the visit flows through the normal
	// lifecycle (turn-time history, guest stats).
	if action == "seat" && m.Reservations != nil {
		loc := m.Settings.Location()
		_, err := m.Reservations.RequestReservation(ctx, models.ReservationRequest{
			GuestName:  entry.GuestName,
			GuestPhone: entry.GuestPhone,
			PartySize:  entry.PartySize,
			Date:       now.In(loc).Format("2006-01-02"),
			Time:       now.In(loc).Format("15:04"),
			Source:     string(models.SourceWaitlist),
		})
		if err != nil {
			m.logger.Warn("WAITLIST", fmt.Sprintf("Failed to open reservation for seated entry %s: %v", id, err))
		}
	}

	return &updated, nil
}

// Estimate returns the predicted wait for a party size and position
// without joining.
func (m *Manager) Estimate(ctx context.Context, partySize, position int) (*models.WaitEstimate, error) {
	if partySize < 1 {
		return nil, fmt.Errorf("%w: party size must be positive", ErrValidation)
	}
	return m.Estimator.WaitlistEstimate(ctx, partySize, position)
}

func (m *Manager) notify(event string, entry models.WaitlistEntry) {
	if m.Notifier == nil {
		return
	}
	if err := m.Notifier.WaitlistEvent(event, entry); err != nil {
		m.logger.Warn("NOTIFY", fmt.Sprintf("Waitlist notification failed for %s (%s): %v", entry.ID, event, err))
	}
}
