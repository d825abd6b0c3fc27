package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tablebook/internal/config"
	"tablebook/internal/deposit"
	"tablebook/internal/logger"
	"tablebook/internal/models"
	resdb "tablebook/internal/reservation/db"
	"tablebook/internal/schedule"
	"tablebook/internal/utils"
)

// counterOfferWindow is how long a guest has to accept a proposed
// alternate time.
const counterOfferWindow = 2 * time.Hour

type DBLayer interface {
	CreateReservation(ctx context.Context, res models.Reservation) error
	GetReservationByID(ctx context.Context, id string) (*models.Reservation, error)
	GetReservationByCode(ctx context.Context, code string) (*models.Reservation, error)
	HasActiveDuplicate(ctx context.Context, phone, date, timeOfDay string) (bool, error)
	TransitionReservation(ctx context.Context, res models.Reservation, payment *models.Payment, refreshStats bool) error
	ExpireCounterOffers(ctx context.Context, now time.Time) (int, error)
}

type DedupeLock interface {
	LockRequest(ctx context.Context, phone, date, timeOfDay string) (bool, error)
	UnlockRequest(ctx context.Context, phone, date, timeOfDay string) error
}

// PaymentManager is the slice of the payment orchestrator the lifecycle
// needs. ReleaseHold and ChargeNoShow talk to the processor and hand
// back the payment with its new status; the service persists it inside
// the transition transaction.
type PaymentManager interface {
	GetPayment(ctx context.Context, reservationID string) (*models.Payment, error)
	ReleaseHold(ctx context.Context, reservationID string) (*models.Payment, error)
	ChargeNoShow(ctx context.Context, res *models.Reservation) (models.NoShowChargeResult, *models.Payment)
}

// Notifier dispatches guest notifications after a transition commits.
// Failures are the notifier's problem: they are logged, never propagated.
type Notifier interface {
	ReservationEvent(event string, res models.Reservation) error
	NoShowCharged(res models.Reservation, amount int64) error
}

type Service struct {
	DB       DBLayer
	Lock     DedupeLock
	Payments PaymentManager
	Notifier Notifier
	Resolver *schedule.Resolver
	Settings *config.BookingSettings

	logger *logger.Logger
	now    func() time.Time
}

func NewService(db DBLayer, lock DedupeLock, payments PaymentManager, notifier Notifier, resolver *schedule.Resolver, settings *config.BookingSettings, log *logger.Logger) *Service {
	return &Service{
		DB:       db,
		Lock:     lock,
		Payments: payments,
		Notifier: notifier,
		Resolver: resolver,
		Settings: settings,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetAvailability returns the slot list and deposit requirement for a
// date and party size.
func (s *Service) GetAvailability(ctx context.Context, date string, partySize int) (*models.AvailabilityResponse, error) {
	if partySize < 1 || partySize > s.Settings.MaxPartySize {
		return nil, ErrInvalidPartySize
	}

	slots, duration, err := s.Resolver.SlotsFor(ctx, date, partySize)
	if err != nil {
		return nil, err
	}

	return &models.AvailabilityResponse{
		Date:        date,
		PartySize:   partySize,
		DurationMin: duration,
		Slots:       slots,
		Deposit:     deposit.Evaluate(s.Settings, date, partySize),
	}, nil
}

// RequestReservation validates and persists an inbound booking request.
func (s *Service) RequestReservation(ctx context.Context, req models.ReservationRequest) (*models.ReservationResponse, error) {
	if req.GuestName == "" || req.GuestPhone == "" || req.Date == "" || req.Time == "" {
		return nil, fmt.Errorf("%w: guest name, phone, date and time are required", ErrValidation)
	}
	if req.PartySize < 1 || req.PartySize > s.Settings.MaxPartySize {
		return nil, ErrInvalidPartySize
	}

	// Serialize concurrent requests for the same guest/slot.
	locked, err := s.Lock.LockRequest(ctx, req.GuestPhone, req.Date, req.Time)
	if err != nil {
		return nil, fmt.Errorf("request lock error: %w", err)
	}
	if !locked {
		return nil, ErrDuplicateRequest
	}
	defer func() {
		if err := s.Lock.UnlockRequest(ctx, req.GuestPhone, req.Date, req.Time); err != nil {
			s.logger.Warn("RESERVATION", fmt.Sprintf("Failed to release request lock for %s: %v", req.GuestPhone, err))
		}
	}()

	dup, err := s.DB.HasActiveDuplicate(ctx, req.GuestPhone, req.Date, req.Time)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	if dup {
		return nil, ErrDuplicateRequest
	}

	// Walk-ins and waitlist seatings happen now rather than on the slot
	// grid, so only future-dated requests validate against it.
	var duration int
	switch models.ReservationSource(req.Source) {
	case models.SourceWalkIn, models.SourceWaitlist:
		duration = s.Settings.DurationFor(req.PartySize)
	default:
		duration, err = s.Resolver.ValidateSlot(ctx, req.Date, req.Time, req.PartySize)
		if err != nil {
			return nil, err
		}
	}
	endTime, err := schedule.EndTimeFor(req.Time, duration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	depositInfo := deposit.Evaluate(s.Settings, req.Date, req.PartySize)
	now := s.now()

	res := models.Reservation{
		ID:              uuid.NewString(),
		Code:            utils.GenerateReservationCode(),
		GuestName:       req.GuestName,
		GuestPhone:      req.GuestPhone,
		GuestEmail:      req.GuestEmail,
		PartySize:       req.PartySize,
		Date:            req.Date,
		Time:            req.Time,
		EndTime:         endTime,
		DurationMin:     duration,
		Status:          models.ResPending,
		Source:          models.SourceWidget,
		DepositRequired: depositInfo.Required,
		DepositAmount:   depositInfo.Amount,
		CreatedAt:       now,
	}

	// Staff-entered reservations skip the approval queue; walk-ins are
	// seated immediately.
	switch models.ReservationSource(req.Source) {
	case models.SourceStaff:
		res.Source = models.SourceStaff
		res.Status = models.ResApproved
		res.ApprovedAt = &now
	case models.SourceWalkIn:
		res.Source = models.SourceWalkIn
		res.Status = models.ResSeated
		res.SeatedAt = &now
	case models.SourceWaitlist:
		res.Source = models.SourceWaitlist
		res.Status = models.ResSeated
		res.SeatedAt = &now
	}

	if err := s.DB.CreateReservation(ctx, res); err != nil {
		// The unique active-slot index caught a race the lock missed.
		if errors.Is(err, resdb.ErrDuplicateSlot) {
			return nil, ErrDuplicateRequest
		}
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	s.logger.LogReservation("REQUEST", res.Code, fmt.Sprintf("party of %d on %s %s (%s)", res.PartySize, res.Date, res.Time, res.Status))
	s.notify("reservation_requested", res)

	return &models.ReservationResponse{
		Code:            res.Code,
		Status:          res.Status,
		DepositRequired: res.DepositRequired,
		DepositAmount:   res.DepositAmount,
	}, nil
}

// ActOnReservation drives the lifecycle state machine. Guard violations
// return InvalidTransitionError and leave the record untouched.
func (s *Service) ActOnReservation(ctx context.Context, id string, req models.ActionRequest) (*models.Reservation, error) {
	res, err := s.DB.GetReservationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	action := Action(req.Action)
	if err := CheckTransition(action, res.Status); err != nil {
		return nil, err
	}

	now := s.now()
	updated := *res
	updated.Status = Target(action)

	var payment *models.Payment
	refreshStats := false
	var chargeResult *models.NoShowChargeResult

	switch action {
	case ActionApprove:
		// A lapsed counter offer cannot be accepted while it waits for
		// the expiry sweep.
		if res.Status == models.ResCounterOffered && res.CounterExpires != nil && !now.Before(*res.CounterExpires) {
			return nil, ErrCounterExpired
		}
		updated.ApprovedAt = &now
		if req.TableID != "" {
			updated.TableID = req.TableID
		}
	case ActionDecline:
		// No extra fields.
	case ActionCounter:
		if req.NewTime == "" {
			return nil, fmt.Errorf("%w: counter requires a proposed time", ErrValidation)
		}
		endTime, err := schedule.EndTimeFor(req.NewTime, updated.DurationMin)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		updated.OriginalTime = updated.Time
		updated.Time = req.NewTime
		updated.EndTime = endTime
		expires := now.Add(counterOfferWindow)
		updated.CounterExpires = &expires
	case ActionArrive:
		updated.ArrivedAt = &now
	case ActionSeat:
		updated.SeatedAt = &now
		if req.TableID != "" {
			updated.TableID = req.TableID
		}
	case ActionComplete:
		updated.CompletedAt = &now
		refreshStats = true
		payment, err = s.releasePendingHold(ctx, res.ID)
		if err != nil {
			return nil, err
		}
	case ActionNoShow:
		refreshStats = true
		if s.Settings.NoShow.ChargeEnabled {
			result, charged := s.Payments.ChargeNoShow(ctx, res)
			chargeResult = &result
			payment = charged
		}
	case ActionCancel:
		updated.CancelledAt = &now
	}

	if err := s.DB.TransitionReservation(ctx, updated, payment, refreshStats); err != nil {
		return nil, fmt.Errorf("failed to apply %s on reservation %s: %w", action, res.Code, err)
	}

	s.logger.LogReservation(string(action), res.Code, fmt.Sprintf("%s -> %s", res.Status, updated.Status))
	s.notify("reservation_"+string(updated.Status), updated)
	if chargeResult != nil && chargeResult.Charged {
		if err := s.Notifier.NoShowCharged(updated, chargeResult.Amount); err != nil {
			s.logger.Warn("NOTIFY", fmt.Sprintf("No-show charge notification failed for %s: %v", res.Code, err))
		}
	}

	return &updated, nil
}

// releasePendingHold returns the reservation's hold payment marked
// released when one is still pending on the processor, nil otherwise.
func (s *Service) releasePendingHold(ctx context.Context, reservationID string) (*models.Payment, error) {
	payment, err := s.Payments.GetPayment(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment for %s: %w", reservationID, err)
	}
	if payment == nil || payment.Type != models.PaymentHold || payment.Status != models.PayPending {
		return nil, nil
	}
	released, err := s.Payments.ReleaseHold(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to release hold for %s: %w", reservationID, err)
	}
	return released, nil
}

// GetReservationByID fetches a reservation by internal id.
func (s *Service) GetReservationByID(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.DB.GetReservationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return res, nil
}

// ConfirmFromPayment moves an approved reservation to confirmed once its
// deposit or hold is funded. Other statuses are left alone: a pending
// request still needs staff approval, and terminal states never move.
func (s *Service) ConfirmFromPayment(ctx context.Context, reservationID string) error {
	res, err := s.DB.GetReservationByID(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, reservationID)
	}
	if res.Status != models.ResApproved {
		return nil
	}

	updated := *res
	updated.Status = models.ResConfirmed
	if err := s.DB.TransitionReservation(ctx, updated, nil, false); err != nil {
		return fmt.Errorf("failed to confirm reservation %s: %w", res.Code, err)
	}
	s.logger.LogReservation("CONFIRM", res.Code, "Payment funded, reservation confirmed")
	s.notify("reservation_confirmed", updated)
	return nil
}

// GetByCode fetches a reservation by its short code.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Reservation, error) {
	res, err := s.DB.GetReservationByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return res, nil
}

// ExpireCounterOffers is invoked by an external periodic trigger.
func (s *Service) ExpireCounterOffers(ctx context.Context) (int, error) {
	n, err := s.DB.ExpireCounterOffers(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("RESERVATION", fmt.Sprintf("Expired %d lapsed counter-offers", n))
	}
	return n, nil
}

func (s *Service) notify(event string, res models.Reservation) {
	if err := s.Notifier.ReservationEvent(event, res); err != nil {
		s.logger.Warn("NOTIFY", fmt.Sprintf("Notification dispatch failed for %s (%s): %v", res.Code, event, err))
	}
}
