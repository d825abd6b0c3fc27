package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/logger"
	"tablebook/internal/models"
	"tablebook/internal/payment/storage"
	"tablebook/internal/utils"
)

var (
	ErrAlreadyProcessed   = errors.New("payment has already been processed")
	ErrVerificationFailed = errors.New("reservation verification failed")
	ErrNoPayment          = errors.New("no payment on file for reservation")
)

// Orchestrator moves money in lock-step with reservation transitions.
// Processor calls happen first; local status changes only after the
// processor reflects the desired state, and retries reconcile instead
// of erroring.
type Orchestrator struct {
	Store     storage.Store
	Processor ProcessorClient
	Settings  *config.BookingSettings

	logger *logger.Logger
	now    func() time.Time
}

func NewOrchestrator(store storage.Store, processor ProcessorClient, settings *config.BookingSettings, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		Store:     store,
		Processor: processor,
		Settings:  settings,
		logger:    log,
		now:       time.Now,
	}
}

// CreateHold creates (or reuses) the processor intent backing a
// reservation's deposit or hold and returns the client secret the guest
// widget needs. An existing pending intent with the same amount and type
// that is still awaiting payment is reused; a stale one is cancelled and
// replaced. A settled payment, or an intent the guest already funded,
// refuses with ErrAlreadyProcessed (the funded intent is reconciled
// first).
func (o *Orchestrator) CreateHold(ctx context.Context, res *models.Reservation, amount int64, typ models.PaymentType) (*models.PaymentIntentResponse, error) {
	currency := o.Settings.Deposit.Currency
	manualCapture := typ == models.PaymentHold

	existing, err := o.Store.GetPaymentByReservation(ctx, res.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment for %s: %w", res.ID, err)
	}

	if existing != nil && existing.Status != models.PayCancelled {
		if existing.Status != models.PayPending {
			return nil, ErrAlreadyProcessed
		}

		intent, err := o.Processor.GetIntent(ctx, existing.IntentID)
		if err == nil && intent.Funded() {
			// The guest already authorized this intent and the webhook
			// has not landed yet. Reconcile the record and refuse a
			// second authorization rather than orphaning held funds.
			if _, recErr := o.HandleIntentStatus(ctx, existing.IntentID, intent.Status); recErr != nil {
				return nil, recErr
			}
			return nil, ErrAlreadyProcessed
		}
		if err == nil && intent.AwaitingPayment() && existing.Amount == amount && existing.Type == typ {
			o.logger.LogPayment("REUSE", existing.PaymentID, fmt.Sprintf("Reusing intent %s for reservation %s", intent.ID, res.Code))
			return &models.PaymentIntentResponse{ClientSecret: intent.ClientSecret, Amount: amount, Currency: currency}, nil
		}

		// Stale intent: cancel processor-side when it still can be, then
		// supersede the record with a fresh intent.
		if err == nil && intent.AwaitingPayment() {
			if _, cancelErr := o.Processor.CancelIntent(ctx, existing.IntentID); cancelErr != nil {
				o.logger.Warn("PAYMENT", fmt.Sprintf("Failed to cancel stale intent %s: %v", existing.IntentID, cancelErr))
			}
		}

		fresh, err := o.Processor.CreateIntent(ctx, amount, currency, manualCapture, intentMetadata(res))
		if err != nil {
			return nil, err
		}
		existing.IntentID = fresh.ID
		existing.Amount = amount
		existing.Type = typ
		if err := o.Store.UpdatePayment(ctx, *existing); err != nil {
			return nil, fmt.Errorf("failed to supersede payment %s: %w", existing.PaymentID, err)
		}
		o.logger.LogPayment("SUPERSEDE", existing.PaymentID, fmt.Sprintf("New intent %s for reservation %s", fresh.ID, res.Code))
		return &models.PaymentIntentResponse{ClientSecret: fresh.ClientSecret, Amount: amount, Currency: currency}, nil
	}

	intent, err := o.Processor.CreateIntent(ctx, amount, currency, manualCapture, intentMetadata(res))
	if err != nil {
		return nil, err
	}

	p := models.Payment{
		PaymentID:     utils.GeneratePaymentID(),
		ReservationID: res.ID,
		Type:          typ,
		Status:        models.PayPending,
		Amount:        amount,
		Currency:      currency,
		IntentID:      intent.ID,
		CreatedAt:     o.now(),
	}
	if err := o.Store.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to record payment for %s: %w", res.ID, err)
	}

	o.logger.LogPayment("CREATE", p.PaymentID, fmt.Sprintf("%s of %d %s for reservation %s (intent %s)", typ, amount, currency, res.Code, intent.ID))
	return &models.PaymentIntentResponse{ClientSecret: intent.ClientSecret, Amount: amount, Currency: currency}, nil
}

// Capture charges the held funds in full.
func (o *Orchestrator) Capture(ctx context.Context, reservationID string) (*models.Payment, error) {
	p, err := o.requirePayment(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.PayCaptured {
		return p, nil
	}
	if !p.Status.CanBecome(models.PayCaptured) {
		return nil, fmt.Errorf("%w: cannot capture a %s payment", ErrAlreadyProcessed, p.Status)
	}

	intent, err := o.Processor.GetIntent(ctx, p.IntentID)
	if err != nil {
		return nil, err
	}
	switch intent.Status {
	case "succeeded":
		// Processor already captured; reconcile.
	case "requires_capture":
		if _, err := o.Processor.CaptureIntent(ctx, p.IntentID, 0); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: intent %s is %s", ErrIntentNotActionable, p.IntentID, intent.Status)
	}

	p.Status = models.PayCaptured
	if err := o.Store.UpdatePayment(ctx, *p); err != nil {
		return nil, err
	}
	o.logger.LogPayment("CAPTURE", p.PaymentID, fmt.Sprintf("Captured %d %s", p.Amount, p.Currency))
	return p, nil
}

// ReleaseHold cancels the processor intent and returns the payment
// marked released without persisting it, so the caller can commit the
// status change inside the reservation transition.
func (o *Orchestrator) ReleaseHold(ctx context.Context, reservationID string) (*models.Payment, error) {
	p, err := o.requirePayment(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.PayReleased {
		return p, nil
	}
	if !p.Status.CanBecome(models.PayReleased) {
		return nil, fmt.Errorf("%w: cannot release a %s payment", ErrAlreadyProcessed, p.Status)
	}

	intent, err := o.Processor.GetIntent(ctx, p.IntentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != "canceled" {
		if _, err := o.Processor.CancelIntent(ctx, p.IntentID); err != nil {
			return nil, err
		}
	}

	p.Status = models.PayReleased
	o.logger.LogPayment("RELEASE", p.PaymentID, "Hold released")
	return p, nil
}

// Release cancels the intent and persists the released status.
func (o *Orchestrator) Release(ctx context.Context, reservationID string) (*models.Payment, error) {
	p, err := o.ReleaseHold(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if err := o.Store.UpdatePayment(ctx, *p); err != nil {
		return nil, err
	}
	return p, nil
}

// Refund returns captured funds, partially when amount is positive.
func (o *Orchestrator) Refund(ctx context.Context, reservationID string, amount int64) (*models.Payment, error) {
	p, err := o.requirePayment(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.PayRefunded {
		return p, nil
	}
	if !p.Status.CanBecome(models.PayRefunded) {
		return nil, fmt.Errorf("%w: cannot refund a %s payment", ErrAlreadyProcessed, p.Status)
	}

	if err := o.Processor.RefundIntent(ctx, p.IntentID, amount); err != nil {
		return nil, err
	}

	p.Status = models.PayRefunded
	if err := o.Store.UpdatePayment(ctx, *p); err != nil {
		return nil, err
	}
	o.logger.LogPayment("REFUND", p.PaymentID, fmt.Sprintf("Refunded %d of %d %s", amount, p.Amount, p.Currency))
	return p, nil
}

// ChargeNoShow attempts to charge the held funds up to the configured
// no-show amount. It never returns an error: the result reports what
// happened, and a nil payment means nothing needs persisting.
func (o *Orchestrator) ChargeNoShow(ctx context.Context, res *models.Reservation) (models.NoShowChargeResult, *models.Payment) {
	p, err := o.Store.GetPaymentByReservation(ctx, res.ID)
	if err != nil {
		o.logger.Error("PAYMENT", fmt.Sprintf("No-show charge lookup failed for %s: %v", res.Code, err))
		return models.NoShowChargeResult{Reason: "payment lookup failed"}, nil
	}
	if p == nil {
		return models.NoShowChargeResult{Reason: "no payment on file"}, nil
	}
	if p.Status == models.PayCaptured {
		return models.NoShowChargeResult{Charged: true, Amount: p.Amount, Reason: "already captured"}, nil
	}
	if p.Status != models.PayPending {
		return models.NoShowChargeResult{Reason: fmt.Sprintf("payment is %s", p.Status)}, nil
	}

	intent, err := o.Processor.GetIntent(ctx, p.IntentID)
	if err != nil {
		o.logger.Error("PAYMENT", fmt.Sprintf("No-show charge intent lookup failed for %s: %v", res.Code, err))
		return models.NoShowChargeResult{Reason: "processor unavailable"}, nil
	}

	switch intent.Status {
	case "succeeded":
		// Funds were already captured processor-side; reconcile.
		p.Status = models.PayCaptured
		return models.NoShowChargeResult{Charged: true, Amount: p.Amount}, p
	case "requires_capture":
		amount := p.Amount
		if o.Settings.NoShow.Amount > 0 && o.Settings.NoShow.Amount < amount {
			amount = o.Settings.NoShow.Amount
		}
		if _, err := o.Processor.CaptureIntent(ctx, p.IntentID, amount); err != nil {
			o.logger.Error("PAYMENT", fmt.Sprintf("No-show capture failed for %s: %v", res.Code, err))
			return models.NoShowChargeResult{Reason: "capture failed"}, nil
		}
		p.Status = models.PayCaptured
		o.logger.LogPayment("NOSHOW", p.PaymentID, fmt.Sprintf("Charged %d %s for no-show on %s", amount, p.Currency, res.Code))
		return models.NoShowChargeResult{Charged: true, Amount: amount}, p
	default:
		return models.NoShowChargeResult{Reason: "hold was never authorized"}, nil
	}
}

// GetPayment returns the reservation's payment record, nil when none.
func (o *Orchestrator) GetPayment(ctx context.Context, reservationID string) (*models.Payment, error) {
	return o.Store.GetPaymentByReservation(ctx, reservationID)
}

// HandleIntentStatus reconciles a processor status change (webhook)
// into the local record, never moving a status backwards. Returns the
// updated payment, or nil when nothing matched or changed.
func (o *Orchestrator) HandleIntentStatus(ctx context.Context, intentID, intentStatus string) (*models.Payment, error) {
	p, err := o.Store.GetPaymentByIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	var next models.PaymentStatus
	switch intentStatus {
	case "succeeded":
		next = models.PayCaptured
	case "canceled":
		if p.Type == models.PaymentHold {
			next = models.PayReleased
		} else {
			next = models.PayCancelled
		}
	case "requires_capture":
		// Hold authorized; locally that is still pending.
		return p, nil
	default:
		return nil, nil
	}

	if p.Status == next {
		return p, nil
	}
	if !p.Status.CanBecome(next) {
		o.logger.Warn("PAYMENT", fmt.Sprintf("Ignoring regressive intent status %s for payment %s (%s)", intentStatus, p.PaymentID, p.Status))
		return p, nil
	}

	p.Status = next
	if err := o.Store.UpdatePayment(ctx, *p); err != nil {
		return nil, err
	}
	o.logger.LogPayment("RECONCILE", p.PaymentID, fmt.Sprintf("Intent %s is %s", intentID, intentStatus))
	return p, nil
}

func (o *Orchestrator) requirePayment(ctx context.Context, reservationID string) (*models.Payment, error) {
	p, err := o.Store.GetPaymentByReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment for %s: %w", reservationID, err)
	}
	if p == nil {
		return nil, ErrNoPayment
	}
	return p, nil
}

func intentMetadata(res *models.Reservation) map[string]string {
	return map[string]string{
		"reservation_id": res.ID,
		"code":           res.Code,
	}
}
