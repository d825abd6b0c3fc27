package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"tablebook/internal/logger"
)

var (
	ErrProcessor           = errors.New("payment processor error")
	ErrProcessorClientInit = errors.New("failed to initialize payment processor client")
	ErrIntentNotActionable = errors.New("payment intent is not in an actionable state")
)

// Intent is the engine's view of a processor-side payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// AwaitingPayment reports whether the guest has not yet paid, i.e. the
// intent can still be reused or safely cancelled.
func (i *Intent) AwaitingPayment() bool {
	switch i.Status {
	case "requires_payment_method", "requires_confirmation", "requires_action":
		return true
	}
	return false
}

// Funded reports whether the guest's money is attached to the intent:
// authorized and held, or already captured.
func (i *Intent) Funded() bool {
	return i.Status == "requires_capture" || i.Status == "succeeded"
}

// ProcessorClient abstracts the external payment processor.
type ProcessorClient interface {
	CreateIntent(ctx context.Context, amount int64, currency string, manualCapture bool, metadata map[string]string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	CaptureIntent(ctx context.Context, id string, amount int64) (*Intent, error)
	CancelIntent(ctx context.Context, id string) (*Intent, error)
	RefundIntent(ctx context.Context, id string, amount int64) error
}

// StripeProcessor implements ProcessorClient on Stripe payment intents.
// A hold is a manual-capture intent: authorized funds sit uncaptured
// until we capture (charge) or cancel (release) them.
type StripeProcessor struct {
	client *client.API
	log    *logger.Logger
}

func NewStripeProcessor(secretKey string, log *logger.Logger) (*StripeProcessor, error) {
	if secretKey == "" {
		log.Error("STRIPE", "Stripe secret key is not configured")
		return nil, ErrProcessorClientInit
	}
	sc := client.New(secretKey, nil)
	log.Info("STRIPE", "Stripe client initialized")
	return &StripeProcessor{client: sc, log: log}, nil
}

func (p *StripeProcessor) CreateIntent(ctx context.Context, amount int64, currency string, manualCapture bool, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if manualCapture {
		params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	intent, err := p.client.PaymentIntents.New(params)
	if err != nil {
		p.log.Error("STRIPE", fmt.Sprintf("Failed to create payment intent: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	return toIntent(intent), nil
}

func (p *StripeProcessor) GetIntent(ctx context.Context, id string) (*Intent, error) {
	intent, err := p.client.PaymentIntents.Get(id, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		p.log.Error("STRIPE", fmt.Sprintf("Failed to retrieve payment intent %s: %v", id, err))
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	return toIntent(intent), nil
}

func (p *StripeProcessor) CaptureIntent(ctx context.Context, id string, amount int64) (*Intent, error) {
	params := &stripe.PaymentIntentCaptureParams{
		Params: stripe.Params{Context: ctx},
	}
	if amount > 0 {
		params.AmountToCapture = stripe.Int64(amount)
	}
	intent, err := p.client.PaymentIntents.Capture(id, params)
	if err != nil {
		p.log.Error("STRIPE", fmt.Sprintf("Failed to capture payment intent %s: %v", id, err))
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	return toIntent(intent), nil
}

func (p *StripeProcessor) CancelIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentCancelParams{
		Params:             stripe.Params{Context: ctx},
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)),
	}
	intent, err := p.client.PaymentIntents.Cancel(id, params)
	if err != nil {
		p.log.Error("STRIPE", fmt.Sprintf("Failed to cancel payment intent %s: %v", id, err))
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	return toIntent(intent), nil
}

func (p *StripeProcessor) RefundIntent(ctx context.Context, id string, amount int64) error {
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(id),
	}
	if amount > 0 {
		params.Amount = stripe.Int64(amount)
	}
	if _, err := p.client.Refunds.New(params); err != nil {
		p.log.Error("STRIPE", fmt.Sprintf("Failed to refund payment intent %s: %v", id, err))
		return fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	return nil
}

func toIntent(intent *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
	}
}
