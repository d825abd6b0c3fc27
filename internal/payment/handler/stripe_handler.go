package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"tablebook/internal/config"
	"tablebook/internal/deposit"
	"tablebook/internal/logger"
	"tablebook/internal/models"
	"tablebook/internal/payment"
	"tablebook/internal/utils"
)

// ReservationAccess is the slice of the reservation service the payment
// API needs: lookups for verification and the confirm hook for paid
// deposits.
type ReservationAccess interface {
	GetReservationByID(ctx context.Context, id string) (*models.Reservation, error)
	ConfirmFromPayment(ctx context.Context, reservationID string) error
}

type StripeHandler struct {
	orchestrator  *payment.Orchestrator
	reservations  ReservationAccess
	settings      *config.BookingSettings
	webhookSecret string
	logger        *logger.Logger
}

func NewStripeHandler(orchestrator *payment.Orchestrator, reservations ReservationAccess, settings *config.BookingSettings, webhookSecret string, log *logger.Logger) *StripeHandler {
	return &StripeHandler{
		orchestrator:  orchestrator,
		reservations:  reservations,
		settings:      settings,
		webhookSecret: webhookSecret,
		logger:        log,
	}
}

// CreatePaymentIntent verifies the guest against the reservation (short
// code + phone last four) and hands back the processor client secret.
func (h *StripeHandler) CreatePaymentIntent(c *gin.Context) {
	var req models.PaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	res, err := h.reservations.GetReservationByID(c.Request.Context(), req.ReservationID)
	if err != nil {
		c.JSON(http.StatusNotFound, utils.ErrorResponse("Reservation not found", err.Error()))
		return
	}

	if !verifyGuest(res, req.Code, req.PhoneLast4) {
		h.logger.Warn("PAYMENT", fmt.Sprintf("Verification failed for reservation %s", req.ReservationID))
		c.JSON(http.StatusForbidden, utils.ErrorResponse("Verification failed", payment.ErrVerificationFailed.Error()))
		return
	}

	// Re-evaluate the deposit policy rather than trusting the amount
	// stored at request time.
	info := deposit.Evaluate(h.settings, res.Date, res.PartySize)
	if !info.Required {
		c.JSON(http.StatusConflict, utils.ErrorResponse("No deposit required", "deposit policy does not require a payment for this reservation"))
		return
	}

	resp, err := h.orchestrator.CreateHold(c.Request.Context(), res, info.Amount, info.Type)
	if err != nil {
		if errors.Is(err, payment.ErrAlreadyProcessed) {
			c.JSON(http.StatusConflict, utils.ErrorResponse("Already processed", err.Error()))
			return
		}
		c.JSON(http.StatusBadGateway, utils.ErrorResponse("Payment processor error", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment intent ready", resp))
}

// verifyGuest matches the supplied code and phone suffix against the
// reservation. Comparison is case-insensitive on the code.
func verifyGuest(res *models.Reservation, code, phoneLast4 string) bool {
	if !strings.EqualFold(res.Code, code) {
		return false
	}
	digits := digitsOnly(res.GuestPhone)
	if len(digits) < 4 || len(phoneLast4) != 4 {
		return false
	}
	return digits[len(digits)-4:] == phoneLast4
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HandleWebhook processes Stripe events: intent authorization, capture
// and cancellation reconcile the local payment, and a paid deposit
// confirms an approved reservation.
func (h *StripeHandler) HandleWebhook(c *gin.Context) {
	if h.webhookSecret == "" {
		h.logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Webhook processing error", "not configured"))
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid webhook payload", err.Error()))
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Error("WEBHOOK", fmt.Sprintf("Signature verification failed: %v", err))
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid webhook signature", err.Error()))
		return
	}

	h.logger.Info("WEBHOOK", fmt.Sprintf("Processing Stripe event: %s", event.Type))

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.amount_capturable_updated", "payment_intent.canceled":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid event data", err.Error()))
			return
		}
		p, err := h.orchestrator.HandleIntentStatus(c.Request.Context(), intent.ID, string(intent.Status))
		if err != nil {
			h.logger.Error("WEBHOOK", fmt.Sprintf("Failed to reconcile intent %s: %v", intent.ID, err))
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to process event", err.Error()))
			return
		}

		// A funded hold or captured deposit confirms the reservation
		// once staff have approved it.
		funded := intent.Status == stripe.PaymentIntentStatusSucceeded ||
			intent.Status == stripe.PaymentIntentStatusRequiresCapture
		if p != nil && funded {
			if err := h.reservations.ConfirmFromPayment(c.Request.Context(), p.ReservationID); err != nil {
				h.logger.Warn("WEBHOOK", fmt.Sprintf("Confirm after payment failed for %s: %v", p.ReservationID, err))
			}
		}

	default:
		h.logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
