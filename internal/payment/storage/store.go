package storage

import (
	"context"

	"tablebook/internal/models"
)

// Store persists payment records. One payment per reservation; the
// orchestrator supersedes stale records in place rather than inserting
// duplicates.
type Store interface {
	CreatePayment(ctx context.Context, p models.Payment) error
	GetPaymentByReservation(ctx context.Context, reservationID string) (*models.Payment, error)
	GetPaymentByIntent(ctx context.Context, intentID string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, p models.Payment) error
}
