package guests

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"tablebook/internal/models"
)

// Recompute refreshes the aggregate visit counters for a guest phone
// from the reservations table. It runs on the caller's bun.IDB, so a
// lifecycle transition can include it in its own transaction.
func Recompute(ctx context.Context, db bun.IDB, phone string) error {
	var visits int
	err := db.NewSelect().
		Model((*models.Reservation)(nil)).
		ColumnExpr("count(*)").
		Where("guest_phone = ?", phone).
		Where("status = ?", models.ResCompleted).
		Scan(ctx, &visits)
	if err != nil {
		return fmt.Errorf("failed to count visits for %s: %w", phone, err)
	}

	var noShows int
	err = db.NewSelect().
		Model((*models.Reservation)(nil)).
		ColumnExpr("count(*)").
		Where("guest_phone = ?", phone).
		Where("status = ?", models.ResNoShow).
		Scan(ctx, &noShows)
	if err != nil {
		return fmt.Errorf("failed to count no-shows for %s: %w", phone, err)
	}

	var lastVisit string
	err = db.NewSelect().
		Model((*models.Reservation)(nil)).
		ColumnExpr("coalesce(max(date), '')").
		Where("guest_phone = ?", phone).
		Where("status = ?", models.ResCompleted).
		Scan(ctx, &lastVisit)
	if err != nil {
		return fmt.Errorf("failed to find last visit for %s: %w", phone, err)
	}

	stats := &models.GuestStats{
		Phone:       phone,
		Visits:      visits,
		NoShows:     noShows,
		LastVisitAt: lastVisit,
	}
	_, err = db.NewInsert().
		Model(stats).
		On("CONFLICT (phone) DO UPDATE").
		Set("visits = EXCLUDED.visits").
		Set("no_shows = EXCLUDED.no_shows").
		Set("last_visit_at = EXCLUDED.last_visit_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert guest stats for %s: %w", phone, err)
	}
	return nil
}

// Get returns the stored counters for a guest, zero-valued when the
// guest has no history yet.
func Get(ctx context.Context, db bun.IDB, phone string) (*models.GuestStats, error) {
	stats := &models.GuestStats{Phone: phone}
	err := db.NewSelect().
		Model(stats).
		Where("phone = ?", phone).
		Limit(1).
		Scan(ctx)
	if err != nil {
		// No history yet is not an error.
		return &models.GuestStats{Phone: phone}, nil
	}
	return stats, nil
}
