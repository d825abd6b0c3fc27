package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"tablebook/internal/guests"
	"tablebook/internal/models"
)

// ErrDuplicateSlot reports the active-slot unique index firing on
// insert: another active reservation already claims this guest/slot.
// It backstops the redis request lock when two instances race.
var ErrDuplicateSlot = errors.New("active reservation already exists for this guest and slot")

type DB struct {
	Bun *bun.DB
}

// nonTerminalStatuses are the statuses that still hold a claim on a
// date/time (dedupe guard and covers counting).
var nonTerminalStatuses = []string{
	string(models.ResPending),
	string(models.ResCounterOffered),
	string(models.ResApproved),
	string(models.ResConfirmed),
	string(models.ResArrived),
	string(models.ResSeated),
}

// ---------------- RESERVATIONS ----------------

func (d *DB) CreateReservation(ctx context.Context, res models.Reservation) error {
	_, err := d.Bun.NewInsert().Model(&res).Exec(ctx)
	if err != nil && isActiveSlotViolation(err) {
		return ErrDuplicateSlot
	}
	return err
}

func isActiveSlotViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == "uq_reservations_active_slot"
	}
	// sqlite (tests) names the columns instead of the index.
	return strings.Contains(err.Error(), "UNIQUE constraint failed: reservations.guest_phone")
}

func (d *DB) GetReservationByID(ctx context.Context, id string) (*models.Reservation, error) {
	var res models.Reservation
	err := d.Bun.NewSelect().
		Model(&res).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (d *DB) GetReservationByCode(ctx context.Context, code string) (*models.Reservation, error) {
	var res models.Reservation
	err := d.Bun.NewSelect().
		Model(&res).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (d *DB) UpdateReservation(ctx context.Context, res models.Reservation) error {
	res.UpdatedAt = time.Now()
	_, err := d.Bun.NewUpdate().
		Model(&res).
		WherePK().
		Exec(ctx)
	return err
}

// HasActiveDuplicate reports whether the guest already holds a
// non-terminal reservation for the same date and time.
func (d *DB) HasActiveDuplicate(ctx context.Context, phone, date, timeOfDay string) (bool, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.Reservation)(nil)).
		Where("guest_phone = ?", phone).
		Where("date = ?", date).
		Where("time = ?", timeOfDay).
		Where("status IN (?)", bun.In(nonTerminalStatuses)).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// TransitionReservation applies a lifecycle transition atomically: the
// reservation row, an optional payment status change and the guest-stat
// refresh commit together or not at all.
func (d *DB) TransitionReservation(ctx context.Context, res models.Reservation, payment *models.Payment, refreshStats bool) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res.UpdatedAt = time.Now()
		if _, err := tx.NewUpdate().Model(&res).WherePK().Exec(ctx); err != nil {
			return err
		}
		if payment != nil {
			_, err := tx.ExecContext(ctx,
				"UPDATE payments SET status = ?, updated_at = ? WHERE payment_id = ?",
				string(payment.Status), time.Now(), payment.PaymentID)
			if err != nil {
				return err
			}
		}
		if refreshStats {
			if err := guests.Recompute(ctx, tx, res.GuestPhone); err != nil {
				return err
			}
		}
		return nil
	})
}

// ExpireCounterOffers moves counter_offered reservations whose
// acceptance window has lapsed into expired. Returns how many moved.
func (d *DB) ExpireCounterOffers(ctx context.Context, now time.Time) (int, error) {
	result, err := d.Bun.NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("status = ?", models.ResExpired).
		Set("updated_at = ?", now).
		Where("status = ?", models.ResCounterOffered).
		Where("counter_expires < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// ---------------- SCHEDULE DATA ----------------

func (d *DB) GetDayOverride(ctx context.Context, date string) (*models.DayOverride, error) {
	var override models.DayOverride
	err := d.Bun.NewSelect().
		Model(&override).
		Where("date = ?", date).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &override, nil
}

func (d *DB) ListDayOverrides(ctx context.Context, fromDate string) ([]models.DayOverride, error) {
	var overrides []models.DayOverride
	err := d.Bun.NewSelect().
		Model(&overrides).
		Where("date >= ?", fromDate).
		Order("date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return overrides, nil
}

// CountCoversForDate sums party sizes across non-terminal reservations
// for a date, for override capacity caps.
func (d *DB) CountCoversForDate(ctx context.Context, date string) (int, error) {
	var covers int
	err := d.Bun.NewSelect().
		Model((*models.Reservation)(nil)).
		ColumnExpr("coalesce(sum(party_size), 0)").
		Where("date = ?", date).
		Where("status IN (?)", bun.In(nonTerminalStatuses)).
		Scan(ctx, &covers)
	return covers, err
}

// ---------------- ESTIMATOR DATA ----------------

// CompletedSince returns completed reservations seated on or after the
// cutoff, the raw material for turn-time averages.
func (d *DB) CompletedSince(ctx context.Context, since time.Time) ([]models.Reservation, error) {
	var out []models.Reservation
	err := d.Bun.NewSelect().
		Model(&out).
		Where("status = ?", models.ResCompleted).
		Where("seated_at IS NOT NULL").
		Where("completed_at IS NOT NULL").
		Where("seated_at >= ?", since).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CurrentlySeated returns reservations occupying tables right now.
func (d *DB) CurrentlySeated(ctx context.Context) ([]models.Reservation, error) {
	var out []models.Reservation
	err := d.Bun.NewSelect().
		Model(&out).
		Where("status = ?", models.ResSeated).
		Where("seated_at IS NOT NULL").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) ActiveTables(ctx context.Context) ([]models.RestaurantTable, error) {
	var tables []models.RestaurantTable
	err := d.Bun.NewSelect().
		Model(&tables).
		Where("active = ?", true).
		Order("sort_order ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tables, nil
}
