package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"tablebook/internal/models"
)

type DB struct {
	Bun *bun.DB
}

var activeStatuses = []string{
	string(models.WaitWaiting),
	string(models.WaitNotified),
}

func (d *DB) CreateEntry(ctx context.Context, entry models.WaitlistEntry) error {
	_, err := d.Bun.NewInsert().Model(&entry).Exec(ctx)
	return err
}

func (d *DB) GetEntryByID(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetActiveEntryByPhone finds a waiting or notified entry for a phone,
// nil when the guest is not in the queue.
func (d *DB) GetActiveEntryByPhone(ctx context.Context, phone string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("guest_phone = ?", phone).
		Where("status IN (?)", bun.In(activeStatuses)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MaxActivePosition returns the highest position currently held by a
// waiting or notified entry, 0 for an empty queue.
func (d *DB) MaxActivePosition(ctx context.Context) (int, error) {
	var max int
	err := d.Bun.NewSelect().
		Model((*models.WaitlistEntry)(nil)).
		ColumnExpr("coalesce(max(position), 0)").
		Where("status IN (?)", bun.In(activeStatuses)).
		Scan(ctx, &max)
	return max, err
}

func (d *DB) ListActiveEntries(ctx context.Context) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("status IN (?)", bun.In(activeStatuses)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// TransitionEntry updates an entry and renumbers the remaining active
// entries to a dense 1..N in join order, in one transaction, so
// positions never show gaps or duplicates.
func (d *DB) TransitionEntry(ctx context.Context, entry models.WaitlistEntry) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		entry.UpdatedAt = time.Now()
		if _, err := tx.NewUpdate().Model(&entry).WherePK().Exec(ctx); err != nil {
			return err
		}

		var active []models.WaitlistEntry
		err := tx.NewSelect().
			Model(&active).
			Where("status IN (?)", bun.In(activeStatuses)).
			Order("created_at ASC").
			Scan(ctx)
		if err != nil {
			return err
		}

		for i, e := range active {
			if e.Position == i+1 {
				continue
			}
			_, err := tx.NewUpdate().
				Model((*models.WaitlistEntry)(nil)).
				Set("position = ?", i+1).
				Where("id = ?", e.ID).
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
