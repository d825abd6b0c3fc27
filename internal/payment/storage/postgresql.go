package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"tablebook/internal/config"
	"tablebook/internal/logger"
	"tablebook/internal/models"
)

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB wraps an existing connection, so the payment
// store can share the pool the rest of the service uses.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	store := &PostgreSQLStore{db: db, log: log}
	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize payments table: "+err.Error())
		return nil, fmt.Errorf("failed to initialize payments table: %w", err)
	}
	log.Info("DATABASE", "Payment storage initialized")
	return store, nil
}

func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "postgresql", fmt.Sprintf("Connecting to PostgreSQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgreSQLStoreWithDB(db, log)
}

func (s *PostgreSQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "payments", "Creating payments table if not exists")

	query := `
    CREATE TABLE IF NOT EXISTS payments (
        payment_id VARCHAR(64) PRIMARY KEY,
        reservation_id VARCHAR(64) NOT NULL,
        type VARCHAR(16) NOT NULL,
        status VARCHAR(16) NOT NULL,
        amount BIGINT NOT NULL,
        currency VARCHAR(8) NOT NULL,
        intent_id VARCHAR(128),
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ
    );
    CREATE INDEX IF NOT EXISTS idx_payments_reservation ON payments (reservation_id);
    CREATE INDEX IF NOT EXISTS idx_payments_intent ON payments (intent_id);`

	_, err := s.db.Exec(query)
	return err
}

func (s *PostgreSQLStore) CreatePayment(ctx context.Context, p models.Payment) error {
	query := `
        INSERT INTO payments (payment_id, reservation_id, type, status, amount, currency, intent_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.ExecContext(ctx, query,
		p.PaymentID, p.ReservationID, string(p.Type), string(p.Status), p.Amount, p.Currency,
		nullable(p.IntentID), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment %s: %w", p.PaymentID, err)
	}
	return nil
}

func (s *PostgreSQLStore) GetPaymentByReservation(ctx context.Context, reservationID string) (*models.Payment, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT payment_id, reservation_id, type, status, amount, currency, coalesce(intent_id, ''), created_at, coalesce(updated_at, created_at)
        FROM payments WHERE reservation_id = $1
        ORDER BY created_at DESC LIMIT 1`, reservationID)
	return scanPayment(row)
}

func (s *PostgreSQLStore) GetPaymentByIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT payment_id, reservation_id, type, status, amount, currency, coalesce(intent_id, ''), created_at, coalesce(updated_at, created_at)
        FROM payments WHERE intent_id = $1 LIMIT 1`, intentID)
	return scanPayment(row)
}

func (s *PostgreSQLStore) UpdatePayment(ctx context.Context, p models.Payment) error {
	query := `
        UPDATE payments
        SET type = $2, status = $3, amount = $4, currency = $5, intent_id = $6, updated_at = $7
        WHERE payment_id = $1`
	result, err := s.db.ExecContext(ctx, query,
		p.PaymentID, string(p.Type), string(p.Status), p.Amount, p.Currency, nullable(p.IntentID), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update payment %s: %w", p.PaymentID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("payment %s not found", p.PaymentID)
	}
	return nil
}

func scanPayment(row *sql.Row) (*models.Payment, error) {
	var p models.Payment
	var typ, status string
	err := row.Scan(&p.PaymentID, &p.ReservationID, &typ, &status, &p.Amount, &p.Currency, &p.IntentID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	p.Type = models.PaymentType(typ)
	p.Status = models.PaymentStatus(status)
	return &p, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
