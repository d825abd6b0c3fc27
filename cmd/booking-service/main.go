package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"tablebook/internal/auth"
	"tablebook/internal/config"
	"tablebook/internal/database/migrations"
	"tablebook/internal/estimator"
	"tablebook/internal/logger"
	"tablebook/internal/notify"
	"tablebook/internal/payment"
	"tablebook/internal/payment/storage"
	"tablebook/internal/qr"
	"tablebook/internal/reservation"
	reservationapi "tablebook/internal/reservation/api"
	resdb "tablebook/internal/reservation/db"
	rediswrap "tablebook/internal/reservation/redis"
	"tablebook/internal/schedule"
	"tablebook/internal/waitlist"
	waitlistapi "tablebook/internal/waitlist/api"
	wldb "tablebook/internal/waitlist/db"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.Load()
	appLogger := logger.NewLogger("booking-service")

	settings, err := config.LoadSettings("")
	if err != nil {
		log.Fatalf("❌ Invalid booking settings: %v", err)
	}

	// --- PostgreSQL Setup ---
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("❌ Failed to open Postgres: %v", err)
	}
	defer sqldb.Close()
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatalf("❌ Failed to connect to Postgres: %v", err)
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	// Run migrations
	migrateOpts := migrations.DefaultOptions()
	migrateOpts.SeedTables = os.Getenv("SEED_TABLES") == "true"
	runner := migrations.NewRunner(bunDB, migrateOpts)
	if err := runner.Run(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	// --- Redis Setup ---
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}

	// --- Kafka Notifications ---
	var resNotifier reservation.Notifier = notify.Nop{}
	var wlNotifier waitlist.Notifier = notify.Nop{}
	if cfg.Kafka.Enabled {
		topics := []string{
			cfg.Kafka.Topics.ReservationEvents,
			cfg.Kafka.Topics.WaitlistEvents,
			cfg.Kafka.Topics.PaymentEvents,
		}
		if err := notify.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			appLogger.Warn("KAFKA", fmt.Sprintf("Topic bootstrap failed: %v", err))
		}
		producer := notify.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, appLogger)
		defer producer.Close()
		resNotifier = producer
		wlNotifier = producer
	} else {
		appLogger.Warn("KAFKA", "Kafka disabled, notifications will not be dispatched")
	}

	// --- Payments ---
	processor, err := payment.NewStripeProcessor(cfg.Stripe.SecretKey, appLogger)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Stripe: %v", err)
	}
	paymentStore, err := storage.NewPostgreSQLStoreWithDB(sqldb, appLogger)
	if err != nil {
		log.Fatalf("❌ Failed to initialize payment store: %v", err)
	}
	orchestrator := payment.NewOrchestrator(paymentStore, processor, settings, appLogger)

	// --- Booking Engine ---
	dbLayer := &resdb.DB{Bun: bunDB}
	resolver := schedule.NewResolver(settings, dbLayer)
	dedupeLock := rediswrap.NewRedis(redisClient)
	service := reservation.NewService(dbLayer, dedupeLock, orchestrator, resNotifier, resolver, settings, appLogger)

	waitEstimator := estimator.New(dbLayer, settings)
	wlLayer := &wldb.DB{Bun: bunDB}
	wlManager := waitlist.NewManager(wlLayer, waitEstimator, service, wlNotifier, settings, appLogger)

	qrGen := qr.NewGenerator(os.Getenv("QR_SECRET"))
	tokens := auth.NewManageTokens(os.Getenv("MANAGE_TOKEN_SECRET"), 0)

	resHandler := &reservationapi.Handler{Service: service, QR: qrGen, Tokens: tokens, Overrides: dbLayer}
	wlHandler := &waitlistapi.Handler{Manager: wlManager}

	// --- Router ---
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		resHandler.Routes(r)
		wlHandler.Routes(r)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("🚀 Booking Service running on %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP server error: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("📦 Shutdown signal received. Cleaning up...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Booking service exited gracefully")
}
