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

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"tablebook/internal/config"
	"tablebook/internal/logger"
	"tablebook/internal/notify"
	"tablebook/internal/payment"
	"tablebook/internal/payment/handler"
	"tablebook/internal/payment/storage"
	"tablebook/internal/reservation"
	resdb "tablebook/internal/reservation/db"
	rediswrap "tablebook/internal/reservation/redis"
	"tablebook/internal/schedule"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.Load()
	appLogger := logger.NewLogger("payment-service")

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

	if err := sqldb.Ping(); err != nil {
		log.Fatalf("❌ Failed to connect to Postgres: %v", err)
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	// --- Redis Setup ---
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}

	// --- Stripe + Payment Store ---
	processor, err := payment.NewStripeProcessor(cfg.Stripe.SecretKey, appLogger)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Stripe: %v", err)
	}
	paymentStore, err := storage.NewPostgreSQLStoreWithDB(sqldb, appLogger)
	if err != nil {
		log.Fatalf("❌ Failed to initialize payment store: %v", err)
	}
	orchestrator := payment.NewOrchestrator(paymentStore, processor, settings, appLogger)

	// Webhook confirmations flow through the reservation lifecycle, so
	// the payment service carries a read-mostly copy of the engine.
	dbLayer := &resdb.DB{Bun: bunDB}
	resolver := schedule.NewResolver(settings, dbLayer)
	dedupeLock := rediswrap.NewRedis(redisClient)
	reservations := reservation.NewService(dbLayer, dedupeLock, orchestrator, notify.Nop{}, resolver, settings, appLogger)

	stripeHandler := handler.NewStripeHandler(orchestrator, reservations, settings, cfg.Stripe.WebhookSecret, appLogger)

	// --- Router ---
	router := gin.Default()
	v1 := router.Group("/api/v1/payments")
	{
		v1.POST("/intent", stripeHandler.CreatePaymentIntent)
		v1.POST("/webhook", stripeHandler.HandleWebhook)
	}

	port := os.Getenv("PAYMENT_PORT")
	if port == "" {
		port = ":8081"
	}

	server := &http.Server{
		Addr:         port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("🚀 Payment Service running on %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("📦 Shutdown signal received. Cleaning up...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Payment service exited gracefully")
}
