/**
 * @description
 * This is the main entry point for the Paxify scheduler. It is a non-HTTP,
 * long-running process that runs the cron jobs: stale payment reconciliation,
 * receipt backfill, overdue assignments and expired token purges.
 */
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/app"
	"github.com/idorocodes/paxify-backend/internal/config"
	"github.com/idorocodes/paxify-backend/internal/store"
	"github.com/idorocodes/paxify-backend/pkg/logging"
	"github.com/idorocodes/paxify-backend/pkg/objectstore"
	"github.com/idorocodes/paxify-backend/pkg/paystack"
	"github.com/idorocodes/paxify-backend/pkg/rabbitmq"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv, "paxify-scheduler")
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	dbpool, err := store.NewPool(ctx, cfg.DatabaseURL, store.PoolOptions{MaxConns: 5, MinConns: 1})
	if err != nil {
		logger.Fatal("unable to connect to database", zap.Error(err))
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	repository := store.NewPostgresRepository(dbpool)

	// Completions found by reconciliation publish the same events as the API.
	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{Logger: logger}
	if cfg.RabbitMQURL != "" {
		if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange, logger); err != nil {
			logger.Warn("rabbitmq producer unavailable; using fallback", zap.Error(err))
		} else {
			publisher = producer
		}
	}
	defer publisher.Close()

	var objects app.ObjectStore
	if cfg.OSSConfigured() {
		ossStore, err := objectstore.NewOSSStore(objectstore.Config{
			Endpoint:   cfg.OSSEndpoint,
			AccessKey:  cfg.OSSAccessKey,
			SecretKey:  cfg.OSSSecretKey,
			Bucket:     cfg.OSSBucket,
			PublicBase: cfg.OSSPublicBase,
			Prefix:     cfg.ReceiptKeyPrefix,
		}, logger)
		if err != nil {
			logger.Warn("object storage unavailable", zap.Error(err))
		} else {
			objects = ossStore
		}
	}

	gateway := paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.PaystackWebhookSecret, cfg.PaystackTimeout())
	engine := app.NewPaymentEngine(
		repository,
		gateway,
		app.NewReceiptService(objects, cfg.PublicBaseURL, logger),
		app.NewDispatcher(repository, logger),
		publisher,
		logger,
		app.PaymentEngineConfig{CallbackURL: cfg.PaymentCallbackURL, GatewayTimeout: cfg.PaystackTimeout()},
	)

	jobs := app.NewJobs(repository, engine, logger, cfg)
	scheduler := app.NewScheduler(jobs, logger, cfg)

	if scheduled := scheduler.Start(); scheduled == 0 {
		logger.Warn("no jobs scheduled; check the *_SCHEDULE settings")
	} else {
		logger.Info("scheduler started", zap.Int("jobs", scheduled))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping scheduler")
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("scheduler stopped gracefully")
}
