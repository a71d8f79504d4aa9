/**
 * @description
 * This is the main entry point for the Paxify API. It loads configuration,
 * connects to PostgreSQL, applies migrations, connects the optional
 * collaborators (RabbitMQ, Redis, OSS), wires the application services and
 * serves the HTTP API until it receives SIGINT or SIGTERM.
 *
 * @dependencies
 * - github.com/joho/godotenv: loads .env files during local development.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: distributed rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: the service itself.
 * - pkg/paystack, pkg/rabbitmq, pkg/objectstore, pkg/logging: external collaborators.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/api"
	"github.com/idorocodes/paxify-backend/internal/app"
	"github.com/idorocodes/paxify-backend/internal/config"
	"github.com/idorocodes/paxify-backend/internal/store"
	"github.com/idorocodes/paxify-backend/pkg/logging"
	"github.com/idorocodes/paxify-backend/pkg/objectstore"
	"github.com/idorocodes/paxify-backend/pkg/paystack"
	"github.com/idorocodes/paxify-backend/pkg/rabbitmq"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv, "paxify-api")
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	if cfg.DatabaseURL == "" || cfg.JWTSecret == "" || cfg.PaystackSecretKey == "" {
		logger.Fatal("DATABASE_URL, JWT_SECRET and PAYSTACK_SECRET_KEY must be configured")
	}
	logger.Info("starting paxify api", zap.String("port", cfg.ServerPort), zap.String("env", cfg.AppEnv))

	ctx := context.Background()

	if cfg.MigrationsEnabled {
		if err := store.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			logger.Fatal("database migrations failed", zap.Error(err))
		}
	}

	dbpool, err := store.NewPool(ctx, cfg.DatabaseURL, store.PoolOptions{MaxConns: 10, MinConns: 2})
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer dbpool.Close()
	logger.Info("database connected")
	repository := store.NewPostgresRepository(dbpool)

	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{Logger: logger}
	if cfg.RabbitMQURL == "" {
		logger.Warn("rabbitmq url missing; events will not be published", zap.String("env", "RABBITMQ_URL"))
	} else if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange, logger); err != nil {
		logger.Warn("rabbitmq producer unavailable; using fallback",
			zap.String("url", rabbitmq.MaskURL(cfg.RabbitMQURL)),
			zap.Error(err),
		)
	} else {
		publisher = producer
		logger.Info("rabbitmq producer connected", zap.String("exchange", cfg.EventsExchange))
	}
	defer publisher.Close()

	limiter, closeRedis := newRateLimiter(ctx, cfg, logger)
	defer closeRedis()

	// A nil *OSSStore must not reach the receipt service as a non-nil interface.
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
			logger.Warn("object storage unavailable; receipts served from the api", zap.Error(err))
		} else {
			objects = ossStore
		}
	} else {
		logger.Info("object storage not configured; receipts served from the api")
	}

	tokens, err := app.NewTokenManager(
		cfg.JWTSecret,
		cfg.JWTRefreshSecret,
		time.Duration(cfg.JWTAccessTTLHours)*time.Hour,
		time.Duration(cfg.JWTRefreshTTLHours)*time.Hour,
	)
	if err != nil {
		logger.Fatal("token manager init failed", zap.Error(err))
	}

	gateway := paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.PaystackWebhookSecret, cfg.PaystackTimeout())
	dispatcher := app.NewDispatcher(repository, logger)
	receipts := app.NewReceiptService(objects, cfg.PublicBaseURL, logger)

	services := api.Services{
		Auth: app.NewAuthService(repository, tokens, publisher, cfg.AllowedEmailDomain, logger),
		Payments: app.NewPaymentEngine(repository, gateway, receipts, dispatcher, publisher, logger, app.PaymentEngineConfig{
			CallbackURL:    cfg.PaymentCallbackURL,
			GatewayTimeout: cfg.PaystackTimeout(),
		}),
		Fees:          app.NewFeeService(repository, dispatcher, publisher, logger),
		Notifications: dispatcher,
		Catalog:       app.NewCatalogService(repository, logger),
		Admin:         app.NewAdminService(repository, logger),
		Student:       app.NewStudentService(repository, logger),
	}
	opts := api.Options{
		Production:     cfg.IsProduction(),
		AllowedOrigins: cfg.AllowedOrigins(),
		RateLimiter:    limiter,
	}
	handlers := api.NewHandlers(services, opts, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           api.NewRouter(handlers, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped unexpectedly", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newRateLimiter prefers Redis so limits hold across replicas, and falls back
// to an in-process limiter when Redis is missing or unreachable.
func newRateLimiter(ctx context.Context, cfg config.Config, logger *zap.Logger) (app.RateLimiter, func()) {
	noop := func() {}
	policies := app.AuthRateLimitPolicies(cfg.AuthRateLimitPerWindow, cfg.AuthRateLimitWindow(), cfg.ForgotPasswordRateLimit)
	if !policies.Enabled() {
		logger.Info("auth rate limiting disabled")
		return nil, noop
	}
	if cfg.RedisURL == "" {
		logger.Warn("redis url missing; using in-process rate limiting", zap.String("env", "REDIS_URL"))
		return app.NewLocalRateLimiter(policies), noop
	}
	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis url parse failed; using in-process rate limiting", zap.Error(err))
		return app.NewLocalRateLimiter(policies), noop
	}
	client := redis.NewClient(redisOptions)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; using in-process rate limiting", zap.Error(err))
		client.Close()
		return app.NewLocalRateLimiter(policies), noop
	}
	logger.Info("redis connected")
	return app.NewRedisRateLimiter(client, cfg.RedisRateLimitPrefix, policies), func() { client.Close() }
}
