/**
 * @description
 * This is the main entry point for the Paxify mailer. It consumes domain events
 * from the RabbitMQ events exchange and sends the matching transactional
 * e-mails over SMTP. It has no HTTP surface.
 *
 * @dependencies
 * - github.com/joho/godotenv: loads .env files during local development.
 * - pkg/rabbitmq: queue consumer.
 * - pkg/mail: SMTP sender and templates.
 */

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/app"
	"github.com/idorocodes/paxify-backend/internal/config"
	"github.com/idorocodes/paxify-backend/pkg/logging"
	"github.com/idorocodes/paxify-backend/pkg/mail"
	"github.com/idorocodes/paxify-backend/pkg/rabbitmq"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv, "paxify-mailer")
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	if cfg.RabbitMQURL == "" {
		logger.Fatal("RABBITMQ_URL must be configured")
	}
	if !cfg.SMTPConfigured() {
		logger.Fatal("SMTP_HOST and SMTP_PORT must be configured")
	}

	sender := mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	handler := app.NewMailEventHandler(sender, cfg.FrontendURL, logger)

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Fatal("rabbitmq consumer init failed",
			zap.String("url", rabbitmq.MaskURL(cfg.RabbitMQURL)),
			zap.Error(err),
		)
	}
	defer consumer.Close()

	if err := consumer.ConsumeWithBindings(cfg.EventsExchange, cfg.MailerQueue, handler.Bindings()); err != nil {
		logger.Fatal("mail consumer start failed", zap.Error(err))
	}
	logger.Info("mailer consuming",
		zap.String("exchange", cfg.EventsExchange),
		zap.String("queue", cfg.MailerQueue),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case <-consumer.Done():
		logger.Error("delivery channel closed; exiting")
	}
}
