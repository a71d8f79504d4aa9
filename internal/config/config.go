/**
 * @description
 * This package handles configuration for the API, mailer and scheduler binaries.
 * Values come from environment variables (optionally a .env file) through Viper.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading and env binding.
 */

package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service. Values are loaded from the environment.
type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	ServerPort string `mapstructure:"SERVER_PORT"`

	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	MigrationsEnabled bool   `mapstructure:"MIGRATIONS_ENABLED"`

	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	AuthRateLimitPerWindow     int    `mapstructure:"AUTH_RATE_LIMIT_PER_WINDOW"`
	AuthRateLimitWindowMinutes int    `mapstructure:"AUTH_RATE_LIMIT_WINDOW_MINUTES"`
	ForgotPasswordRateLimit    int    `mapstructure:"FORGOT_PASSWORD_RATE_LIMIT_PER_WINDOW"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`
	MailerQueue    string `mapstructure:"MAILER_QUEUE"`

	PaystackSecretKey      string `mapstructure:"PAYSTACK_SECRET_KEY"`
	PaystackBaseURL        string `mapstructure:"PAYSTACK_BASE_URL"`
	PaystackWebhookSecret  string `mapstructure:"PAYSTACK_WEBHOOK_SECRET"`
	PaystackTimeoutSeconds int    `mapstructure:"PAYSTACK_TIMEOUT_SECONDS"`
	PaymentCallbackURL     string `mapstructure:"PAYMENT_CALLBACK_URL"`

	FrontendURL        string `mapstructure:"FRONTEND_URL"`
	PublicBaseURL      string `mapstructure:"PUBLIC_BASE_URL"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	AllowedEmailDomain string `mapstructure:"ALLOWED_EMAIL_DOMAIN"`

	JWTSecret          string `mapstructure:"JWT_SECRET"`
	JWTRefreshSecret   string `mapstructure:"JWT_REFRESH_SECRET"`
	JWTAccessTTLHours  int    `mapstructure:"JWT_ACCESS_TTL_HOURS"`
	JWTRefreshTTLHours int    `mapstructure:"JWT_REFRESH_TTL_HOURS"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`

	OSSEndpoint      string `mapstructure:"ALI_OSS_ENDPOINT"`
	OSSAccessKey     string `mapstructure:"ALI_OSS_ACCESS_KEY"`
	OSSSecretKey     string `mapstructure:"ALI_OSS_SECRET_KEY"`
	OSSBucket        string `mapstructure:"ALI_OSS_BUCKET"`
	OSSPublicBase    string `mapstructure:"ALI_OSS_PUBLIC_BASE"`
	ReceiptKeyPrefix string `mapstructure:"RECEIPT_KEY_PREFIX"`

	ReconcileJobSchedule    string `mapstructure:"RECONCILE_JOB_SCHEDULE"`
	ReceiptBackfillSchedule string `mapstructure:"RECEIPT_BACKFILL_SCHEDULE"`
	OverdueJobSchedule      string `mapstructure:"OVERDUE_JOB_SCHEDULE"`
	TokenPurgeSchedule      string `mapstructure:"TOKEN_PURGE_SCHEDULE"`
	StalePaymentMinutes     int    `mapstructure:"STALE_PAYMENT_MINUTES"`
}

// IsProduction reports whether internal error detail must be hidden from clients.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// PaystackTimeout bounds every gateway call.
func (c Config) PaystackTimeout() time.Duration {
	return time.Duration(c.PaystackTimeoutSeconds) * time.Second
}

// AuthRateLimitWindow is the fixed window for auth route limiting.
func (c Config) AuthRateLimitWindow() time.Duration {
	return time.Duration(c.AuthRateLimitWindowMinutes) * time.Minute
}

// OSSConfigured reports whether receipts can be pushed to object storage.
func (c Config) OSSConfigured() bool {
	return c.OSSEndpoint != "" && c.OSSAccessKey != "" && c.OSSSecretKey != "" && c.OSSBucket != ""
}

// SMTPConfigured reports whether the mailer can send.
func (c Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPPort > 0
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// LoadConfig reads configuration from environment variables and an optional .env in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("MIGRATIONS_ENABLED", true)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "paxify:rate_limit")
	viper.SetDefault("AUTH_RATE_LIMIT_PER_WINDOW", 100)
	viper.SetDefault("AUTH_RATE_LIMIT_WINDOW_MINUTES", 15)
	viper.SetDefault("FORGOT_PASSWORD_RATE_LIMIT_PER_WINDOW", 10)
	viper.SetDefault("EVENTS_EXCHANGE", "paxify.events")
	viper.SetDefault("MAILER_QUEUE", "paxify.mailer")
	viper.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	viper.SetDefault("PAYSTACK_TIMEOUT_SECONDS", 15)
	viper.SetDefault("FRONTEND_URL", "http://localhost:3000")
	viper.SetDefault("ALLOWED_EMAIL_DOMAIN", "fuoye.edu.ng")
	viper.SetDefault("JWT_ACCESS_TTL_HOURS", 24)
	viper.SetDefault("JWT_REFRESH_TTL_HOURS", 168)
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("MAIL_FROM", "Paxify <no-reply@paxify.com>")
	viper.SetDefault("RECEIPT_KEY_PREFIX", "receipts")
	viper.SetDefault("RECONCILE_JOB_SCHEDULE", "*/10 * * * *")
	viper.SetDefault("RECEIPT_BACKFILL_SCHEDULE", "*/30 * * * *")
	viper.SetDefault("OVERDUE_JOB_SCHEDULE", "0 1 * * *")
	viper.SetDefault("TOKEN_PURGE_SCHEDULE", "0 3 * * *")
	viper.SetDefault("STALE_PAYMENT_MINUTES", 30)

	// Bind explicitly so Unmarshal sees env-only values.
	_ = viper.BindEnv("APP_ENV", "APP_ENV", "NODE_ENV")
	_ = viper.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("MIGRATIONS_ENABLED")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("AUTH_RATE_LIMIT_PER_WINDOW")
	_ = viper.BindEnv("AUTH_RATE_LIMIT_WINDOW_MINUTES")
	_ = viper.BindEnv("FORGOT_PASSWORD_RATE_LIMIT_PER_WINDOW")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("MAILER_QUEUE")
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("PAYSTACK_BASE_URL")
	_ = viper.BindEnv("PAYSTACK_WEBHOOK_SECRET")
	_ = viper.BindEnv("PAYSTACK_TIMEOUT_SECONDS")
	_ = viper.BindEnv("PAYMENT_CALLBACK_URL")
	_ = viper.BindEnv("FRONTEND_URL")
	_ = viper.BindEnv("PUBLIC_BASE_URL")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("ALLOWED_EMAIL_DOMAIN")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_REFRESH_SECRET")
	_ = viper.BindEnv("JWT_ACCESS_TTL_HOURS")
	_ = viper.BindEnv("JWT_REFRESH_TTL_HOURS")
	_ = viper.BindEnv("SMTP_HOST")
	_ = viper.BindEnv("SMTP_PORT")
	_ = viper.BindEnv("SMTP_USERNAME", "SMTP_USERNAME", "SMTP_USER")
	_ = viper.BindEnv("SMTP_PASSWORD", "SMTP_PASSWORD", "SMTP_PASS")
	_ = viper.BindEnv("MAIL_FROM", "MAIL_FROM", "EMAIL_FROM")
	_ = viper.BindEnv("ALI_OSS_ENDPOINT")
	_ = viper.BindEnv("ALI_OSS_ACCESS_KEY")
	_ = viper.BindEnv("ALI_OSS_SECRET_KEY")
	_ = viper.BindEnv("ALI_OSS_BUCKET")
	_ = viper.BindEnv("ALI_OSS_PUBLIC_BASE")
	_ = viper.BindEnv("RECEIPT_KEY_PREFIX")
	_ = viper.BindEnv("RECONCILE_JOB_SCHEDULE")
	_ = viper.BindEnv("RECEIPT_BACKFILL_SCHEDULE")
	_ = viper.BindEnv("OVERDUE_JOB_SCHEDULE")
	_ = viper.BindEnv("TOKEN_PURGE_SCHEDULE")
	_ = viper.BindEnv("STALE_PAYMENT_MINUTES")

	// A missing .env is fine; anything else is reported.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return config, err
		}
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	config.normalize()
	return
}

func (c *Config) normalize() {
	c.AppEnv = strings.ToLower(strings.TrimSpace(c.AppEnv))
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.RedisRateLimitPrefix = strings.TrimSuffix(strings.TrimSpace(c.RedisRateLimitPrefix), ":")
	if c.RedisRateLimitPrefix == "" {
		c.RedisRateLimitPrefix = "paxify:rate_limit"
	}
	if c.AuthRateLimitWindowMinutes <= 0 {
		c.AuthRateLimitWindowMinutes = 15
	}

	c.PaystackSecretKey = strings.TrimSpace(c.PaystackSecretKey)
	c.PaystackWebhookSecret = strings.TrimSpace(c.PaystackWebhookSecret)
	if c.PaystackWebhookSecret == "" {
		// Paystack signs webhooks with the account secret key.
		c.PaystackWebhookSecret = c.PaystackSecretKey
	}
	if c.PaystackTimeoutSeconds <= 0 {
		c.PaystackTimeoutSeconds = 15
	}

	c.FrontendURL = strings.TrimRight(strings.TrimSpace(c.FrontendURL), "/")
	c.PaymentCallbackURL = strings.TrimSpace(c.PaymentCallbackURL)
	if c.PaymentCallbackURL == "" && c.FrontendURL != "" {
		c.PaymentCallbackURL = c.FrontendURL + "/payment/callback"
	}
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost:" + c.ServerPort
	}

	c.AllowedEmailDomain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.AllowedEmailDomain)), "@")
	if c.JWTRefreshSecret == "" {
		c.JWTRefreshSecret = c.JWTSecret + ":refresh"
	}
	if c.JWTAccessTTLHours <= 0 {
		c.JWTAccessTTLHours = 24
	}
	if c.JWTRefreshTTLHours <= 0 {
		c.JWTRefreshTTLHours = 168
	}

	c.ReceiptKeyPrefix = strings.Trim(strings.TrimSpace(c.ReceiptKeyPrefix), "/")
	if c.StalePaymentMinutes <= 0 {
		c.StalePaymentMinutes = 30
	}
}
