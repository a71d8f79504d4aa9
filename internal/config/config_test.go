package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, key := range []string{"SERVER_PORT", "PORT", "PAYSTACK_TIMEOUT_SECONDS", "ALLOWED_EMAIL_DOMAIN", "APP_ENV", "NODE_ENV"} {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.PaystackTimeout() != 15*time.Second {
		t.Fatalf("expected 15s gateway timeout, got %s", cfg.PaystackTimeout())
	}
	if cfg.AllowedEmailDomain != "fuoye.edu.ng" {
		t.Fatalf("expected default email domain, got %q", cfg.AllowedEmailDomain)
	}
	if cfg.AuthRateLimitPerWindow != 100 || cfg.AuthRateLimitWindow() != 15*time.Minute {
		t.Fatalf("expected 100 requests per 15 minutes, got %d per %s", cfg.AuthRateLimitPerWindow, cfg.AuthRateLimitWindow())
	}
	if cfg.ForgotPasswordRateLimit != 10 {
		t.Fatalf("expected 10 password reset requests per window, got %d", cfg.ForgotPasswordRateLimit)
	}
	if cfg.IsProduction() {
		t.Fatal("expected development environment by default")
	}
}

func TestLoadConfig_WebhookSecretFallsBackToSecretKey(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "PAYSTACK_WEBHOOK_SECRET")
	setEnvWithCleanup(t, "PAYSTACK_SECRET_KEY", " sk_test_abc ")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PaystackSecretKey != "sk_test_abc" {
		t.Fatalf("expected trimmed secret key, got %q", cfg.PaystackSecretKey)
	}
	if cfg.PaystackWebhookSecret != "sk_test_abc" {
		t.Fatalf("expected webhook secret to default to secret key, got %q", cfg.PaystackWebhookSecret)
	}
}

func TestLoadConfig_CallbackURLDerivedFromFrontend(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "PAYMENT_CALLBACK_URL")
	setEnvWithCleanup(t, "FRONTEND_URL", "https://pay.example.edu/")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PaymentCallbackURL != "https://pay.example.edu/payment/callback" {
		t.Fatalf("unexpected callback url %q", cfg.PaymentCallbackURL)
	}
}

func TestLoadConfig_PortAliasAndProduction(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "APP_ENV")
	setEnvWithCleanup(t, "PORT", "9090")
	setEnvWithCleanup(t, "NODE_ENV", "Production")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT alias to be honoured, got %q", cfg.ServerPort)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production environment, got %q", cfg.AppEnv)
	}
}

func TestConfig_AllowedOrigins(t *testing.T) {
	cfg := Config{CORSAllowedOrigins: " https://a.example , ,https://b.example"}
	origins := cfg.AllowedOrigins()
	if len(origins) != 2 || origins[0] != "https://a.example" || origins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", origins)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
		}
	})
}
