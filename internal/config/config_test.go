package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
http:
  addr: ":9090"
razorpay:
  key_id: rzp_test_abc
  key_secret: secret-from-yaml
  webhook_secret: hook-from-yaml
  order_timeout: 3s
checkout:
  currency: INR
  receipt_prefix: order
  event_dedup_ttl: 24h
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.ReadTimeout != 5*time.Second {
		t.Fatalf("default read timeout lost: %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.Razorpay.KeyID != "rzp_test_abc" {
		t.Fatalf("unexpected razorpay key id: %s", cfg.Razorpay.KeyID)
	}
	if cfg.Razorpay.WebhookSecret != "hook-from-yaml" {
		t.Fatalf("unexpected webhook secret: %s", cfg.Razorpay.WebhookSecret)
	}
	if cfg.Razorpay.OrderTimeout != 3*time.Second {
		t.Fatalf("unexpected order timeout: %s", cfg.Razorpay.OrderTimeout)
	}
	if cfg.Checkout.ReceiptPrefix != "order" {
		t.Fatalf("unexpected receipt prefix: %s", cfg.Checkout.ReceiptPrefix)
	}
	if cfg.Checkout.EventDedupTTL != 24*time.Hour {
		t.Fatalf("unexpected dedup ttl: %s", cfg.Checkout.EventDedupTTL)
	}
	if cfg.Checkout.Currency != "INR" {
		t.Fatalf("unexpected currency: %s", cfg.Checkout.Currency)
	}
}

func TestLoadEnvOverridesBeatYAML(t *testing.T) {
	clearConfigEnv(t)

	t.Setenv("RAZORPAY_KEY_SECRET", "secret-from-env")
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "hook-from-env")
	t.Setenv("POSTGRES_DSN", "postgres://env:env@db:5432/checkout")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Razorpay.KeySecret != "secret-from-env" {
		t.Fatalf("env key secret not applied: %s", cfg.Razorpay.KeySecret)
	}
	if cfg.Razorpay.WebhookSecret != "hook-from-env" {
		t.Fatalf("env webhook secret not applied: %s", cfg.Razorpay.WebhookSecret)
	}
	if cfg.Postgres.DSN != "postgres://env:env@db:5432/checkout" {
		t.Fatalf("env dsn not applied: %s", cfg.Postgres.DSN)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("env log level not applied: %s", cfg.Log.Level)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Checkout.Currency != "INR" {
		t.Fatalf("unexpected default currency: %s", cfg.Checkout.Currency)
	}
	if cfg.Razorpay.OrderTimeout != 10*time.Second {
		t.Fatalf("unexpected default order timeout: %s", cfg.Razorpay.OrderTimeout)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "HTTP_ADDR", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL", "POSTGRES_DSN", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_BUCKET", "S3_USE_SSL",
		"JWT_SECRET", "JWT_ACCESS_TTL",
		"RAZORPAY_KEY_ID", "RAZORPAY_KEY_SECRET", "RAZORPAY_WEBHOOK_SECRET", "RAZORPAY_ORDER_TIMEOUT",
		"CHECKOUT_CURRENCY", "CHECKOUT_EVENT_DEDUP_TTL",
	} {
		t.Setenv(key, "")
	}
}
