package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := LoadConfig()

	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "sandbox", cfg.GatewayProvider)
	assert.Equal(t, "NGN", cfg.PaymentCurrency)
	assert.False(t, cfg.TestPayments)
	assert.Equal(t, "100", cfg.TestAmountCeiling.String())
	assert.Equal(t, 30*time.Minute, cfg.PendingTimeout)
	assert.Equal(t, "local", cfg.EventBus)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Second, cfg.VerifyLockTTL)
	assert.False(t, cfg.ReleaseFailedInventory)
	assert.True(t, cfg.EnableMetrics)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GATEWAY_PROVIDER", "paystack")
	t.Setenv("TEST_PAYMENTS", "true")
	t.Setenv("TEST_AMOUNT_CEILING", "250.50")
	t.Setenv("PENDING_TIMEOUT", "1h")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("PURCHASE_RATE_LIMIT", "3")
	t.Setenv("RELEASE_FAILED_INVENTORY", "1")

	cfg := LoadConfig()

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "paystack", cfg.GatewayProvider)
	assert.True(t, cfg.TestPayments)
	assert.Equal(t, "250.5", cfg.TestAmountCeiling.String())
	assert.Equal(t, time.Hour, cfg.PendingTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3, cfg.PurchaseRateLimit)
	assert.True(t, cfg.ReleaseFailedInventory)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("TEST_AMOUNT_CEILING", "lots")
	t.Setenv("REAPER_INTERVAL", "soon")
	t.Setenv("PURCHASE_RATE_LIMIT", "many")

	cfg := LoadConfig()

	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "100", cfg.TestAmountCeiling.String())
	assert.Equal(t, 5*time.Minute, cfg.ReaperInterval)
	assert.Equal(t, 10, cfg.PurchaseRateLimit)
}
