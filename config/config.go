package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Server configuration
	Environment string
	LogLevel    slog.Level

	// Redis configuration
	RedisURL string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Payment gateway configuration
	GatewayProvider    string
	PaystackBaseURL    string
	PaystackSecretKey  string
	SandboxCheckoutURL string
	PaymentCurrency    string
	PaymentCallbackURL string
	TestPayments       bool
	TestAmountCeiling  decimal.Decimal

	// Background jobs
	PendingTimeout          time.Duration
	ReaperInterval          time.Duration
	LedgerReconcileInterval time.Duration

	// Completion event bus
	EventBus     string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Limits
	PurchaseRateLimit int
	VerifyLockTTL     time.Duration

	ReleaseFailedInventory bool

	// Monitoring
	EnableMetrics bool
}

// LoadConfig reads the environment, after loading .env when present.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnvAsLogLevel("LOG_LEVEL", slog.LevelInfo),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Payments
		GatewayProvider:    getEnv("GATEWAY_PROVIDER", "sandbox"),
		PaystackBaseURL:    getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackSecretKey:  getEnv("PAYSTACK_SECRET_KEY", ""),
		SandboxCheckoutURL: getEnv("SANDBOX_CHECKOUT_URL", "http://localhost:8090/sandbox/checkout"),
		PaymentCurrency:    getEnv("PAYMENT_CURRENCY", "NGN"),
		PaymentCallbackURL: getEnv("PAYMENT_CALLBACK_URL", ""),
		TestPayments:       getEnvAsBool("TEST_PAYMENTS", false),
		TestAmountCeiling:  getEnvAsDecimal("TEST_AMOUNT_CEILING", "100"),

		// Jobs
		PendingTimeout:          getEnvAsDuration("PENDING_TIMEOUT", "30m"),
		ReaperInterval:          getEnvAsDuration("REAPER_INTERVAL", "5m"),
		LedgerReconcileInterval: getEnvAsDuration("LEDGER_RECONCILE_INTERVAL", "10m"),

		// Event bus
		EventBus:     getEnv("EVENT_BUS", "local"),
		KafkaBrokers: getEnvAsList("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "ticket-completed"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "fee-ledger"),

		// Limits
		PurchaseRateLimit: getEnvAsInt("PURCHASE_RATE_LIMIT", 10),
		VerifyLockTTL:     getEnvAsDuration("VERIFY_LOCK_TTL", "30s"),

		ReleaseFailedInventory: getEnvAsBool("RELEASE_FAILED_INVENTORY", false),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsDecimal(key string, defaultValue string) decimal.Decimal {
	if value, err := decimal.NewFromString(getEnv(key, defaultValue)); err == nil {
		return value
	}
	return decimal.RequireFromString(defaultValue)
}

func getEnvAsList(key string, defaultValue string) []string {
	var list []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

func getEnvAsLogLevel(key string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv(key, ""))); err == nil {
		return level
	}
	return defaultValue
}
