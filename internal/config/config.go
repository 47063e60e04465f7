package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	StoreDriver string // STORE_DRIVER: "postgres" (default) or "memory" for local runs
	Database    DatabaseConfig
	Shopify     ShopifyConfig
	Delifast    DelifastConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Admin       AdminConfig
	Metrics     MetricsConfig
	Lookup      LookupConfig
	// RUN_MIGRATIONS: apply embedded migrations on server start
	RunMigrations bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the postgres:// form used by golang-migrate
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

type ShopifyConfig struct {
	APIKey     string
	APISecret  string // SHOPIFY_API_SECRET: verifies incoming webhooks (X-Shopify-Hmac-Sha256)
	APIVersion string
	AppURL     string // public base URL used as webhook callback prefix
	// Single-shop fallback when no token was stored for a shop
	ShopDomain  string
	AccessToken string
}

// DelifastConfig is used to call the Delifast carrier API
type DelifastConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RedisConfig is optional; webhook dedupe falls back to process memory when Addr is empty
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig is optional; shipment events are dropped when Brokers is empty
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AdminConfig struct {
	APIKeyHash string // bcrypt hash of the admin API key (see cmd/hash-admin-key)
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// LookupConfig drives the temporary shipment id lookup loop
type LookupConfig struct {
	Interval    time.Duration
	Delay       time.Duration
	MaxAttempts int
	BatchSize   int
	// RatePerSecond caps Delifast lookup calls; 0 disables the limit
	RatePerSecond float64
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		StoreDriver: strings.ToLower(getEnvOrViper("STORE_DRIVER", "postgres")),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "delifast"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Shopify: ShopifyConfig{
			APIKey:      strings.TrimSpace(getEnvOrViper("SHOPIFY_API_KEY", "")),
			APISecret:   strings.TrimSpace(getEnvOrViper("SHOPIFY_API_SECRET", "")),
			APIVersion:  getEnvOrViper("SHOPIFY_API_VERSION", "2026-01"),
			AppURL:      strings.TrimSuffix(strings.TrimSpace(getEnvOrViper("SHOPIFY_APP_URL", "")), "/"),
			ShopDomain:  strings.TrimSpace(getEnvOrViper("SHOPIFY_SHOP_DOMAIN", "")),
			AccessToken: strings.TrimSpace(getEnvOrViper("SHOPIFY_ACCESS_TOKEN", "")),
		},
		Delifast: DelifastConfig{
			BaseURL: strings.TrimSpace(getEnvOrViper("DELIFAST_BASE_URL", "")),
			APIKey:  strings.TrimSpace(getEnvOrViper("DELIFAST_API_KEY", "")),
			Timeout: getDuration("DELIFAST_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getEnvOrViper("REDIS_ADDR", "")),
			Password: getEnvOrViper("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnvOrViper("KAFKA_BROKERS", "")),
			Topic:   getEnvOrViper("KAFKA_TOPIC", "delifast.shipments"),
		},
		Admin: AdminConfig{
			APIKeyHash: strings.TrimSpace(getEnvOrViper("ADMIN_API_KEY_HASH", "")),
		},
		Lookup: LookupConfig{
			Interval:      getDuration("LOOKUP_INTERVAL", time.Minute),
			Delay:         getDuration("LOOKUP_DELAY", 15*time.Minute),
			MaxAttempts:   getInt("LOOKUP_MAX_ATTEMPTS", 8),
			BatchSize:     getInt("LOOKUP_BATCH_SIZE", 50),
			RatePerSecond: getFloat("LOOKUP_RATE", 2),
		},
		Metrics: MetricsConfig{
			Enabled: getBool("METRICS_ENABLED", true),
			Path:    getEnvOrViper("METRICS_PATH", "/metrics"),
		},
		RunMigrations: getBool("RUN_MIGRATIONS", true),
	}

	// Validate required fields
	if cfg.Shopify.APISecret == "" {
		return nil, fmt.Errorf("SHOPIFY_API_SECRET is required")
	}
	if cfg.StoreDriver != "postgres" && cfg.StoreDriver != "memory" {
		return nil, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", cfg.StoreDriver)
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}

func getFloat(key string, defaultValue float64) float64 {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return defaultValue
	}
	return f
}

func getBool(key string, defaultValue bool) bool {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
