// Package config loads application configuration from environment
// variables.
package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	// Kite Connect credentials, required only when USE_REAL_DATA=true.
	KiteAPIKey      string
	KiteAPISecret   string
	KiteAccessToken string
	KiteTOTPSecret  string

	// UseRealData selects the Kite fetcher over the mock generator.
	UseRealData bool

	// Infrastructure
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MetricsAddr   string
	APIAddr       string
	WebhookURL    string // optional alert webhook

	// UniverseFile overrides the built-in Nifty 50 instrument list.
	UniverseFile string

	// Pipeline tuning
	CronSpec     string // daily job schedule, IST
	Workers      int    // concurrent symbol recomputes
	BackfillDays int    // calendar days fetched for an empty symbol
}

// Load reads configuration from environment variables with sensible
// defaults. Kite credentials are required only for real-data mode.
func Load() *Config {
	cfg := &Config{
		UseRealData: getBool("USE_REAL_DATA", false),

		SQLitePath:    getEnv("SQLITE_PATH", "data/analyzer.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		APIAddr:       getEnv("API_ADDR", ":8080"),
		WebhookURL:    getEnv("ALERT_WEBHOOK_URL", ""),

		UniverseFile: getEnv("UNIVERSE_FILE", ""),

		CronSpec:     getEnv("DAILY_CRON", ""),
		Workers:      getInt("RECOMPUTE_WORKERS", 4),
		BackfillDays: getInt("BACKFILL_DAYS", 400),
	}

	if cfg.UseRealData {
		cfg.KiteAPIKey = mustEnv("KITE_API_KEY")
		cfg.KiteAPISecret = mustEnv("KITE_API_SECRET")
		cfg.KiteAccessToken = getEnv("KITE_ACCESS_TOKEN", "")
		cfg.KiteTOTPSecret = getEnv("KITE_TOTP_SECRET", "")
	}
	return cfg
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] %s=%q is not a boolean, using %v", key, v, fallback)
		return fallback
	}
	return b
}
