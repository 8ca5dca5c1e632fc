package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Feed
	FeedMode    string // "rest" or "ws"
	FeedURL     string // REST price endpoint
	FeedWSURL   string // websocket tick endpoint (ws mode only)
	FeedTimeout time.Duration

	// Evaluation
	TickInterval   time.Duration
	Workers        int
	WindowCapacity int

	// Infrastructure
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	MetricsAddr   string
	APIAddr       string
	FlushInterval time.Duration

	// Notification sinks (enabled when set)
	TelegramBotToken string
	WebhookURL       string

	LogLevel string
}

// Load reads configuration from a .env file (if present) and environment
// variables with sensible defaults.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env file")
	}

	return &Config{
		FeedMode:    getEnv("FEED_MODE", "rest"),
		FeedURL:     mustEnv("FEED_URL"),
		FeedWSURL:   getEnv("FEED_WS_URL", ""),
		FeedTimeout: getDuration("FEED_TIMEOUT", 5*time.Second),

		TickInterval:   getDuration("TICK_INTERVAL", time.Minute),
		Workers:        getInt("WORKERS", 4),
		WindowCapacity: getInt("WINDOW_CAPACITY", 256),

		SQLitePath:    getEnv("SQLITE_PATH", "data/alerts.db"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		APIAddr:       getEnv("API_ADDR", ":8080"),
		FlushInterval: getDuration("FLUSH_INTERVAL", 5*time.Minute),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
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
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
