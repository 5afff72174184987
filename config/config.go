// Package config loads application settings from a .env file and environment variables.
// Environment variables always take precedence over .env file values.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// PostgreSQL – either set DatabaseURL directly, or the individual fields.
	DatabaseURL string
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	DBSSLMode   string

	// Server
	Debug      bool
	Port       string
	TLSDomains []string

	// Scraping and reconciliation
	SourcesFile      string
	ScrapeTimeout    time.Duration
	ReconcileRetries int
	Parallelism      int
	DefaultCurrency  string
	DefaultTimezone  string
	ScrapeCron       string
	ExpireCron       string
	ChromePath       string

	// RabbitMQ – notifications are disabled when AMQPURL is empty.
	AMQPURL      string
	AMQPExchange string

	// MySQL – used only by cmd/migrate.
	MySQLDSN string
}

// Load reads configuration from a .env file (if present) and then from
// environment variables. Environment variables always win.
func Load() *Config {
	cfg := load()
	cfg.validate()
	return cfg
}

func load() *Config {
	v := newViper()

	// Defaults
	v.SetDefault("DB_USER", "teetimes")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "tee_time_booking")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("PORT", ":8000")
	v.SetDefault("TLS_DOMAINS", "")
	v.SetDefault("DEBUG", false)
	v.SetDefault("SOURCES_FILE", "sources.yaml")
	v.SetDefault("SCRAPE_TIMEOUT", "5m")
	v.SetDefault("RECONCILE_RETRIES", 3)
	v.SetDefault("RECONCILE_PARALLELISM", 4)
	v.SetDefault("DEFAULT_CURRENCY", "CAD")
	v.SetDefault("DEFAULT_TIMEZONE", "America/Vancouver")
	v.SetDefault("SCRAPE_CRON", "0 5 * * *")
	v.SetDefault("EXPIRE_CRON", "*/15 * * * *")
	v.SetDefault("AMQP_EXCHANGE", "teetimes")

	return &Config{
		DatabaseURL:      v.GetString("DATABASE_URL"),
		DBUser:           v.GetString("DB_USER"),
		DBPass:           v.GetString("DB_PASS"),
		DBHost:           v.GetString("DB_HOST"),
		DBPort:           v.GetString("DB_PORT"),
		DBName:           v.GetString("DB_NAME"),
		DBSSLMode:        v.GetString("DB_SSLMODE"),
		Debug:            v.GetBool("DEBUG"),
		Port:             v.GetString("PORT"),
		TLSDomains:       splitTrimmed(v.GetString("TLS_DOMAINS")),
		SourcesFile:      v.GetString("SOURCES_FILE"),
		ScrapeTimeout:    v.GetDuration("SCRAPE_TIMEOUT"),
		ReconcileRetries: v.GetInt("RECONCILE_RETRIES"),
		Parallelism:      v.GetInt("RECONCILE_PARALLELISM"),
		DefaultCurrency:  strings.ToUpper(v.GetString("DEFAULT_CURRENCY")),
		DefaultTimezone:  v.GetString("DEFAULT_TIMEZONE"),
		ScrapeCron:       v.GetString("SCRAPE_CRON"),
		ExpireCron:       v.GetString("EXPIRE_CRON"),
		ChromePath:       v.GetString("CHROME_PATH"),
		AMQPURL:          v.GetString("AMQP_URL"),
		AMQPExchange:     v.GetString("AMQP_EXCHANGE"),
		MySQLDSN:         v.GetString("MYSQL_DSN"),
	}
}

// PostgresDSN returns the full PostgreSQL connection string.
// DATABASE_URL takes precedence over individual fields.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func (c *Config) validate() {
	if err := c.check(); err != nil {
		log.Fatalf("config: %v", err)
	}
}

func (c *Config) check() error {
	if c.DatabaseURL == "" && c.DBPass == "" {
		return fmt.Errorf("DATABASE_URL or DB_PASS must be set")
	}
	if c.ScrapeTimeout <= 0 {
		return fmt.Errorf("SCRAPE_TIMEOUT must be positive")
	}
	if c.ReconcileRetries < 0 {
		return fmt.Errorf("RECONCILE_RETRIES must not be negative")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter code, got %q", c.DefaultCurrency)
	}
	return nil
}

func newViper() *viper.Viper {
	// Silently load .env – OK if the file doesn't exist (production uses real env vars).
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables only")
	}

	v := viper.New()
	v.AutomaticEnv()
	return v
}

func splitTrimmed(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
