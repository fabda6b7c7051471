// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache and event journal (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Token gating the scheduler-invoked cron endpoints
	CronToken string `env:"CRON_TOKEN,required"`

	// Public base URL for the widget loader (e.g. https://cdn.proovd.io)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. There is no write timeout: live WebSocket streams
	// are long-lived and snapshot writes carry per-message deadlines.
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Aggregation engine tuning
	LivenessWindow time.Duration `env:"LIVENESS_WINDOW" envDefault:"60s"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"15s"`
	FlushInterval  time.Duration `env:"FLUSH_INTERVAL" envDefault:"10s"`

	// Ingestion limits
	MaxEventsPerBatch int `env:"MAX_EVENTS_PER_BATCH" envDefault:"50"`

	// Raw event journal retention, enforced by the stats cron
	EventRetention time.Duration `env:"EVENT_RETENTION" envDefault:"2160h"`

	// Website lookup cache TTL
	WebsiteCacheTTL time.Duration `env:"WEBSITE_CACHE_TTL" envDefault:"5m"`

	// Live subscription channel
	SubscriberQueueSize int `env:"SUBSCRIBER_QUEUE_SIZE" envDefault:"8"`

	// Rate limiting for the public widget endpoints (per IP)
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// CORS configuration for dashboard origins.
	// The widget endpoints themselves are served with permissive CORS since
	// they are called from arbitrary customer domains.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 64KB - event batches are small)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"65536"`

	// Domain verification
	VerifyTimeout time.Duration `env:"VERIFY_TIMEOUT" envDefault:"10s"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
