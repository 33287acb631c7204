// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for the operator middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler and the
// periodic scan/ladder pollers.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetScanInterval() time.Duration
	GetLadderInterval() time.Duration
}

// MailConfig provides settings for the SMTP email channel.
type MailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetMailFromName() string
	GetMailFromAddress() string
	IsMailEnabled() bool
}

// GatewayConfig provides settings for the outbound call/text gateway.
type GatewayConfig interface {
	GetGatewayURL() string
	GetGatewayAPIKey() string
}

// RouteServiceConfig provides settings for the delivery route service.
type RouteServiceConfig interface {
	GetRouteServiceURL() string
	GetRouteServiceAPIKey() string
}

// DispatchConfig provides settings for outbound dispatch behavior.
type DispatchConfig interface {
	GetDispatchTimeout() time.Duration
	GetChannelRatePerSecond() float64
	GetChannelBurst() int
}

// Config holds all application configuration loaded from the environment.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	ScanInterval     time.Duration
	LadderInterval   time.Duration

	MailEnabled     bool
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	MailFromName    string
	MailFromAddress string

	GatewayURL         string
	GatewayAPIKey      string
	RouteServiceURL    string
	RouteServiceAPIKey string

	DispatchTimeout      time.Duration
	ChannelRatePerSecond float64
	ChannelBurst         int
}

// Load reads configuration from the environment, honoring a local .env file
// in development.
func Load() (*Config, error) {
	// .env is optional; environment variables always win.
	_ = godotenv.Load()

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTAccessSecret: os.Getenv("JWT_ACCESS_SECRET"),

		CORSAllowAll:   getBoolEnv("CORS_ALLOW_ALL", false),
		CORSOrigins:    splitCSV(getEnv("CORS_ORIGINS", "")),
		CORSAllowCreds: getBoolEnv("CORS_ALLOW_CREDENTIALS", false),

		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure: getBoolEnv("REDIS_TLS_INSECURE", false),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "opspulse"),
		AsynqConcurrency: getIntEnv("ASYNQ_CONCURRENCY", 10),
		ScanInterval:     getDurationEnv("SCAN_INTERVAL", 5*time.Minute),
		LadderInterval:   getDurationEnv("LADDER_INTERVAL", 15*time.Minute),

		MailEnabled:     getBoolEnv("MAIL_ENABLED", false),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPPort:        getIntEnv("SMTP_PORT", 587),
		SMTPUsername:    os.Getenv("SMTP_USERNAME"),
		SMTPPassword:    os.Getenv("SMTP_PASSWORD"),
		MailFromName:    getEnv("MAIL_FROM_NAME", "OpsPulse"),
		MailFromAddress: getEnv("MAIL_FROM_ADDRESS", "noreply@opspulse.local"),

		GatewayURL:         os.Getenv("COMMS_GATEWAY_URL"),
		GatewayAPIKey:      os.Getenv("COMMS_GATEWAY_API_KEY"),
		RouteServiceURL:    os.Getenv("ROUTE_SERVICE_URL"),
		RouteServiceAPIKey: os.Getenv("ROUTE_SERVICE_API_KEY"),

		DispatchTimeout:      getDurationEnv("DISPATCH_TIMEOUT", 30*time.Second),
		ChannelRatePerSecond: getFloatEnv("CHANNEL_RATE_PER_SECOND", 2),
		ChannelBurst:         getIntEnv("CHANNEL_BURST", 5),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" && !strings.EqualFold(cfg.Env, "development") {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required outside development")
	}

	return cfg, nil
}

// =============================================================================
// Interface implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string             { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string         { return c.JWTAccessSecret }
func (c *Config) GetHTTPAddr() string                { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool              { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string           { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool            { return c.CORSAllowCreds }
func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool          { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string          { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int           { return c.AsynqConcurrency }
func (c *Config) GetScanInterval() time.Duration     { return c.ScanInterval }
func (c *Config) GetLadderInterval() time.Duration   { return c.LadderInterval }
func (c *Config) GetSMTPHost() string                { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                   { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string            { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string            { return c.SMTPPassword }
func (c *Config) GetMailFromName() string            { return c.MailFromName }
func (c *Config) GetMailFromAddress() string         { return c.MailFromAddress }
func (c *Config) IsMailEnabled() bool                { return c.MailEnabled && c.SMTPHost != "" }
func (c *Config) GetGatewayURL() string              { return c.GatewayURL }
func (c *Config) GetGatewayAPIKey() string           { return c.GatewayAPIKey }
func (c *Config) GetRouteServiceURL() string         { return c.RouteServiceURL }
func (c *Config) GetRouteServiceAPIKey() string      { return c.RouteServiceAPIKey }
func (c *Config) GetDispatchTimeout() time.Duration  { return c.DispatchTimeout }
func (c *Config) GetChannelRatePerSecond() float64   { return c.ChannelRatePerSecond }
func (c *Config) GetChannelBurst() int               { return c.ChannelBurst }

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getFloatEnv(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
