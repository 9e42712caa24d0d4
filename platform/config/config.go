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
	GetMigrationsDir() string
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// MarketplaceConfig provides settings for the marketplace API client.
type MarketplaceConfig interface {
	GetMarketplaceBaseURL() string
	GetSupportBaseURL() string
	GetMarketplaceSessionKey() string
	GetMarketplaceUserAgent() string
	GetSellerUsername() string
	GetEventPollDelay() time.Duration
	GetOutboundMessageRate() float64
}

// TelegramConfig provides settings for operator notifications via Telegram.
type TelegramConfig interface {
	GetTelegramBotToken() string
	GetTelegramOperatorChatID() string
}

// EmailConfig provides settings for the SMTP fallback notifier.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromAddress() string
	GetOperatorEmail() string
	IsEmailEnabled() bool
}

// AuthConfig provides settings for the operational API authentication.
type AuthConfig interface {
	GetJWTSecret() string
	GetAccessTokenTTL() time.Duration
	GetAdminUsername() string
	GetAdminPasswordHash() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env           string
	HTTPAddr      string
	DatabaseURL   string
	MigrationsDir string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	MarketplaceBaseURL    string
	SupportBaseURL        string
	MarketplaceSessionKey string
	MarketplaceUserAgent  string
	SellerUsername        string
	EventPollDelay        time.Duration
	OutboundMessageRate   float64

	TelegramBotToken       string
	TelegramOperatorChatID string

	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromAddress string
	OperatorEmail    string
	EmailEnabled     bool

	JWTSecret         string
	AccessTokenTTL    time.Duration
	AdminUsername     string
	AdminPasswordHash string

	CORSAllowAll bool
	CORSOrigins  []string
}

// Load reads configuration from the environment. A local .env file is loaded
// first when present (development convenience, never required).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getEnv("APP_ENV", "development"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),

		RedisURL:         os.Getenv("REDIS_URL"),
		RedisTLSInsecure: getBool("REDIS_TLS_INSECURE", false),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: getInt("ASYNQ_CONCURRENCY", 10),

		MarketplaceBaseURL:    getEnv("MARKETPLACE_BASE_URL", "https://funpay.com"),
		SupportBaseURL:        getEnv("SUPPORT_BASE_URL", "https://support.funpay.com"),
		MarketplaceSessionKey: os.Getenv("MARKETPLACE_SESSION_KEY"),
		MarketplaceUserAgent:  getEnv("MARKETPLACE_USER_AGENT", "Mozilla/5.0"),
		SellerUsername:        os.Getenv("SELLER_USERNAME"),
		EventPollDelay:        getDuration("EVENT_POLL_DELAY", 6*time.Second),
		OutboundMessageRate:   getFloat("OUTBOUND_MESSAGE_RATE", 1.0),

		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramOperatorChatID: os.Getenv("TELEGRAM_OPERATOR_CHAT_ID"),

		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         getInt("SMTP_PORT", 587),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		EmailFromAddress: os.Getenv("EMAIL_FROM_ADDRESS"),
		OperatorEmail:    os.Getenv("OPERATOR_EMAIL"),
		EmailEnabled:     getBool("EMAIL_ENABLED", false),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AccessTokenTTL:    getDuration("ACCESS_TOKEN_TTL", 12*time.Hour),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		CORSAllowAll: getBool("CORS_ALLOW_ALL", false),
		CORSOrigins:  getList("CORS_ORIGINS"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" && !strings.EqualFold(cfg.Env, "development") {
		return nil, fmt.Errorf("JWT_SECRET is required outside development")
	}

	return cfg, nil
}

// -----------------------------------------------------------------------------
// Interface implementations
// -----------------------------------------------------------------------------

func (c *Config) GetDatabaseURL() string   { return c.DatabaseURL }
func (c *Config) GetMigrationsDir() string { return c.MigrationsDir }

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetMarketplaceBaseURL() string    { return c.MarketplaceBaseURL }
func (c *Config) GetSupportBaseURL() string        { return c.SupportBaseURL }
func (c *Config) GetMarketplaceSessionKey() string { return c.MarketplaceSessionKey }
func (c *Config) GetMarketplaceUserAgent() string  { return c.MarketplaceUserAgent }
func (c *Config) GetSellerUsername() string        { return c.SellerUsername }
func (c *Config) GetEventPollDelay() time.Duration { return c.EventPollDelay }
func (c *Config) GetOutboundMessageRate() float64  { return c.OutboundMessageRate }

func (c *Config) GetTelegramBotToken() string       { return c.TelegramBotToken }
func (c *Config) GetTelegramOperatorChatID() string { return c.TelegramOperatorChatID }

func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetOperatorEmail() string    { return c.OperatorEmail }
func (c *Config) IsEmailEnabled() bool        { return c.EmailEnabled }

func (c *Config) GetJWTSecret() string             { return c.JWTSecret }
func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }
func (c *Config) GetAdminUsername() string         { return c.AdminUsername }
func (c *Config) GetAdminPasswordHash() string     { return c.AdminPasswordHash }

func (c *Config) GetHTTPAddr() string     { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool   { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// -----------------------------------------------------------------------------
// Env helpers
// -----------------------------------------------------------------------------

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getFloat(key string, fallback float64) float64 {
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

func getBool(key string, fallback bool) bool {
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

func getDuration(key string, fallback time.Duration) time.Duration {
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

func getList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
