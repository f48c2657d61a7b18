package models

import "time"

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp"`
	Asaas     AsaasConfig     `json:"asaas"`
	Agent     AgentConfig     `json:"agent"`
	Database  DatabaseConfig  `json:"database"`
	Dedup     DedupConfig     `json:"dedup"`
	Queue     QueueConfig     `json:"queue"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Retry     RetryConfig     `json:"retry"`
	Tracing   TracingConfig   `json:"tracing"`
	LogLevel  string          `json:"log_level"`

	// RetentionDays bounds how long message and webhook-log rows are kept.
	RetentionDays        int `json:"retention_days"`
	CleanupIntervalHours int `json:"cleanup_interval_hours"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `json:"port"`
}

// WhatsAppConfig holds WhatsApp Cloud API configuration
type WhatsAppConfig struct {
	// VerifyToken is matched against hub.verify_token on webhook
	// registration.
	VerifyToken string `json:"verify_token"`

	// AccessToken and PhoneNumberID authorize outbound Graph API sends.
	// Either missing means delivery is disabled, not an error.
	AccessToken   string        `json:"access_token"`
	PhoneNumberID string        `json:"phone_number_id"`
	GraphVersion  string        `json:"graph_version"`
	Timeout       time.Duration `json:"timeout_ms"`
}

// AsaasConfig holds Asaas payment provider configuration
type AsaasConfig struct {
	APIBaseURL string `json:"api_base_url"`
	APIKey     string `json:"api_key"`
	// WebhookToken is the shared secret expected in asaas-access-token.
	WebhookToken string        `json:"webhook_token"`
	Timeout      time.Duration `json:"timeout_ms"`
}

// AgentMode selects how inbound text is answered.
type AgentMode string

const (
	AgentModeRemote AgentMode = "remote"
	AgentModeLocal  AgentMode = "local"
)

// AgentConfig holds agent bridge configuration
type AgentConfig struct {
	Mode AgentMode `json:"mode"`

	// Remote mode (DPK proxy)
	DPKBaseURL string        `json:"dpk_base_url"`
	DPKSecret  string        `json:"dpk_secret"`
	DPKTimeout time.Duration `json:"dpk_timeout_ms"`

	// Local mode (tool-calling LLM)
	LLMBaseURL string        `json:"llm_base_url"`
	LLMAPIKey  string        `json:"llm_api_key"`
	LLMModel   string        `json:"llm_model"`
	LLMTimeout time.Duration `json:"llm_timeout_ms"`

	// Infosimples registry lookups for the local tools
	InfosimplesBaseURL string `json:"infosimples_base_url"`
	InfosimplesToken   string `json:"infosimples_token"`

	HistoryLimit int `json:"history_limit"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// DedupConfig holds idempotency guard configuration
type DedupConfig struct {
	TTLMinutes   int `json:"ttl_minutes"`
	SweepMinutes int `json:"sweep_minutes"`
}

// QueueMode selects the dispatcher strategy.
type QueueMode string

const (
	QueueModeInline QueueMode = "inline"
	QueueModePool   QueueMode = "pool"
)

// QueueConfig holds dispatcher configuration
type QueueConfig struct {
	Mode      QueueMode `json:"mode"`
	Workers   int       `json:"workers"`
	QueueSize int       `json:"queue_size"`
}

// RateLimitConfig holds webhook rate limiter configuration
type RateLimitConfig struct {
	Enabled   bool   `json:"enabled"`
	WindowSec int    `json:"window_sec"`
	Max       int    `json:"max"`
	RedisURL  string `json:"redis_url"`
}

// RetryConfig holds retry backoff configuration
type RetryConfig struct {
	InitialBackoffMs int `json:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"max_backoff_ms"`
	MaxAttempts      int `json:"max_attempts"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

// ConfigError represents a configuration problem found at startup.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
