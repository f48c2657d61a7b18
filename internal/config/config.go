package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"salesbridge/internal/constants"
	"salesbridge/internal/models"
	"salesbridge/internal/security"

	"github.com/joho/godotenv"
)

var (
	ErrMissingVerifyToken = models.ConfigError{Message: "missing WhatsApp verify token (set WHATSAPP_VERIFY_TOKEN)"}
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path (set DB_PATH)"}
)

// Load builds the configuration from the environment. When envFile is
// non-empty it is loaded first without overriding variables already
// set in the process environment, matching godotenv semantics.
func Load(envFile string) (*models.Config, error) {
	if envFile != "" {
		if err := security.ValidateFilePath(envFile); err != nil {
			return nil, fmt.Errorf("invalid env file path: %w", err)
		}
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	} else {
		// Best effort: a .env in the working directory is optional.
		_ = godotenv.Load()
	}

	cfg := &models.Config{
		Server: models.ServerConfig{
			Port: envInt("PORT", constants.DefaultServerPort),
		},
		WhatsApp: models.WhatsAppConfig{
			VerifyToken:   os.Getenv("WHATSAPP_VERIFY_TOKEN"),
			AccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			GraphVersion:  envString("WHATSAPP_GRAPH_VERSION", constants.DefaultGraphAPIVersion),
			Timeout:       envSeconds("WHATSAPP_TIMEOUT_SEC", constants.DefaultOutboundHTTPSec),
		},
		Asaas: models.AsaasConfig{
			APIBaseURL:   os.Getenv("ASAAS_API_BASE_URL"),
			APIKey:       os.Getenv("ASAAS_API_KEY"),
			WebhookToken: os.Getenv("ASAAS_WEBHOOK_TOKEN"),
			Timeout:      envSeconds("ASAAS_TIMEOUT_SEC", constants.DefaultOutboundHTTPSec),
		},
		Agent: models.AgentConfig{
			Mode:               models.AgentMode(envString("AGENT_MODE", string(models.AgentModeRemote))),
			DPKBaseURL:         os.Getenv("DPK_BASE_URL"),
			DPKSecret:          os.Getenv("DPK_SECRET"),
			DPKTimeout:         envSeconds("DPK_TIMEOUT_SEC", constants.DefaultAgentTimeoutSec),
			LLMBaseURL:         os.Getenv("LLM_BASE_URL"),
			LLMAPIKey:          os.Getenv("LLM_API_KEY"),
			LLMModel:           os.Getenv("LLM_MODEL"),
			LLMTimeout:         envSeconds("LLM_TIMEOUT_SEC", constants.DefaultLLMTimeoutSec),
			InfosimplesBaseURL: os.Getenv("INFOSIMPLES_BASE_URL"),
			InfosimplesToken:   os.Getenv("INFOSIMPLES_TOKEN"),
			HistoryLimit:       envInt("AGENT_HISTORY_LIMIT", constants.DefaultHistoryLimit),
		},
		Database: models.DatabaseConfig{
			Path: os.Getenv("DB_PATH"),
		},
		Dedup: models.DedupConfig{
			TTLMinutes:   envInt("DEDUP_TTL_MINUTES", constants.DefaultDedupTTLMinutes),
			SweepMinutes: envInt("DEDUP_SWEEP_MINUTES", constants.DefaultDedupSweepMinutes),
		},
		Queue: models.QueueConfig{
			Mode:      models.QueueMode(envString("QUEUE_MODE", string(models.QueueModePool))),
			Workers:   envInt("QUEUE_WORKERS", constants.DefaultWorkerCount),
			QueueSize: envInt("QUEUE_SIZE", constants.DefaultJobQueueSize),
		},
		RateLimit: models.RateLimitConfig{
			Enabled:   envBool("RATE_LIMIT_ENABLED", false),
			WindowSec: envInt("RATE_LIMIT_WINDOW_SEC", constants.DefaultRateLimitWindowSec),
			Max:       envInt("RATE_LIMIT_MAX", constants.DefaultRateLimitMax),
			RedisURL:  os.Getenv("RATE_LIMIT_REDIS_URL"),
		},
		Retry: models.RetryConfig{
			InitialBackoffMs: envInt("RETRY_INITIAL_BACKOFF_MS", constants.DefaultRetryBackoffMs),
			MaxBackoffMs:     envInt("RETRY_MAX_BACKOFF_MS", constants.DefaultMaxBackoffMs),
			MaxAttempts:      envInt("RETRY_MAX_ATTEMPTS", constants.DefaultMaxAttempts),
		},
		Tracing: models.TracingConfig{
			Enabled:        envBool("TRACING_ENABLED", false),
			ServiceName:    envString("TRACING_SERVICE_NAME", "salesbridge"),
			ServiceVersion: envString("TRACING_SERVICE_VERSION", "dev"),
			Environment:    envString("TRACING_ENVIRONMENT", "development"),
			OTLPEndpoint:   os.Getenv("TRACING_OTLP_ENDPOINT"),
			SampleRate:     envFloat("TRACING_SAMPLE_RATE", 1.0),
			UseStdout:      envBool("TRACING_USE_STDOUT", false),
		},
		LogLevel:             envString("LOG_LEVEL", "info"),
		RetentionDays:        envInt("RETENTION_DAYS", constants.DefaultRetentionDays),
		CleanupIntervalHours: envInt("CLEANUP_INTERVAL_HOURS", constants.CleanupSchedulerIntervalHours),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(c *models.Config) error {
	if c.WhatsApp.VerifyToken == "" {
		return ErrMissingVerifyToken
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if err := security.ValidateFilePath(c.Database.Path); err != nil {
		return fmt.Errorf("invalid database path: %w", err)
	}

	switch c.Agent.Mode {
	case models.AgentModeRemote:
		if c.Agent.DPKBaseURL == "" {
			return models.ConfigError{Message: "agent mode remote requires DPK_BASE_URL"}
		}
	case models.AgentModeLocal:
		if c.Agent.LLMBaseURL == "" || c.Agent.LLMModel == "" {
			return models.ConfigError{Message: "agent mode local requires LLM_BASE_URL and LLM_MODEL"}
		}
	default:
		return models.ConfigError{Message: fmt.Sprintf("unknown agent mode: %s", c.Agent.Mode)}
	}

	switch c.Queue.Mode {
	case models.QueueModeInline, models.QueueModePool:
	default:
		return models.ConfigError{Message: fmt.Sprintf("unknown queue mode: %s", c.Queue.Mode)}
	}

	if isProduction() {
		if c.Asaas.WebhookToken == "" {
			return models.ConfigError{Message: "Asaas webhook token is required in production (set ASAAS_WEBHOOK_TOKEN)"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production"}
		}
	} else if c.Asaas.WebhookToken == "" {
		fmt.Fprintf(os.Stderr, "WARNING: Asaas webhook token not set. Payment webhooks will be rejected.\n")
	}

	return nil
}

func isProduction() bool {
	return os.Getenv("APP_ENV") == "production"
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envSeconds(key string, fallbackSec int) time.Duration {
	return time.Duration(envInt(key, fallbackSec)) * time.Second
}
