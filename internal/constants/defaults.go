package constants

// Default server configuration values
const (
	DefaultServerPort            = 3000
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
)

// Default retry and backoff values
const (
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultMaxAttempts           = 5
	DefaultDatabaseRetryAttempts = 3
	DefaultBackoffInitialMs      = 500
)

// Default agent bridge values
const (
	DefaultAgentTimeoutSec = 60
	DefaultHistoryLimit    = 20
	DefaultLLMTimeoutSec   = 60
	DefaultOutboundHTTPSec = 30
	DefaultGraphAPIVersion = "v20.0"
)

// Default dispatcher values
const (
	DefaultWorkerCount     = 5
	DefaultJobQueueSize    = 100
	DefaultDrainTimeoutSec = 30
)

// Default idempotency guard values
const (
	DefaultDedupTTLMinutes   = 60
	DefaultDedupSweepMinutes = 10
)

// Default retention values
const (
	DefaultRetentionDays          = 30
	CleanupSchedulerIntervalHours = 24
)

// Default rate limit values
const (
	DefaultRateLimitWindowSec = 60
	DefaultRateLimitMax       = 120
)

// Signup fee charged through the Asaas payment link, in cents
const SignupFeeCents = 1490

// Payment link due window in days
const PaymentLinkDueDays = 3

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
	DefaultMessageIDLength = 8
)

// Validation limits
const (
	MaxMessageIDLength     = 256
	MaxMessageBodyLength   = 4096
	MaxPhoneDigits         = 15
	MinPhoneDigits         = 7
	MaxWebhookPayloadBytes = 1 << 20
)
