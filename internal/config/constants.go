package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Access codes
const (
	AccessCodeLength          = 8
	CodeGenerationMaxAttempts = 10
)

// Delivery
const (
	DeliveryTimeout     = 15 * time.Second
	MaxDocumentSize     = 25 << 20
	AccessLogBufferSize = 256
)

// Rate limiting for the public code endpoints
const (
	VerifyRateLimitPerMin = 30
	CodeRequestRateLimit  = 5
)
