package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Voice tool-call intake
	DispatchBuffer  int
	RetainFinalized time.Duration

	// UI session API
	SessionJWTSecret   string
	CORSAllowedOrigins []string

	// Refinement pass run when a call ends
	RefineProvider string
	RefineTimeout  time.Duration
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModelID  string

	// Review notification email
	ReviewNotifyEmail string
	ReviewUIBaseURL   string
	EmailProvider     string
	EmailFrom         string
	EmailFromName     string
	SendGridAPIKey    string

	// Snapshot handoff
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool
	SnapshotTTL         time.Duration
	HandoffQueueURL     string
	DatabaseURL         string
	ArchiveBucket       string
	ArchivePrefix       string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DispatchBuffer:  getEnvAsInt("DISPATCH_BUFFER", 64),
		RetainFinalized: getEnvAsDuration("RETAIN_FINALIZED", 15*time.Minute),

		SessionJWTSecret:   getEnv("SESSION_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		RefineProvider: strings.ToLower(strings.TrimSpace(getEnv("REFINE_PROVIDER", "rules"))),
		RefineTimeout:  getEnvAsDuration("REFINE_TIMEOUT", 20*time.Second),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		ReviewNotifyEmail: getEnv("REVIEW_NOTIFY_EMAIL", ""),
		ReviewUIBaseURL:   getEnv("REVIEW_UI_BASE_URL", ""),
		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", ""))),
		EmailFrom:         getEnv("EMAIL_FROM", ""),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),

		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),
		SnapshotTTL:         getEnvAsDuration("SNAPSHOT_TTL", 24*time.Hour),
		HandoffQueueURL:     getEnv("HANDOFF_QUEUE_URL", ""),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		ArchiveBucket:       getEnv("ARCHIVE_BUCKET", ""),
		ArchivePrefix:       getEnv("ARCHIVE_PREFIX", "intake/v1"),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.HandoffQueueURL != "" || c.ArchiveBucket != "" || c.RefineProvider == "bedrock" ||
		(c.EmailProvider == "ses" && c.ReviewNotifyEmail != "")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
