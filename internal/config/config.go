package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DatabaseURL string

	// Supabase storage
	SupabaseURL        string
	SupabaseServiceKey string
	UploadsBucket      string
	ImagesBucket       string

	// Extraction service
	ExtractionBaseURL string
	ExtractionAPIKey  string
	ExtractionTimeout time.Duration

	// Upload limits
	MaxFileSizeMB int

	// Image extraction
	MinImageAreaPx    int
	MaxImageDimension int

	// Pipeline
	ProcessingBudget time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	// Signed URLs
	SignedURLTTL time.Duration

	// Auth
	JWTSecret string

	// Server
	Port        string
	Environment string
	LogLevel    string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		UploadsBucket:      getEnv("UPLOADS_BUCKET", "vet-ultrasound-uploads"),
		ImagesBucket:       getEnv("IMAGES_BUCKET", "vet-ultrasound-images"),

		ExtractionBaseURL: getEnv("EXTRACTION_API_BASE_URL", ""),
		ExtractionAPIKey:  getEnv("EXTRACTION_API_KEY", ""),
		ExtractionTimeout: getEnvDuration("EXTRACTION_TIMEOUT", 30*time.Second),

		MaxFileSizeMB: getEnvInt("MAX_FILE_SIZE_MB", 50),

		MinImageAreaPx:    getEnvInt("MIN_IMAGE_AREA_PX", 5000),
		MaxImageDimension: getEnvInt("MAX_IMAGE_DIMENSION", 2000),

		ProcessingBudget: getEnvDuration("PROCESSING_BUDGET", 2*time.Minute),
		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getEnvDuration("RETRY_BASE_DELAY", 1*time.Second),
		RetryMaxDelay:    getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),

		SignedURLTTL: getEnvDuration("SIGNED_URL_TTL", time.Hour),

		JWTSecret: getEnv("JWT_SECRET", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if c.ExtractionBaseURL == "" {
		return fmt.Errorf("EXTRACTION_API_BASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
