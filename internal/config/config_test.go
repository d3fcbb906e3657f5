package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/vetscan")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
	t.Setenv("EXTRACTION_API_BASE_URL", "https://extract.example.com")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vet-ultrasound-uploads", cfg.UploadsBucket)
	assert.Equal(t, "vet-ultrasound-images", cfg.ImagesBucket)
	assert.Equal(t, 30*time.Second, cfg.ExtractionTimeout)
	assert.Equal(t, 50, cfg.MaxFileSizeMB)
	assert.Equal(t, 5000, cfg.MinImageAreaPx)
	assert.Equal(t, 2000, cfg.MaxImageDimension)
	assert.Equal(t, 2*time.Minute, cfg.ProcessingBudget)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.RetryMaxDelay)
	assert.Equal(t, time.Hour, cfg.SignedURLTTL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_FILE_SIZE_MB", "10")
	t.Setenv("PROCESSING_BUDGET", "90s")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxFileSizeMB)
	assert.Equal(t, 90*time.Second, cfg.ProcessingBudget)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, "9090", cfg.Port)
}

func TestLoad_MissingRequired(t *testing.T) {
	required := []string{
		"DATABASE_URL",
		"SUPABASE_URL",
		"SUPABASE_SERVICE_KEY",
		"EXTRACTION_API_BASE_URL",
		"JWT_SECRET",
	}
	for _, missing := range required {
		t.Run(missing, func(t *testing.T) {
			setRequired(t)
			t.Setenv(missing, "")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), missing)
		})
	}
}

func TestLoad_MalformedValuesFallBackToDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_FILE_SIZE_MB", "not-a-number")
	t.Setenv("PROCESSING_BUDGET", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MaxFileSizeMB)
	assert.Equal(t, 2*time.Minute, cfg.ProcessingBudget)
}

func TestValidate_Bounds(t *testing.T) {
	setRequired(t)
	t.Setenv("RETRY_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RETRY_MAX_ATTEMPTS")
}
