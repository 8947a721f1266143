package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvWithFallback(t *testing.T) {
	tests := []struct {
		name          string
		primary       string
		primaryValue  string
		fallback      string
		fallbackValue string
		expected      string
	}{
		{
			name:          "primary exists",
			primary:       "TEST_PRIMARY_VAR",
			primaryValue:  "primary_value",
			fallback:      "TEST_FALLBACK_VAR",
			fallbackValue: "fallback_value",
			expected:      "primary_value",
		},
		{
			name:          "primary empty, fallback exists",
			primary:       "TEST_PRIMARY_EMPTY",
			primaryValue:  "",
			fallback:      "TEST_FALLBACK_EXISTS",
			fallbackValue: "fallback_value",
			expected:      "fallback_value",
		},
		{
			name:          "both empty",
			primary:       "TEST_BOTH_EMPTY_P",
			primaryValue:  "",
			fallback:      "TEST_BOTH_EMPTY_F",
			fallbackValue: "",
			expected:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.primaryValue != "" {
				os.Setenv(tt.primary, tt.primaryValue)
				defer os.Unsetenv(tt.primary)
			}
			if tt.fallbackValue != "" {
				os.Setenv(tt.fallback, tt.fallbackValue)
				defer os.Unsetenv(tt.fallback)
			}

			result := getEnvWithFallback(tt.primary, tt.fallback)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoad_DefaultPort(t *testing.T) {
	os.Unsetenv("PORT")

	config := Load()
	assert.Equal(t, "8080", config.Port)
}

func TestLoad_CustomPort(t *testing.T) {
	os.Setenv("PORT", "3000")
	defer os.Unsetenv("PORT")

	config := Load()
	assert.Equal(t, "3000", config.Port)
}

func TestLoad_DefaultCronSpecs(t *testing.T) {
	for _, key := range []string{
		"AUTOMATION_CYCLE_CRON",
		"AUTOMATION_CLEANUP_CRON",
		"AUTOMATION_HEALTH_CRON",
		"AUTOMATION_LEARNING_CRON",
		"AUTOMATION_RESCORE_CRON",
	} {
		os.Unsetenv(key)
	}

	config := Load()

	assert.Equal(t, "*/10 * * * *", config.CycleCron)
	assert.Equal(t, "*/15 * * * *", config.CleanupCron)
	assert.Equal(t, "*/5 * * * *", config.HealthCron)
	assert.Equal(t, "0 3 * * *", config.LearningCron)
	assert.Equal(t, "30 * * * *", config.RescoreCron)
}

func TestLoad_AllEnvVars(t *testing.T) {
	envVars := map[string]string{
		"PORT":                      "9000",
		"SUPABASE_URL":              "https://test.supabase.co",
		"SUPABASE_SECRET_KEY":       "test_secret_key",
		"WEBHOOK_SECRET":            "webhook_secret_123",
		"GOOGLE_API_KEY":            "google_api_key_test",
		"GEMINI_MODEL":              "gemini-2.5-pro",
		"GOOGLE_GENAI_USE_VERTEXAI": "true",
		"GOOGLE_CLOUD_PROJECT":      "my-project",
		"GOOGLE_CLOUD_LOCATION":     "us-central1",
		"AUTOMATION_CYCLE_CRON":     "*/5 * * * *",
	}

	for k, v := range envVars {
		os.Setenv(k, v)
		defer os.Unsetenv(k)
	}

	config := Load()

	assert.Equal(t, "9000", config.Port)
	assert.Equal(t, "https://test.supabase.co", config.SupabaseURL)
	assert.Equal(t, "test_secret_key", config.SupabaseKey)
	assert.Equal(t, "webhook_secret_123", config.WebhookSecret)
	assert.Equal(t, "google_api_key_test", config.GoogleAPIKey)
	assert.Equal(t, "gemini-2.5-pro", config.GeminiModel)
	assert.True(t, config.UseVertexAI)
	assert.Equal(t, "my-project", config.GCPProject)
	assert.Equal(t, "us-central1", config.GCPLocation)
	assert.Equal(t, "*/5 * * * *", config.CycleCron)
}

func TestLoad_SupabaseKeyFallback(t *testing.T) {
	os.Unsetenv("SUPABASE_SECRET_KEY")
	os.Setenv("SUPABASE_KEY", "legacy_key")
	defer os.Unsetenv("SUPABASE_KEY")

	config := Load()
	assert.Equal(t, "legacy_key", config.SupabaseKey)
}

func TestLoad_SchedulerEnabledByDefault(t *testing.T) {
	os.Unsetenv("AUTOMATION_SCHEDULER_DISABLED")

	config := Load()
	assert.True(t, config.SchedulerEnabled)
}

func TestLoad_BackfillDays(t *testing.T) {
	t.Run("defaults to disabled", func(t *testing.T) {
		os.Unsetenv("AUTOMATION_BACKFILL_DAYS")

		config := Load()
		assert.Equal(t, 0, config.BackfillDays)
	})

	t.Run("parses the env var", func(t *testing.T) {
		os.Setenv("AUTOMATION_BACKFILL_DAYS", "90")
		defer os.Unsetenv("AUTOMATION_BACKFILL_DAYS")

		config := Load()
		assert.Equal(t, 90, config.BackfillDays)
	})

	t.Run("garbage falls back to the default", func(t *testing.T) {
		os.Setenv("AUTOMATION_BACKFILL_DAYS", "ninety")
		defer os.Unsetenv("AUTOMATION_BACKFILL_DAYS")

		config := Load()
		assert.Equal(t, 0, config.BackfillDays)
	})
}

func TestLoad_SchedulerDisabled(t *testing.T) {
	os.Setenv("AUTOMATION_SCHEDULER_DISABLED", "true")
	defer os.Unsetenv("AUTOMATION_SCHEDULER_DISABLED")

	config := Load()
	assert.False(t, config.SchedulerEnabled)
}
