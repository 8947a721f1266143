package config

import (
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	Port          string
	SupabaseURL   string
	SupabaseKey   string
	WebhookSecret string

	// Gemini / Vertex AI (message content generation)
	GoogleAPIKey string
	GeminiModel  string
	UseVertexAI  bool
	GCPProject   string
	GCPLocation  string

	// Background schedules (cron specs). The worker runs its own timers;
	// a Supabase edge function can still hit the manual trigger endpoint.
	SchedulerEnabled bool
	CycleCron        string // automation cycle
	CleanupCron      string // stuck-run / expired-lock sweep
	HealthCron       string // health snapshot
	LearningCron     string // cadence learning pass
	RescoreCron      string // lead temperature rescore

	// BackfillDays rebuilds the timing analytics from the message log at
	// startup when > 0. One-shot rollout/repair tool, normally 0.
	BackfillDays int
}

// Load reads configuration from environment variables
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		Port:          port,
		SupabaseURL:   os.Getenv("SUPABASE_URL"),
		SupabaseKey:   getEnvWithFallback("SUPABASE_SECRET_KEY", "SUPABASE_KEY"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		GoogleAPIKey: os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:  os.Getenv("GEMINI_MODEL"),
		UseVertexAI:  os.Getenv("GOOGLE_GENAI_USE_VERTEXAI") == "true",
		GCPProject:   os.Getenv("GOOGLE_CLOUD_PROJECT"),
		GCPLocation:  os.Getenv("GOOGLE_CLOUD_LOCATION"),

		SchedulerEnabled: os.Getenv("AUTOMATION_SCHEDULER_DISABLED") != "true",
		CycleCron:        getEnvWithDefault("AUTOMATION_CYCLE_CRON", "*/10 * * * *"),
		CleanupCron:      getEnvWithDefault("AUTOMATION_CLEANUP_CRON", "*/15 * * * *"),
		HealthCron:       getEnvWithDefault("AUTOMATION_HEALTH_CRON", "*/5 * * * *"),
		LearningCron:     getEnvWithDefault("AUTOMATION_LEARNING_CRON", "0 3 * * *"),
		RescoreCron:      getEnvWithDefault("AUTOMATION_RESCORE_CRON", "30 * * * *"),

		BackfillDays: getEnvInt("AUTOMATION_BACKFILL_DAYS", 0),
	}
}

// getEnvInt returns the env var parsed as an int, or def when unset or
// unparseable
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getEnvWithFallback returns the primary env var, or the fallback when the
// primary is unset/empty
func getEnvWithFallback(primary, fallback string) string {
	if v := os.Getenv(primary); v != "" {
		return v
	}
	return os.Getenv(fallback)
}

// getEnvWithDefault returns the env var value, or def when unset/empty
func getEnvWithDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
